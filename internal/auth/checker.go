package auth

import "context"

var _ Checker = (*Service)(nil)
var _ Checker = (*TestChecker)(nil)

// Checker is what the request gateway needs from the session layer: raw
// credential in, session out (nil when unauthenticated).
type Checker interface {
	Validate(ctx context.Context, credential string) (*Session, error)
}
