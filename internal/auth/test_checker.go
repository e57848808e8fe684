package auth

import "context"

// TestChecker is an in-memory Checker for middleware and handler tests.
type TestChecker struct {
	Sessions map[string]*Session
	Err      error
}

func NewTestChecker() *TestChecker {
	return &TestChecker{
		Sessions: map[string]*Session{},
	}
}

func (c *TestChecker) Validate(_ context.Context, credential string) (*Session, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	session, ok := c.Sessions[credential]
	if !ok {
		return nil, nil
	}
	return session, nil
}
