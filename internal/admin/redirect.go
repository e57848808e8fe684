package admin

import "strings"

// SafeRedirectTarget returns target if it is a same-origin path, and
// fallback otherwise. Only targets with exactly one leading slash
// qualify; "//host" is protocol-relative and would leave the origin.
func SafeRedirectTarget(target, fallback string) string {
	if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") {
		return target
	}
	return fallback
}
