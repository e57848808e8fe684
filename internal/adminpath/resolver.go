// Package adminpath derives the externally visible admin URL prefix.
//
// The prefix is either configured literally, or derived from a seed via a
// fast non-cryptographic hash. The hash only lowers the admin area's
// discoverability for scanners; the session check in the auth gateway is
// the actual access control.
package adminpath

import (
	"strconv"
	"strings"
)

const DefaultPath = "/admin"

// tokens that request a derived (seed-hashed) admin path
var dynamicPathTokens = map[string]bool{
	"random": true,
	"auto":   true,
	"rotate": true,
}

const fallbackSeed = "admin-path"

// Resolve returns the admin path for the given configured value. An empty
// value falls back to DefaultPath, a dynamic token derives the path from
// the seed, anything else is normalized and used as-is. The result always
// starts with a single slash and never ends with one (root excepted).
func Resolve(raw, seed string) string {
	if isDynamicToken(raw) {
		hash := hashSeed(seed)
		if len(hash) > 12 {
			hash = hash[:12]
		}
		return Normalize("/admin-" + hash)
	}
	return Normalize(raw)
}

// Seed picks the admin path seed: an explicit override wins, then the
// admin bootstrap credentials, then a constant fallback.
func Seed(explicit, adminEmail, adminPassword string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	email := strings.ToLower(strings.TrimSpace(adminEmail))
	if email != "" || adminPassword != "" {
		return email + "|" + adminPassword
	}
	return fallbackSeed
}

// Normalize is idempotent: single leading slash, no trailing slash except
// for the root path itself.
func Normalize(value string) string {
	path := strings.TrimSpace(value)
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

// IsUnderPath reports whether requestPath is the admin path itself or
// anything below it. A path that merely shares a prefix (e.g. /admin-x vs
// /admin-xy) does not match.
func IsUnderPath(requestPath, adminPath string) bool {
	return requestPath == adminPath || strings.HasPrefix(requestPath, adminPath+"/")
}

// Join concatenates a suffix onto the admin path, avoiding a double slash
// when the admin path is the root.
func Join(adminPath, suffix string) string {
	if suffix == "" {
		return adminPath
	}
	if !strings.HasPrefix(suffix, "/") {
		suffix = "/" + suffix
	}
	if adminPath == "/" {
		return suffix
	}
	return adminPath + suffix
}

func isDynamicToken(value string) bool {
	return dynamicPathTokens[strings.ToLower(strings.TrimSpace(value))]
}

// hashSeed mixes the seed through two 32-bit accumulators, one multiply-xor
// round per input byte, avalanches both, and combines them into a 53-bit
// value encoded in base 36. Deterministic across processes and platforms;
// not meant to resist preimage search.
func hashSeed(seed string) string {
	h1 := uint32(0xdeadbeef) ^ uint32(len(seed))
	h2 := uint32(0x41c6ce57) ^ uint32(len(seed))
	for i := 0; i < len(seed); i++ {
		ch := uint32(seed[i])
		h1 = (h1 ^ ch) * 2654435761
		h2 = (h2 ^ ch) * 1597334677
	}
	h1 = (h1 ^ (h1 >> 16)) * 2246822507
	h1 ^= (h2 ^ (h2 >> 13)) * 3266489909
	h2 = (h2 ^ (h2 >> 16)) * 2246822507
	h2 ^= (h1 ^ (h1 >> 13)) * 3266489909

	combined := uint64(h2&0x1fffff)<<32 | uint64(h1)
	return strconv.FormatUint(combined, 36)
}
