package pkg

import (
	"net"
	"net/http"
	"regexp"
	"strings"
)

var localDockerIpRegex = regexp.MustCompile(`^172\.\d{1,3}\.0\.1:\d{1,5}`)

func IPIsLocal(ipAddr string) bool {
	if strings.HasPrefix(ipAddr, "127.0.0.1:") {
		return true
	}

	// request coming from within a docker container ?
	return localDockerIpRegex.MatchString(ipAddr)
}

// ReadUserIP resolves the client network address, preferring the
// forwarding headers set by the reverse proxy in front of the service.
func ReadUserIP(r *http.Request) string {
	ipAddr := r.Header.Get("X-Real-Ip")
	if ipAddr == "" {
		if fwdFor := r.Header.Get("X-Forwarded-For"); fwdFor != "" {
			ipAddr = strings.TrimSpace(strings.Split(fwdFor, ",")[0])
		}
	}
	if ipAddr == "" {
		ipAddr = r.RemoteAddr
	}

	if IPIsLocal(ipAddr) {
		return "localhost"
	}

	if host, _, err := net.SplitHostPort(ipAddr); err == nil {
		return host
	}

	if ip := net.ParseIP(ipAddr); ip != nil {
		return ip.String()
	}

	return "unknown"
}

// RequestIsSecure reports whether the request arrived over TLS, directly
// or via a trusted forwarding proxy.
func RequestIsSecure(r *http.Request) bool {
	if fwdProto := r.Header.Get("X-Forwarded-Proto"); fwdProto != "" {
		proto := strings.ToLower(strings.TrimSpace(strings.Split(fwdProto, ",")[0]))
		return proto == "https"
	}
	return r.TLS != nil
}
