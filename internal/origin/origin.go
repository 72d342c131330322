package origin

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Null is the opaque origin browsers send from file:// pages and sandboxed
// frames.
const Null = "null"

// Normalize validates a browser Origin value and returns it as
// scheme://host[:port] with default ports stripped, plus the host[:port] part.
func Normalize(raw string) (normalized, host string, ok bool) {
	raw = strings.TrimSpace(raw)
	switch raw {
	case "":
		return "", "", false
	case Null:
		return Null, "", true
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.User != nil || u.RawQuery != "" || u.Fragment != "" || u.ForceQuery {
		return "", "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	host, ok = canonicalHost(u.Host, scheme)
	if !ok {
		return "", "", false
	}
	return scheme + "://" + host, host, true
}

// Allowed applies the origin policy to a WebSocket upgrade request.
//
// Requests without an Origin header are not from a browser and are allowed.
// With a non-empty allow list an origin must match an entry (or "*"); with an
// empty list the origin host must equal the request Host. Schemes are not
// compared so a TLS-terminating proxy in front of the relay still works.
func Allowed(r *http.Request, allowed []string) bool {
	raw := r.Header.Get("Origin")
	if raw == "" {
		return true
	}
	normalized, host, ok := Normalize(raw)
	if !ok {
		return false
	}

	if len(allowed) > 0 {
		for _, a := range allowed {
			if a == "*" || a == normalized {
				return true
			}
		}
		return false
	}

	if normalized == Null {
		return false
	}
	scheme := normalized[:strings.Index(normalized, "://")]
	requestHost, ok := canonicalHost(r.Host, scheme)
	return ok && requestHost == host
}

func canonicalHost(authority, scheme string) (string, bool) {
	authority = strings.ToLower(strings.TrimSpace(authority))
	if authority == "" {
		return "", false
	}

	hostname, port := authority, ""
	if h, p, err := net.SplitHostPort(authority); err == nil {
		if p == "" {
			return "", false
		}
		hostname, port = h, p
	} else if strings.HasPrefix(authority, "[") && strings.HasSuffix(authority, "]") {
		hostname = authority[1 : len(authority)-1]
	} else if strings.Contains(authority, ":") {
		return "", false
	}
	if hostname == "" {
		return "", false
	}

	if port != "" {
		n, err := strconv.ParseUint(port, 10, 16)
		if err != nil || n == 0 {
			return "", false
		}
		if (scheme == "http" && n == 80) || (scheme == "https" && n == 443) {
			port = ""
		} else {
			port = strconv.FormatUint(n, 10)
		}
	}

	host := hostname
	if strings.Contains(hostname, ":") {
		host = "[" + hostname + "]"
	}
	if port != "" {
		host += ":" + port
	}
	return host, true
}
