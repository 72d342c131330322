package origin

import (
	"net/http/httptest"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw      string
		want     string
		wantHost string
		ok       bool
	}{
		{raw: "HTTPS://Example.COM:443", want: "https://example.com", wantHost: "example.com", ok: true},
		{raw: "http://localhost:5173/", want: "http://localhost:5173", wantHost: "localhost:5173", ok: true},
		{raw: "http://[::1]:8999", want: "http://[::1]:8999", wantHost: "[::1]:8999", ok: true},
		{raw: "null", want: "null", ok: true},
		{raw: "", ok: false},
		{raw: "ftp://example.com", ok: false},
		{raw: "https://example.com/path", ok: false},
		{raw: "https://example.com/?q=1", ok: false},
		{raw: "https://user@example.com", ok: false},
		{raw: "https://example.com/#frag", ok: false},
		{raw: "https://example.com:0", ok: false},
		{raw: "https://example.com:99999", ok: false},
	}
	for _, tc := range cases {
		got, host, ok := Normalize(tc.raw)
		if ok != tc.ok {
			t.Fatalf("Normalize(%q) ok=%v, want %v", tc.raw, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if got != tc.want || host != tc.wantHost {
			t.Fatalf("Normalize(%q)=(%q, %q), want (%q, %q)", tc.raw, got, host, tc.want, tc.wantHost)
		}
	}
}

func TestAllowed(t *testing.T) {
	cases := []struct {
		name    string
		host    string
		origin  string
		allowed []string
		want    bool
	}{
		{name: "no origin header", host: "relay.example.com", want: true},
		{name: "same host", host: "relay.example.com:8999", origin: "https://relay.example.com:8999", want: true},
		{name: "same host default port", host: "relay.example.com:443", origin: "https://relay.example.com", want: true},
		{name: "scheme ignored behind proxy", host: "relay.example.com", origin: "https://relay.example.com", want: true},
		{name: "port mismatch", host: "relay.example.com", origin: "https://relay.example.com:80", want: false},
		{name: "different host", host: "relay.example.com", origin: "https://evil.example.com", want: false},
		{name: "null rejected by default", host: "relay.example.com", origin: "null", want: false},
		{name: "allow list match", host: "relay.example.com", origin: "https://app.example.com", allowed: []string{"https://app.example.com"}, want: true},
		{name: "allow list miss", host: "relay.example.com", origin: "https://relay.example.com", allowed: []string{"https://app.example.com"}, want: false},
		{name: "wildcard", host: "relay.example.com", origin: "https://anything.test", allowed: []string{"*"}, want: true},
		{name: "malformed origin", host: "relay.example.com", origin: "https://relay.example.com/x", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "http://"+tc.host+"/", nil)
			r.Host = tc.host
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}
			if got := Allowed(r, tc.allowed); got != tc.want {
				t.Fatalf("Allowed=%v, want %v", got, tc.want)
			}
		})
	}
}
