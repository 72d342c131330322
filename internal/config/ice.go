package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
	"github.com/samber/lo"
)

const (
	envICEServersJSON = "CHAT_RELAY_ICE_SERVERS_JSON"
	envStunURLs       = "CHAT_RELAY_STUN_URLS"
	envTurnURLs       = "CHAT_RELAY_TURN_URLS"
	envTurnUsername   = "CHAT_RELAY_TURN_USERNAME"
	envTurnCredential = "CHAT_RELAY_TURN_CREDENTIAL"
)

var (
	errMissingURLs       = errors.New("missing urls")
	errTURNMissingCreds  = errors.New("turn urls require username and credential")
	errUnsupportedScheme = errors.New("unsupported url scheme")
)

// parseICEServersFromValues prefers the JSON form and falls back to the
// STUN/TURN convenience values.
func parseICEServersFromValues(iceServersJSON, stunURLs, turnURLs, turnUsername, turnCredential string) ([]webrtc.ICEServer, error) {
	if raw := strings.TrimSpace(iceServersJSON); raw != "" {
		servers, err := ParseICEServersJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envICEServersJSON, err)
		}
		return servers, nil
	}
	return ParseICEServers(stunURLs, turnURLs, turnUsername, turnCredential)
}

type iceServerEntry struct {
	URLs       urlList `json:"urls"`
	Username   string  `json:"username,omitempty"`
	Credential string  `json:"credential,omitempty"`
}

// urlList accepts both "urls": "stun:..." and "urls": ["stun:...", ...], as
// browsers do for RTCIceServer.
type urlList []string

func (u *urlList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*u = urlList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*u = many
	return nil
}

// ParseICEServersJSON parses a browser-style RTCIceServer array.
func ParseICEServersJSON(raw string) ([]webrtc.ICEServer, error) {
	var entries []iceServerEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}

	out := make([]webrtc.ICEServer, 0, len(entries))
	for i, entry := range entries {
		server := webrtc.ICEServer{
			URLs:     splitTrimmed(entry.URLs),
			Username: strings.TrimSpace(entry.Username),
		}
		if cred := strings.TrimSpace(entry.Credential); cred != "" {
			server.Credential = cred
		}
		if err := validateICEServer(server); err != nil {
			return nil, fmt.Errorf("iceServers[%d]: %w", i, err)
		}
		out = append(out, server)
	}
	return out, nil
}

// ParseICEServers builds at most two servers (one STUN, one TURN) from
// comma-separated URL lists.
func ParseICEServers(stunURLs, turnURLs, turnUsername, turnCredential string) ([]webrtc.ICEServer, error) {
	var servers []webrtc.ICEServer

	if urls := splitCommaSeparated(stunURLs); len(urls) > 0 {
		server := webrtc.ICEServer{URLs: urls}
		if err := validateICEServer(server); err != nil {
			return nil, fmt.Errorf("%s: %w", envStunURLs, err)
		}
		servers = append(servers, server)
	}

	if urls := splitCommaSeparated(turnURLs); len(urls) > 0 {
		server := webrtc.ICEServer{
			URLs:     urls,
			Username: strings.TrimSpace(turnUsername),
		}
		if cred := strings.TrimSpace(turnCredential); cred != "" {
			server.Credential = cred
		}
		if err := validateICEServer(server); err != nil {
			return nil, fmt.Errorf("%s: %w", envTurnURLs, err)
		}
		servers = append(servers, server)
	}

	return servers, nil
}

func splitCommaSeparated(value string) []string {
	return splitTrimmed(strings.Split(value, ","))
}

func splitTrimmed(parts []string) []string {
	out := lo.Compact(lo.Map(parts, func(part string, _ int) string {
		return strings.TrimSpace(part)
	}))
	if len(out) == 0 {
		return nil
	}
	return out
}

func validateICEServer(server webrtc.ICEServer) error {
	if len(server.URLs) == 0 {
		return errMissingURLs
	}

	needsCreds := false
	for _, url := range server.URLs {
		switch {
		case strings.HasPrefix(url, "stun:"), strings.HasPrefix(url, "stuns:"):
		case strings.HasPrefix(url, "turn:"), strings.HasPrefix(url, "turns:"):
			needsCreds = true
		default:
			return fmt.Errorf("%w: %q", errUnsupportedScheme, url)
		}
	}

	if needsCreds {
		cred, _ := server.Credential.(string)
		if server.Username == "" || cred == "" {
			return errTURNMissingCreds
		}
	}
	return nil
}
