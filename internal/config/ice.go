package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

// ICEServers turns the configured URL list into the shape browser clients
// feed their RTCPeerConnection. TURN entries carry embedded credentials as
// "turn:host?username:credential" since the config file is already the
// trust boundary.
func (c *Config) ICEServers() ([]webrtc.ICEServer, error) {
	out := make([]webrtc.ICEServer, 0, len(c.ICEServerURLs))
	for i, raw := range c.ICEServerURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		server, err := parseICEServer(raw)
		if err != nil {
			return nil, fmt.Errorf("ice_servers[%d]: %w", i, err)
		}
		out = append(out, server)
	}
	return out, nil
}

func parseICEServer(raw string) (webrtc.ICEServer, error) {
	url, creds, hasCreds := strings.Cut(raw, "?")
	if !isAllowedICEScheme(url) {
		return webrtc.ICEServer{}, fmt.Errorf("unsupported url scheme: %q", url)
	}

	server := webrtc.ICEServer{URLs: []string{url}}
	isTurn := strings.HasPrefix(url, "turn:") || strings.HasPrefix(url, "turns:")

	if hasCreds {
		username, credential, ok := strings.Cut(creds, ":")
		if !ok || username == "" || credential == "" {
			return webrtc.ICEServer{}, errors.New("credentials must be username:credential")
		}
		server.Username = username
		server.Credential = credential
	} else if isTurn {
		return webrtc.ICEServer{}, errors.New("turn urls require credentials")
	}
	return server, nil
}

func isAllowedICEScheme(url string) bool {
	switch {
	case strings.HasPrefix(url, "stun:"),
		strings.HasPrefix(url, "stuns:"),
		strings.HasPrefix(url, "turn:"),
		strings.HasPrefix(url, "turns:"):
		return true
	default:
		return false
	}
}
