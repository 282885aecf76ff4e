package config

import "testing"

func TestICEServers(t *testing.T) {
	cfg := &Config{ICEServerURLs: []string{
		"stun:stun.l.google.com:19302",
		" turns:turn.example.com:5349?alice:s3cret ",
		"",
	}}

	servers, err := cfg.ICEServers()
	if err != nil {
		t.Fatalf("ICEServers: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if servers[0].URLs[0] != "stun:stun.l.google.com:19302" || servers[0].Username != "" {
		t.Fatalf("unexpected stun entry %+v", servers[0])
	}
	if servers[1].URLs[0] != "turns:turn.example.com:5349" ||
		servers[1].Username != "alice" || servers[1].Credential != "s3cret" {
		t.Fatalf("unexpected turn entry %+v", servers[1])
	}
}

func TestICEServersRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"http scheme", "http://example.com"},
		{"turn without credentials", "turn:turn.example.com:3478"},
		{"malformed credentials", "turn:turn.example.com:3478?aliceonly"},
		{"empty credential", "turn:turn.example.com:3478?alice:"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{ICEServerURLs: []string{tc.url}}
			if _, err := cfg.ICEServers(); err == nil {
				t.Fatalf("expected error for %q", tc.url)
			}
		})
	}
}
