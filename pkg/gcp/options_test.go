package gcp

import (
	"testing"

	"github.com/angelmondragon/harvestlink-backend/pkg/config"
)

func TestClientOptions(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.GCPConfig
		want int
	}{
		{"json wins", config.GCPConfig{CredentialsJSON: `{"dummy":"value"}`, ApplicationCredentials: "/tmp/creds"}, 1},
		{"file", config.GCPConfig{ApplicationCredentials: "/tmp/creds"}, 1},
		{"default credentials", config.GCPConfig{}, 0},
		{"blank json", config.GCPConfig{CredentialsJSON: "  "}, 0},
	}
	for _, tc := range cases {
		if got := len(ClientOptions(tc.cfg)); got != tc.want {
			t.Fatalf("%s: expected %d options, got %d", tc.name, tc.want, got)
		}
	}
}
