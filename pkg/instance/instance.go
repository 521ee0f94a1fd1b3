package instance

import (
	"os"
	"strings"
)

// ID names the running process in logs. HARVESTLINK_INSTANCE_ID wins, then
// the platform dyno name, then the hostname.
func ID(service string) string {
	for _, key := range []string{"HARVESTLINK_INSTANCE_ID", "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	if service == "" {
		service = "harvestlink"
	}
	return service + "-0"
}
