// Package device turns raw user-agent strings into the display names shown
// alongside session records.
package device

import (
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent renders a short "Browser on Platform" label for a session.
// Unknown or empty agents degrade gracefully instead of erroring; this is
// display metadata, never an input to authorization.
func ParseUserAgent(rawUserAgent string) string {
	if strings.TrimSpace(rawUserAgent) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(rawUserAgent)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	platform := ua.OSInfo().Name
	if platform == "" {
		platform = ua.Platform()
	}
	if platform == "" {
		platform = "Unknown Platform"
	}

	return fmt.Sprintf("%s on %s", browser, platform)
}
