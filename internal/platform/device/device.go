// Package device turns User-Agent headers into short labels for logs.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// DisplayName extracts a human-readable device name from a User-Agent string,
// formatted as "Browser on OS" (e.g. "Chrome on macOS", "Safari on iPhone").
func DisplayName(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgent)
	if ua.Bot() {
		return "Bot"
	}
	browser, _ := ua.Browser()
	os := ua.OS()

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			return strings.TrimSpace(browser + " on " + platform)
		}
	}

	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}
