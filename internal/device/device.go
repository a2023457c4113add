// Package device turns a User-Agent header into a short human-readable
// label. The label is stored on pairing proposals so the counter-party can
// see what is asking to pair before confirming it.
package device

import (
	"fmt"
	"strings"

	"github.com/mssola/useragent"
)

const maxLabelLength = 64

// Label extracts a "Browser on OS" display name from a User-Agent string.
func Label(userAgentString string) string {
	if strings.TrimSpace(userAgentString) == "" {
		return "Unknown device"
	}

	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	os := ua.OS()

	browser = strings.TrimSpace(browser)
	os = strings.TrimSpace(os)

	var label string
	switch {
	case browser != "" && os != "":
		label = fmt.Sprintf("%s on %s", browser, os)
	case browser != "":
		label = browser
	case os != "":
		label = os
	default:
		return "Unknown device"
	}

	if len(label) > maxLabelLength {
		label = label[:maxLabelLength]
	}
	return label
}
