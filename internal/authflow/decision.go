package authflow

import (
	"fmt"
	"net/url"
	"strconv"

	"passport-id/internal/identity"
)

// Decision is the user's answer on the Authorize screen.
type Decision struct {
	Allow        bool
	Identity     identity.Identity
	TOTPRequired bool
	// TOTPCode is only sent when TOTPRequired is set.
	TOTPCode string
}

// EncodeDecision builds the navigation target for a decision: every original
// query parameter is kept, then allow and id are set, and code is set only
// when a second factor was required. Allow and Deny share the encoding.
func EncodeDecision(endpoint string, original url.Values, d Decision) (string, error) {
	target, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse authorize endpoint: %w", err)
	}

	params := make(url.Values, len(original)+3)
	for key, values := range original {
		params[key] = append([]string(nil), values...)
	}
	params.Set("allow", strconv.FormatBool(d.Allow))
	params.Set("id", d.Identity.String())
	if d.TOTPRequired {
		params.Set("code", d.TOTPCode)
	} else {
		params.Del("code")
	}

	target.RawQuery = params.Encode()
	return target.String(), nil
}
