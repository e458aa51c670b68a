// Package models holds the observable shape of an authorization session.
package models

// Phase is the screen a session is on.
type Phase string

const (
	PhaseEnterNumber Phase = "enter_number"
	PhaseWaitForScan Phase = "wait_for_scan"
	PhaseAuthorize   Phase = "authorize"
	PhaseNoClient    Phase = "no_client"
	// PhaseClosed marks a session that has been decided or torn down.
	PhaseClosed Phase = "closed"
)

// Error codes surfaced in State.ErrorCode.
const (
	ErrorCodeScanRejected  = "scan_rejected"
	ErrorCodeScanFailed    = "scan_failed"
	ErrorCodeScanExpired   = "scan_expired"
	ErrorCodeInvalidClient = "invalid_client"
)

// State is a point-in-time snapshot of a session, including which actions the
// UI should offer.
type State struct {
	SessionID string   `json:"session_id"`
	Phase     Phase    `json:"phase"`
	ClientID  string   `json:"client_id"`
	Scopes    []string `json:"scopes"`

	IdentityInput string  `json:"identity_input"`
	IdentityValid bool    `json:"identity_valid"`
	Identity      *uint32 `json:"identity,omitempty"`

	FormPending bool `json:"form_pending"`
	FormError   bool `json:"form_error"`

	TOTPRequired bool `json:"totp_required"`
	TOTPDigits   int  `json:"totp_digits"`

	CanSubmit bool `json:"can_submit"`
	CanCancel bool `json:"can_cancel"`
	CanDecide bool `json:"can_decide"`

	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}
