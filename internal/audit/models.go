package audit

import "time"

// Event is emitted from the authorization flow to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// The passport number is never recorded in clear, and TOTP codes are never
// recorded at all.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	SessionID    string    `json:"session_id"`
	ClientID     string    `json:"client_id,omitempty"`
	Action       string    `json:"action"`
	IdentityHash string    `json:"identity_hash,omitempty"`
	Decision     string    `json:"decision,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

type Action string

const (
	ActionSessionStarted Action = "session_started"
	ActionScanRequested  Action = "scan_requested"
	ActionScanRejected   Action = "scan_rejected"
	ActionScanFailed     Action = "scan_failed"
	ActionScanConfirmed  Action = "scan_confirmed"
	ActionScanExpired    Action = "scan_expired"
	ActionScanCancelled  Action = "scan_cancelled"
	ActionDecision       Action = "decision"
	ActionSessionClosed  Action = "session_closed"
)
