package authflow

import (
	"context"
	"net/url"
	"sync"
	"time"

	"passport-id/internal/audit"
	"passport-id/internal/authflow/metrics"
	"passport-id/internal/authflow/models"
	"passport-id/internal/identity"
	"passport-id/internal/platform/privacy"
	"passport-id/internal/scan"
	dErrors "passport-id/pkg/domain-errors"
	strutil "passport-id/pkg/platform/strings"
)

const totpLength = 6

const (
	msgScanRejected  = "Scan failed. Either this passport doesn't exist or there's another active session. If you're sure this passport number exists, try again in 90 seconds."
	msgScanFailed    = "The scan service could not be reached. Try again."
	msgScanExpired   = "No passport scan was detected in time. Submit the number again to retry."
	msgInvalidClient = "No valid client id. This page is only reachable from an application authorized to authenticate with ID."
)

// Phase payloads. Exactly one is set, matching Session.phase.
type enterNumber struct {
	input     string
	pending   bool
	formError bool
	errorCode string
}

type waitForScan struct {
	input     string
	identity  identity.Identity
	poller    *poller
	startedAt time.Time
}

type authorize struct {
	identity     identity.Identity
	totpRequired bool
	totpCode     string
}

// Session is one authorization attempt.
//
// All state sits behind mu. Async work (scan-open and status polls) captures
// gen when it is launched and its result is applied only if gen is unchanged,
// so answers that arrive after the session has moved on are dropped.
type Session struct {
	id       string
	clientID string
	scopes   []string
	query    url.Values
	deps     *deps

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	gen        uint64
	phase      models.Phase
	enter      *enterNumber
	wait       *waitForScan
	auth       *authorize
	retired    *poller
	lastActive time.Time
}

func newSession(id string, query url.Values, d *deps, clientValid bool) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         id,
		clientID:   query.Get("client_id"),
		scopes:     strutil.SplitScopes(query.Get("scope")),
		query:      cloneValues(query),
		deps:       d,
		ctx:        ctx,
		cancel:     cancel,
		lastActive: d.now(),
	}

	switch {
	case !clientValid:
		s.phase = models.PhaseNoClient
	case query.Has("session"):
		// The authorize endpoint resolves the owner from its own session
		// cookie, so there is nothing to scan.
		s.setAuthorize(&authorize{})
	default:
		s.setEnterNumber(&enterNumber{})
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// ClientID returns the requesting client id as received.
func (s *Session) ClientID() string {
	return s.clientID
}

// LastActive returns the time of the last user interaction.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Phase returns the current phase.
func (s *Session) Phase() models.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SetIdentityInput replaces the passport number text and clears the previous
// error. The text is frozen while a scan request is pending.
func (s *Session) SetIdentityInput(raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(models.PhaseEnterNumber); err != nil {
		return err
	}
	if s.enter.pending {
		return dErrors.New(dErrors.CodeConflict, "a scan request is pending for the entered number")
	}
	s.enter.input = raw
	s.enter.formError = false
	s.enter.errorCode = ""
	s.touch()
	return nil
}

// Submit asks the scan service to open a scan window for the entered number.
// The request runs in the background; Snapshot shows it as pending until the
// answer arrives.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(models.PhaseEnterNumber); err != nil {
		return err
	}
	e := s.enter
	if e.pending {
		return dErrors.New(dErrors.CodeConflict, "a scan request is already pending")
	}
	if !identity.Valid(e.input) {
		return dErrors.New(dErrors.CodeValidation, "passport number must be up to four digits, optionally prefixed by a digit and a dot")
	}
	id, ok := identity.Resolve(e.input)
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "passport number is required")
	}

	e.pending = true
	e.formError = false
	e.errorCode = ""
	gen := s.advance()
	prev := s.retired
	s.touch()
	s.emit(ctx, audit.ActionScanRequested, id, "", "")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// A new poller must not overlap the previous one.
		if prev != nil {
			prev.wait()
		}
		err := s.deps.scan.Open(s.ctx, id)
		s.applyOpen(gen, id, err)
	}()
	return nil
}

func (s *Session) applyOpen(gen uint64, id identity.Identity, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.phase != models.PhaseEnterNumber {
		s.deps.observe(func(m *metrics.Metrics) { m.IncrementStaleDropped() })
		return
	}

	e := s.enter
	e.pending = false
	switch {
	case err == nil:
		s.deps.observe(func(m *metrics.Metrics) { m.IncrementScanOpen("success") })
		s.startWaiting(e.input, id)
	case scan.IsRejected(err):
		s.deps.observe(func(m *metrics.Metrics) { m.IncrementScanOpen("rejected") })
		e.formError = true
		e.errorCode = models.ErrorCodeScanRejected
		s.deps.logger.InfoContext(s.ctx, "scan request rejected",
			"session_id", s.id,
			"error", err,
		)
		s.emit(s.ctx, audit.ActionScanRejected, id, "", string(scan.GetCategory(err)))
	default:
		s.deps.observe(func(m *metrics.Metrics) { m.IncrementScanOpen("failure") })
		e.errorCode = models.ErrorCodeScanFailed
		s.deps.logger.ErrorContext(s.ctx, "scan request failed",
			"session_id", s.id,
			"error", err,
		)
		s.emit(s.ctx, audit.ActionScanFailed, id, "", string(scan.GetCategory(err)))
	}
}

// startWaiting enters WaitForScan and starts its poller. Caller holds mu.
func (s *Session) startWaiting(input string, id identity.Identity) {
	gen := s.advance()
	w := &waitForScan{input: input, identity: id, startedAt: s.deps.now()}
	w.poller = startPoller(s.ctx, &s.wg, s.deps.newTicker, s.deps.cfg.PollInterval, func(ctx context.Context) bool {
		return s.poll(ctx, gen, id)
	})
	s.deps.observe(func(m *metrics.Metrics) { m.PollerStarted() })
	s.setWaitForScan(w)
}

// poll runs one status check and reports whether polling should continue.
func (s *Session) poll(ctx context.Context, gen uint64, id identity.Identity) bool {
	if !s.checkDeadline(gen) {
		return false
	}
	status, err := s.deps.scan.Status(ctx, id)
	return s.applyPoll(ctx, gen, status, err)
}

func (s *Session) checkDeadline(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.phase != models.PhaseWaitForScan {
		return false
	}
	timeout := s.deps.cfg.PollTimeout
	if timeout <= 0 || s.deps.now().Sub(s.wait.startedAt) < timeout {
		return true
	}

	w := s.leaveWaiting()
	s.advance()
	s.setEnterNumber(&enterNumber{input: w.input, errorCode: models.ErrorCodeScanExpired})
	s.deps.logger.InfoContext(s.ctx, "scan window expired", "session_id", s.id)
	s.emit(s.ctx, audit.ActionScanExpired, w.identity, "", "")
	return false
}

func (s *Session) applyPoll(ctx context.Context, gen uint64, status scan.Status, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.phase != models.PhaseWaitForScan {
		s.deps.observe(func(m *metrics.Metrics) { m.IncrementStaleDropped() })
		return false
	}
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.deps.observe(func(m *metrics.Metrics) { m.IncrementScanPoll("error") })
		s.deps.logger.WarnContext(ctx, "scan status poll failed",
			"session_id", s.id,
			"category", scan.GetCategory(err),
			"error", err,
		)
		return true
	}
	if !status.Confirmed {
		s.deps.observe(func(m *metrics.Metrics) { m.IncrementScanPoll("pending") })
		return true
	}

	s.deps.observe(func(m *metrics.Metrics) { m.IncrementScanPoll("confirmed") })
	w := s.leaveWaiting()
	waited := s.deps.now().Sub(w.startedAt)
	s.deps.observe(func(m *metrics.Metrics) { m.ObserveScanWait(waited.Seconds()) })
	s.advance()
	s.setAuthorize(&authorize{identity: w.identity, totpRequired: status.TOTPNeeded})
	s.deps.logger.InfoContext(ctx, "passport scan confirmed",
		"session_id", s.id,
		"totp_required", status.TOTPNeeded,
	)
	s.emit(ctx, audit.ActionScanConfirmed, w.identity, "", "")
	return false
}

// leaveWaiting halts the current poller and keeps it as retired so the next
// poller can wait for it. Caller holds mu and is in WaitForScan.
func (s *Session) leaveWaiting() *waitForScan {
	w := s.wait
	w.poller.halt()
	s.retired = w.poller
	s.deps.observe(func(m *metrics.Metrics) { m.PollerStopped() })
	return w
}

// CancelScan stops waiting for the passport and returns to number entry
// with the previous input.
func (s *Session) CancelScan(ctx context.Context) error {
	s.mu.Lock()
	if err := s.requirePhase(models.PhaseWaitForScan); err != nil {
		s.mu.Unlock()
		return err
	}
	w := s.leaveWaiting()
	s.advance()
	s.setEnterNumber(&enterNumber{input: w.input})
	s.touch()
	s.emit(ctx, audit.ActionScanCancelled, w.identity, "", "")
	s.mu.Unlock()

	w.poller.wait()
	return nil
}

// SetTOTPCode updates the second-factor code. Input with a non-digit clears
// the code; input longer than six digits is ignored.
func (s *Session) SetTOTPCode(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requirePhase(models.PhaseAuthorize); err != nil {
		return err
	}
	switch {
	case !allDigits(code):
		s.auth.totpCode = ""
	case len(code) > totpLength:
	default:
		s.auth.totpCode = code
	}
	s.touch()
	return nil
}

// Decide records the user's answer, closes the session and returns the
// redirect target for the authorize endpoint.
func (s *Session) Decide(ctx context.Context, allow bool) (string, error) {
	s.mu.Lock()
	if err := s.requirePhase(models.PhaseAuthorize); err != nil {
		s.mu.Unlock()
		return "", err
	}
	a := s.auth
	if a.totpRequired && !validTOTP(a.totpCode) {
		s.mu.Unlock()
		return "", dErrors.New(dErrors.CodeValidation, "a 6-digit code is required")
	}

	d := Decision{Allow: allow, Identity: a.identity, TOTPRequired: a.totpRequired}
	if a.totpRequired {
		d.TOTPCode = a.totpCode
	}
	target, err := EncodeDecision(s.deps.cfg.AuthorizeEndpoint, s.query, d)
	if err != nil {
		s.mu.Unlock()
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode decision")
	}

	outcome := "deny"
	if allow {
		outcome = "allow"
	}
	s.deps.observe(func(m *metrics.Metrics) { m.IncrementDecision(outcome) })
	s.emit(ctx, audit.ActionDecision, a.identity, outcome, "")
	s.closeLocked()
	s.mu.Unlock()

	s.wg.Wait()
	return target, nil
}

// Close tears the session down: the poller is stopped, in-flight answers are
// discarded and every later operation fails. Close is idempotent and returns
// once all session goroutines have exited.
func (s *Session) Close() {
	s.mu.Lock()
	if s.phase != models.PhaseClosed {
		s.emit(s.ctx, audit.ActionSessionClosed, 0, "", string(s.phase))
		s.closeLocked()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Session) closeLocked() {
	if s.phase == models.PhaseWaitForScan {
		s.leaveWaiting()
	}
	s.advance()
	s.setClosed()
	s.cancel()
}

// Snapshot returns the current state and the actions available in it.
func (s *Session) Snapshot() models.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := models.State{
		SessionID: s.id,
		Phase:     s.phase,
		ClientID:  s.clientID,
		Scopes:    append([]string{}, s.scopes...),
	}

	switch s.phase {
	case models.PhaseEnterNumber:
		e := s.enter
		st.IdentityInput = e.input
		st.IdentityValid = identity.Valid(e.input)
		if id, ok := identity.Resolve(e.input); ok && st.IdentityValid {
			st.Identity = identityPtr(id)
		}
		st.FormPending = e.pending
		st.FormError = e.formError
		st.CanSubmit = st.IdentityValid && !e.pending
		st.ErrorCode = e.errorCode
		st.ErrorMessage = errorMessage(e.errorCode)
	case models.PhaseWaitForScan:
		st.IdentityInput = s.wait.input
		st.IdentityValid = true
		st.Identity = identityPtr(s.wait.identity)
		st.CanCancel = true
	case models.PhaseAuthorize:
		a := s.auth
		st.Identity = identityPtr(a.identity)
		st.TOTPRequired = a.totpRequired
		st.TOTPDigits = len(a.totpCode)
		st.CanDecide = !a.totpRequired || validTOTP(a.totpCode)
	case models.PhaseNoClient:
		st.ErrorCode = models.ErrorCodeInvalidClient
		st.ErrorMessage = msgInvalidClient
	}
	return st
}

func (s *Session) requirePhase(want models.Phase) error {
	switch s.phase {
	case want:
		return nil
	case models.PhaseClosed:
		return dErrors.New(dErrors.CodeNotFound, "session is closed")
	case models.PhaseNoClient:
		return dErrors.New(dErrors.CodeInvalidClient, "client_id is not recognized")
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "operation not allowed in phase "+string(s.phase))
	}
}

// advance invalidates every outstanding async result. Caller holds mu.
func (s *Session) advance() uint64 {
	s.gen++
	return s.gen
}

func (s *Session) touch() {
	s.lastActive = s.deps.now()
}

func (s *Session) setEnterNumber(e *enterNumber) {
	s.phase, s.enter, s.wait, s.auth = models.PhaseEnterNumber, e, nil, nil
}

func (s *Session) setWaitForScan(w *waitForScan) {
	s.phase, s.enter, s.wait, s.auth = models.PhaseWaitForScan, nil, w, nil
}

func (s *Session) setAuthorize(a *authorize) {
	s.phase, s.enter, s.wait, s.auth = models.PhaseAuthorize, nil, nil, a
}

func (s *Session) setClosed() {
	s.phase, s.enter, s.wait, s.auth = models.PhaseClosed, nil, nil, nil
}

func (s *Session) emit(ctx context.Context, action audit.Action, id identity.Identity, decision, reason string) {
	if s.deps.audit == nil {
		return
	}
	event := audit.Event{
		SessionID: s.id,
		ClientID:  s.clientID,
		Action:    string(action),
		Decision:  decision,
		Reason:    reason,
	}
	if id != 0 {
		event.IdentityHash = privacy.HashIdentity(uint32(id))
	}
	if err := s.deps.audit.Emit(ctx, event); err != nil {
		s.deps.logger.WarnContext(ctx, "failed to emit audit event",
			"session_id", s.id,
			"action", action,
			"error", err,
		)
	}
}

func errorMessage(code string) string {
	switch code {
	case models.ErrorCodeScanRejected:
		return msgScanRejected
	case models.ErrorCodeScanFailed:
		return msgScanFailed
	case models.ErrorCodeScanExpired:
		return msgScanExpired
	default:
		return ""
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validTOTP(code string) bool {
	return len(code) == totpLength && allDigits(code)
}

func identityPtr(id identity.Identity) *uint32 {
	v := uint32(id)
	return &v
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
