package authflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"

	"passport-id/internal/audit"
	"passport-id/internal/authflow/metrics"
	"passport-id/internal/authflow/mocks"
	"passport-id/internal/authflow/models"
	"passport-id/internal/client"
	"passport-id/internal/identity"
	"passport-id/internal/platform/config"
	"passport-id/internal/platform/privacy"
	"passport-id/internal/scan"
	dErrors "passport-id/pkg/domain-errors"
)

type SessionSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	mockScan *mocks.MockScanService
	tickers  *tickerFactory
	clock    *fakeClock
	store    *audit.InMemoryStore
	manager  *Manager
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockScan = mocks.NewMockScanService(s.ctrl)
	s.tickers = &tickerFactory{}
	s.clock = newFakeClock()
	s.store = audit.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.manager = NewManager(
		client.NewGate(client.NewStatic(config.DefaultClients), logger),
		s.mockScan,
		Config{PollInterval: time.Second, PollTimeout: 5 * time.Minute, AuthorizeEndpoint: "/api/authorize"},
		WithLogger(logger),
		WithMetrics(metrics.NewWithRegisterer(prometheus.NewRegistry())),
		WithAuditPublisher(audit.NewPublisher(s.store, audit.WithClock(s.clock.Now))),
		WithTickerFactory(s.tickers.New),
		WithClock(s.clock.Now),
	)
}

func (s *SessionSuite) TearDownTest() {
	s.manager.CloseAll()
	s.ctrl.Finish()
}

func (s *SessionSuite) start(rawQuery string) *Session {
	q, err := url.ParseQuery(rawQuery)
	s.Require().NoError(err)
	return s.manager.Start(context.Background(), q)
}

func (s *SessionSuite) waitPhase(sess *Session, phase models.Phase) {
	s.Require().Eventually(func() bool { return sess.Phase() == phase }, time.Second, time.Millisecond,
		"expected phase %s, got %s", phase, sess.Phase())
}

func (s *SessionSuite) waitSettled(sess *Session) {
	s.Require().Eventually(func() bool { return !sess.Snapshot().FormPending }, time.Second, time.Millisecond)
}

func (s *SessionSuite) enterWaiting(sess *Session, input string, id identity.Identity) {
	s.mockScan.EXPECT().Open(gomock.Any(), id).Return(nil)
	s.Require().NoError(sess.SetIdentityInput(input))
	s.Require().NoError(sess.Submit(context.Background()))
	s.waitPhase(sess, models.PhaseWaitForScan)
}

func (s *SessionSuite) confirm(sess *Session, id identity.Identity, totp bool) {
	s.mockScan.EXPECT().Status(gomock.Any(), id).Return(scan.Status{Confirmed: true, TOTPNeeded: totp}, nil)
	s.tickers.Last().Fire(s.T())
	s.waitPhase(sess, models.PhaseAuthorize)
}

func (s *SessionSuite) TestStart() {
	s.Run("valid client enters number entry", func() {
		sess := s.start("client_id=dashboard&scope=user:read%20user")
		st := sess.Snapshot()
		s.Equal(models.PhaseEnterNumber, st.Phase)
		s.Equal("dashboard", st.ClientID)
		s.Equal([]string{"user:read", "user"}, st.Scopes)
		s.False(st.CanSubmit)
		s.False(st.IdentityValid)
		s.Nil(st.Identity)
	})

	s.Run("repeated scopes keep their order", func() {
		st := s.start("client_id=dashboard&scope=user%20user:read%20user").Snapshot()
		s.Equal([]string{"user", "user:read", "user"}, st.Scopes)
	})

	s.Run("empty scope yields empty list", func() {
		st := s.start("client_id=passports").Snapshot()
		s.Empty(st.Scopes)
		s.NotNil(st.Scopes)
	})

	for _, query := range []string{"client_id=evil", "", "client_id=Dashboard", "scope=user"} {
		s.Run("no client for "+query, func() {
			sess := s.start(query)
			st := sess.Snapshot()
			s.Equal(models.PhaseNoClient, st.Phase)
			s.Equal(models.ErrorCodeInvalidClient, st.ErrorCode)
			s.NotEmpty(st.ErrorMessage)
			s.False(st.CanSubmit)
			s.False(st.CanDecide)

			s.True(dErrors.HasCode(sess.SetIdentityInput("42"), dErrors.CodeInvalidClient))
			s.True(dErrors.HasCode(sess.Submit(context.Background()), dErrors.CodeInvalidClient))
			_, err := sess.Decide(context.Background(), true)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidClient))
		})
	}
}

func (s *SessionSuite) TestStart_SessionParameterSkipsScan() {
	sess := s.start("client_id=authority&session=abc&scope=user")
	st := sess.Snapshot()
	s.Equal(models.PhaseAuthorize, st.Phase)
	s.False(st.TOTPRequired)
	s.True(st.CanDecide)

	target, err := sess.Decide(context.Background(), true)
	s.Require().NoError(err)
	u, err := url.Parse(target)
	s.Require().NoError(err)
	q := u.Query()
	s.Equal("true", q.Get("allow"))
	s.Equal("0", q.Get("id"))
	s.Equal("abc", q.Get("session"))
	s.Equal("authority", q.Get("client_id"))
	s.Equal(0, s.tickers.Started())
}

func (s *SessionSuite) TestSetIdentityInput_DerivesValidity() {
	sess := s.start("client_id=dashboard")

	for _, tc := range []struct {
		input string
		valid bool
		id    uint32
	}{
		{input: "42", valid: true, id: 42},
		{input: "3.0007", valid: true, id: 7},
		{input: "12345", valid: false},
		{input: "4 2", valid: false},
		{input: "", valid: false},
	} {
		s.Require().NoError(sess.SetIdentityInput(tc.input))
		st := sess.Snapshot()
		s.Equal(tc.valid, st.IdentityValid, tc.input)
		s.Equal(tc.valid, st.CanSubmit, tc.input)
		if tc.valid {
			s.Require().NotNil(st.Identity)
			s.Equal(tc.id, *st.Identity)
		}
	}
}

func (s *SessionSuite) TestSubmit_InvalidInputNeverCallsScanService() {
	sess := s.start("client_id=dashboard")
	for _, input := range []string{"", "12345", "abc", "33.1", " 42"} {
		s.Require().NoError(sess.SetIdentityInput(input))
		err := sess.Submit(context.Background())
		s.True(dErrors.HasCode(err, dErrors.CodeValidation), input)
		s.Equal(models.PhaseEnterNumber, sess.Phase())
		s.False(sess.Snapshot().FormPending)
	}
}

func (s *SessionSuite) TestSubmit_ImpossibleWhilePending() {
	sess := s.start("client_id=dashboard")
	release := make(chan struct{})
	s.mockScan.EXPECT().Open(gomock.Any(), identity.Identity(42)).DoAndReturn(func(ctx context.Context, _ identity.Identity) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	s.Require().NoError(sess.SetIdentityInput("42"))
	s.Require().NoError(sess.Submit(context.Background()))

	st := sess.Snapshot()
	s.True(st.FormPending)
	s.False(st.CanSubmit)
	s.Equal(models.PhaseEnterNumber, st.Phase)

	err := sess.Submit(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	close(release)
	s.waitPhase(sess, models.PhaseWaitForScan)
	s.Equal(1, s.tickers.Started())
}

func (s *SessionSuite) TestSetIdentityInput_FrozenWhilePending() {
	sess := s.start("client_id=dashboard")
	release := make(chan struct{})
	s.mockScan.EXPECT().Open(gomock.Any(), identity.Identity(42)).DoAndReturn(func(ctx context.Context, _ identity.Identity) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	s.Require().NoError(sess.SetIdentityInput("42"))
	s.Require().NoError(sess.Submit(context.Background()))

	err := sess.SetIdentityInput("77")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal("42", sess.Snapshot().IdentityInput)

	close(release)
	s.waitPhase(sess, models.PhaseWaitForScan)
	st := sess.Snapshot()
	s.Equal("42", st.IdentityInput)
	s.Require().NotNil(st.Identity)
	s.Equal(uint32(42), *st.Identity)

	s.Require().NoError(sess.CancelScan(context.Background()))
	s.Equal("42", sess.Snapshot().IdentityInput)
}

func (s *SessionSuite) TestSubmit_Rejected() {
	sess := s.start("client_id=dashboard")
	s.mockScan.EXPECT().Open(gomock.Any(), identity.Identity(99)).
		Return(&scan.Error{Category: scan.CategoryRejected, StatusCode: 404, Message: "scan request rejected"})

	s.Require().NoError(sess.SetIdentityInput("3.0099"))
	s.Require().NoError(sess.Submit(context.Background()))
	s.waitSettled(sess)

	st := sess.Snapshot()
	s.Equal(models.PhaseEnterNumber, st.Phase)
	s.True(st.FormError)
	s.False(st.FormPending)
	s.True(st.CanSubmit)
	s.Equal(models.ErrorCodeScanRejected, st.ErrorCode)
	s.Contains(st.ErrorMessage, "90 seconds")
	s.Equal(0, s.tickers.Started())

	s.Require().NoError(sess.SetIdentityInput("3.0098"))
	st = sess.Snapshot()
	s.False(st.FormError)
	s.Empty(st.ErrorCode)
}

func (s *SessionSuite) TestSubmit_TransientFailure() {
	sess := s.start("client_id=dashboard")
	s.mockScan.EXPECT().Open(gomock.Any(), identity.Identity(42)).
		Return(&scan.Error{Category: scan.CategoryUnavailable, StatusCode: 503, Message: "scan service error"})

	s.Require().NoError(sess.SetIdentityInput("42"))
	s.Require().NoError(sess.Submit(context.Background()))
	s.waitSettled(sess)

	st := sess.Snapshot()
	s.Equal(models.PhaseEnterNumber, st.Phase)
	s.False(st.FormError)
	s.True(st.CanSubmit)
	s.Equal(models.ErrorCodeScanFailed, st.ErrorCode)
}

func (s *SessionSuite) TestWaitForScan_StartsAndStopsExactlyOneTicker() {
	sess := s.start("client_id=dashboard")
	s.enterWaiting(sess, "42", 42)

	s.Equal(1, s.tickers.Started())
	s.Equal(0, s.tickers.Stopped())
	st := sess.Snapshot()
	s.True(st.CanCancel)
	s.False(st.CanSubmit)

	s.confirm(sess, 42, false)
	s.Eventually(func() bool { return s.tickers.Stopped() == 1 }, time.Second, time.Millisecond)
	s.Equal(1, s.tickers.Started())
}

func (s *SessionSuite) TestPoll_PendingChangesNothing() {
	sess := s.start("client_id=dashboard")
	s.enterWaiting(sess, "42", 42)
	before := sess.Snapshot()

	s.mockScan.EXPECT().Status(gomock.Any(), identity.Identity(42)).Return(scan.Status{}, nil).AnyTimes()
	for range 3 {
		s.tickers.Last().Fire(s.T())
	}

	after := sess.Snapshot()
	s.Equal(models.PhaseWaitForScan, after.Phase)
	s.Equal(before.TOTPRequired, after.TOTPRequired)
	s.Equal(before.Identity, after.Identity)
	s.Equal(0, s.tickers.Stopped())
}

func (s *SessionSuite) TestPoll_ErrorsKeepPolling() {
	sess := s.start("client_id=dashboard")
	s.enterWaiting(sess, "42", 42)

	gomock.InOrder(
		s.mockScan.EXPECT().Status(gomock.Any(), identity.Identity(42)).
			Return(scan.Status{}, &scan.Error{Category: scan.CategoryUnavailable, Message: "down"}),
		s.mockScan.EXPECT().Status(gomock.Any(), identity.Identity(42)).
			Return(scan.Status{}, errors.New("connection reset")),
		s.mockScan.EXPECT().Status(gomock.Any(), identity.Identity(42)).
			Return(scan.Status{Confirmed: true}, nil),
	)
	for range 3 {
		s.tickers.Last().Fire(s.T())
	}

	s.waitPhase(sess, models.PhaseAuthorize)
	s.False(sess.Snapshot().TOTPRequired)
}

func (s *SessionSuite) TestAuthorize_TOTPGatesDecision() {
	sess := s.start("client_id=passports&scope=user")
	s.enterWaiting(sess, "42", 42)
	s.confirm(sess, 42, true)

	st := sess.Snapshot()
	s.True(st.TOTPRequired)
	s.False(st.CanDecide)

	_, err := sess.Decide(context.Background(), true)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = sess.Decide(context.Background(), false)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Require().NoError(sess.SetTOTPCode("12345"))
	s.False(sess.Snapshot().CanDecide)

	s.Require().NoError(sess.SetTOTPCode("123456"))
	st = sess.Snapshot()
	s.True(st.CanDecide)
	s.Equal(6, st.TOTPDigits)

	s.Require().NoError(sess.SetTOTPCode("1234567"))
	s.Equal(6, sess.Snapshot().TOTPDigits, "longer input is ignored")

	s.Require().NoError(sess.SetTOTPCode("12a"))
	s.Equal(0, sess.Snapshot().TOTPDigits, "non-digit input clears the code")
	s.False(sess.Snapshot().CanDecide)

	s.Require().NoError(sess.SetTOTPCode("654321"))
	target, err := sess.Decide(context.Background(), false)
	s.Require().NoError(err)

	u, err := url.Parse(target)
	s.Require().NoError(err)
	s.Equal("/api/authorize", u.Path)
	q := u.Query()
	s.Equal("false", q.Get("allow"))
	s.Equal("42", q.Get("id"))
	s.Equal("654321", q.Get("code"))
	s.Equal("passports", q.Get("client_id"))
	s.Equal("user", q.Get("scope"))
	s.Equal(models.PhaseClosed, sess.Phase())
}

func (s *SessionSuite) TestAuthorize_NoTOTPOmitsCode() {
	sess := s.start("client_id=dashboard")
	s.enterWaiting(sess, "42", 42)
	s.confirm(sess, 42, false)

	s.True(sess.Snapshot().CanDecide)
	s.Require().NoError(sess.SetTOTPCode("111111"))

	target, err := sess.Decide(context.Background(), true)
	s.Require().NoError(err)
	u, _ := url.Parse(target)
	s.False(u.Query().Has("code"))
	s.Equal("true", u.Query().Get("allow"))
}

func (s *SessionSuite) TestCancelScan_ReturnsToNumberEntry() {
	sess := s.start("client_id=dashboard")
	s.enterWaiting(sess, "3.42", 42)

	s.Require().NoError(sess.CancelScan(context.Background()))
	st := sess.Snapshot()
	s.Equal(models.PhaseEnterNumber, st.Phase)
	s.Equal("3.42", st.IdentityInput)
	s.True(st.CanSubmit)
	s.Equal(1, s.tickers.Stopped())

	s.enterWaiting(sess, "3.42", 42)
	s.Equal(2, s.tickers.Started())
	s.Equal(1, s.tickers.Stopped())

	s.True(dErrors.HasCode(sess.SetIdentityInput("1"), dErrors.CodeInvariantViolation))
}

func (s *SessionSuite) TestCancelScan_WrongPhase() {
	sess := s.start("client_id=dashboard")
	err := sess.CancelScan(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *SessionSuite) TestPollTimeout_ReturnsToNumberEntry() {
	sess := s.start("client_id=dashboard")
	s.enterWaiting(sess, "42", 42)

	s.clock.Advance(5 * time.Minute)
	s.tickers.Last().Fire(s.T())

	s.waitPhase(sess, models.PhaseEnterNumber)
	st := sess.Snapshot()
	s.Equal(models.ErrorCodeScanExpired, st.ErrorCode)
	s.Equal("42", st.IdentityInput)
	s.False(st.FormPending)
	s.Eventually(func() bool { return s.tickers.Stopped() == 1 }, time.Second, time.Millisecond)
}

func (s *SessionSuite) TestStaleOpenResultIsDropped() {
	sess := s.start("client_id=dashboard")
	s.mockScan.EXPECT().Open(gomock.Any(), identity.Identity(42)).DoAndReturn(func(ctx context.Context, _ identity.Identity) error {
		<-ctx.Done()
		return nil
	})

	s.Require().NoError(sess.SetIdentityInput("42"))
	s.Require().NoError(sess.Submit(context.Background()))
	sess.Close()

	s.Equal(models.PhaseClosed, sess.Phase())
	s.Equal(0, s.tickers.Started())
}

func (s *SessionSuite) TestClose_StopsPollerWithoutLeaks() {
	defer goleak.VerifyNone(s.T(), goleak.IgnoreCurrent())

	sess := s.start("client_id=dashboard")
	s.enterWaiting(sess, "42", 42)

	sess.Close()
	sess.Close()

	s.Equal(1, s.tickers.Stopped())
	s.Equal(models.PhaseClosed, sess.Phase())
	s.True(dErrors.HasCode(sess.Submit(context.Background()), dErrors.CodeNotFound))
	s.True(dErrors.HasCode(sess.CancelScan(context.Background()), dErrors.CodeNotFound))
	_, err := sess.Decide(context.Background(), true)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *SessionSuite) TestDecide_WrongPhase() {
	sess := s.start("client_id=dashboard")
	_, err := sess.Decide(context.Background(), true)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	s.True(dErrors.HasCode(sess.SetTOTPCode("123456"), dErrors.CodeInvariantViolation))
}

func (s *SessionSuite) TestAudit_HashesIdentityAndNeverRecordsCode() {
	sess := s.start("client_id=passports")
	s.enterWaiting(sess, "42", 42)
	s.confirm(sess, 42, true)
	s.Require().NoError(sess.SetTOTPCode("246810"))
	_, err := sess.Decide(context.Background(), true)
	s.Require().NoError(err)

	events, err := s.store.ListBySession(context.Background(), sess.ID())
	s.Require().NoError(err)

	var actions []string
	for _, e := range events {
		actions = append(actions, e.Action)
		s.NotContains(e.Reason, "246810")
		s.NotContains(e.Decision, "246810")
		if e.IdentityHash != "" {
			s.Equal(privacy.HashIdentity(42), e.IdentityHash)
		}
		s.False(e.Timestamp.IsZero())
	}
	s.Equal([]string{
		string(audit.ActionSessionStarted),
		string(audit.ActionScanRequested),
		string(audit.ActionScanConfirmed),
		string(audit.ActionDecision),
	}, actions)
	s.Equal("allow", events[len(events)-1].Decision)
}

func (s *SessionSuite) TestAudit_FailuresAreLoggedNotReturned() {
	mockAudit := mocks.NewMockAuditPublisher(s.ctrl)
	mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("buffer closed")).AnyTimes()

	var logs strings.Builder
	m := NewManager(
		client.NewGate(client.NewStatic([]string{"dashboard"}), nil),
		s.mockScan,
		Config{},
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		WithAuditPublisher(mockAudit),
		WithTickerFactory(s.tickers.New),
	)
	defer m.CloseAll()

	q := url.Values{"client_id": {"dashboard"}}
	sess := m.Start(context.Background(), q)
	s.Equal(models.PhaseEnterNumber, sess.Phase())
	s.Contains(logs.String(), "failed to emit audit event")
}
