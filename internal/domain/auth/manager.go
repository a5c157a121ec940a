// Package auth runs the interactive login flows that mint credentials for
// new accounts: QR scan and phone code, both with optional 2FA.
package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"rsc.io/qr"

	"github.com/Conte777/TgFleet/internal/domain"
	"github.com/Conte777/TgFleet/internal/domain/account"
	accounterrors "github.com/Conte777/TgFleet/internal/domain/account/errors"
	"github.com/Conte777/TgFleet/internal/domain/auth/entities"
	autherrors "github.com/Conte777/TgFleet/internal/domain/auth/errors"
)

// Connection policy for opening a login session.
const (
	openAttempts = 3
	openTimeout  = 15 * time.Second
	openBackoff  = 500 * time.Millisecond
)

type qrSession struct {
	entities.QRSession
	pending domain.PendingLogin
	cancel  context.CancelFunc
	proxyID string // explicit override, carried across a restart
}

type phoneSession struct {
	entities.PhoneSession
	pending  domain.PendingLogin
	codeHash string
}

// Manager owns every in-flight login session, keyed by the account id the
// login will register.
type Manager struct {
	backend  domain.LoginBackend
	registry *account.Registry
	proxies  account.ProxyResolver
	outcomes account.OutcomeRecorder

	mu    sync.Mutex
	qr    map[string]*qrSession
	phone map[string]*phoneSession

	now        func() time.Time
	qrDeadline time.Duration
	logger     zerolog.Logger
}

func NewManager(backend domain.LoginBackend, registry *account.Registry, proxies account.ProxyResolver, outcomes account.OutcomeRecorder, logger zerolog.Logger) *Manager {
	return &Manager{
		backend:    backend,
		registry:   registry,
		proxies:    proxies,
		outcomes:   outcomes,
		qr:         make(map[string]*qrSession),
		phone:      make(map[string]*phoneSession),
		now:        time.Now,
		qrDeadline: entities.QRDeadline,
		logger:     logger.With().Str("component", "auth_manager").Logger(),
	}
}

// open dials a fresh login connection through the account's resolved proxy,
// retrying transient failures. A non-empty proxyID overrides resolution.
func (m *Manager) open(ctx context.Context, accountID, proxyID string) (domain.PendingLogin, error) {
	proxy := m.proxies.ResolveForAccount(accountID)
	if proxyID != "" {
		proxy = m.proxies.Get(proxyID)
	}

	var lastErr error
	for attempt := 1; attempt <= openAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		openCtx, cancel := context.WithTimeout(ctx, openTimeout)
		pending, err := m.backend.Open(openCtx, proxy)
		cancel()
		if err == nil {
			return pending, nil
		}
		lastErr = err
		m.logger.Debug().Err(err).Str("account_id", accountID).Int("attempt", attempt).Msg("login open failed")
		time.Sleep(openBackoff)
	}
	return nil, lastErr
}

// checkNewLogin rejects ids that already hold an account or a live login.
// Finished sessions for the id are swept so a new attempt can start.
// Caller holds the lock.
func (m *Manager) checkNewLogin(accountID string) error {
	if _, err := m.registry.Get(accountID); err == nil {
		return accounterrors.ErrAccountExists
	}
	if s, ok := m.qr[accountID]; ok {
		if s.State == entities.QRStateWaiting || s.State == entities.QRStateNeedPassword {
			return autherrors.ErrLoginInProgress
		}
		delete(m.qr, accountID)
	}
	if s, ok := m.phone[accountID]; ok {
		if s.State == entities.PhoneStateCodeSent || s.State == entities.PhoneStateNeed2FA {
			return autherrors.ErrLoginInProgress
		}
		delete(m.phone, accountID)
	}
	return nil
}

// StartQR opens a QR login session and returns its initial state, including
// the scannable link and a rendered PNG. A non-empty proxyID pins the login
// connection to that proxy. A background waiter drives the session to
// success, need_password, timeout or failed.
func (m *Manager) StartQR(ctx context.Context, accountID, proxyID string) (*entities.QRSession, error) {
	m.mu.Lock()
	if err := m.checkNewLogin(accountID); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	view, err := m.beginQR(ctx, accountID, proxyID)
	if err != nil {
		return nil, err
	}
	m.logger.Info().Str("account_id", accountID).Msg("qr login started")
	return view, nil
}

// beginQR opens the connection, requests a token and installs a fresh
// waiting session with a full deadline.
func (m *Manager) beginQR(ctx context.Context, accountID, proxyID string) (*entities.QRSession, error) {
	pending, err := m.open(ctx, accountID, proxyID)
	if err != nil {
		return nil, fmt.Errorf("open login connection: %w", err)
	}

	link, err := pending.BeginQR(ctx)
	if err != nil {
		pending.Close(context.Background())
		return nil, fmt.Errorf("request qr token: %w", err)
	}
	image, err := renderQR(link)
	if err != nil {
		pending.Close(context.Background())
		return nil, fmt.Errorf("render qr: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), m.qrDeadline)
	s := &qrSession{
		QRSession: entities.QRSession{
			AccountID: accountID,
			State:     entities.QRStateWaiting,
			QRLink:    link,
			QRImage:   image,
			CreatedAt: m.now(),
		},
		pending: pending,
		cancel:  cancel,
		proxyID: proxyID,
	}

	m.mu.Lock()
	m.qr[accountID] = s
	view := s.QRSession
	m.mu.Unlock()

	go m.waitQR(waitCtx, accountID)
	return &view, nil
}

// waitQR blocks on the scan outcome and advances the session.
func (m *Manager) waitQR(ctx context.Context, accountID string) {
	m.mu.Lock()
	s, ok := m.qr[accountID]
	m.mu.Unlock()
	if !ok {
		return
	}

	err := s.pending.WaitQR(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	// The session may have been cancelled while we waited.
	if cur, ok := m.qr[accountID]; !ok || cur != s {
		return
	}
	if s.State != entities.QRStateWaiting {
		return
	}

	switch {
	case err == nil:
		m.finalizeQRLocked(s)
	case domain.KindOf(err) == domain.KindPasswordNeeded:
		s.State = entities.QRStateNeedPassword
		m.logger.Info().Str("account_id", accountID).Msg("qr scanned, 2fa password required")
	case ctx.Err() != nil:
		s.State = entities.QRStateTimeout
		s.Error = "qr login timed out"
		s.pending.Close(context.Background())
		m.logger.Info().Str("account_id", accountID).Msg("qr login timed out")
	default:
		s.State = entities.QRStateFailed
		s.Error = err.Error()
		s.pending.Close(context.Background())
		m.recordFailure(accountID, err)
		m.logger.Warn().Err(err).Str("account_id", accountID).Msg("qr login failed")
	}
}

// finalizeQRLocked exports the credential, registers the account and closes
// the login connection. Caller holds the lock.
func (m *Manager) finalizeQRLocked(s *qrSession) {
	accountID := s.QRSession.AccountID
	credential, profile, err := m.harvest(s.pending)
	if err != nil {
		s.State = entities.QRStateFailed
		s.Error = err.Error()
		s.pending.Close(context.Background())
		m.recordFailure(accountID, err)
		return
	}

	if err := m.registry.AddAuthorized(accountID, credential, profile); err != nil {
		s.State = entities.QRStateFailed
		s.Error = err.Error()
		s.pending.Close(context.Background())
		return
	}

	s.State = entities.QRStateSuccess
	s.pending.Close(context.Background())
	m.recordSuccess(accountID)
	m.logger.Info().Str("account_id", accountID).Msg("qr login succeeded")
}

// harvest pulls the exported credential and profile off an authorized
// pending login.
func (m *Manager) harvest(pending domain.PendingLogin) (string, *domain.Profile, error) {
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	credential, err := pending.ExportCredential(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("export credential: %w", err)
	}
	profile, err := pending.Profile(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("fetch profile: %w", err)
	}
	return credential, profile, nil
}

// SubmitQRPassword completes a QR login that hit a 2FA challenge. A wrong
// password leaves the session in need_password for another try.
func (m *Manager) SubmitQRPassword(ctx context.Context, accountID, password string) (*entities.QRSession, error) {
	m.mu.Lock()
	s, ok := m.qr[accountID]
	if !ok {
		m.mu.Unlock()
		return nil, autherrors.ErrNoActiveLogin
	}
	if s.State != entities.QRStateNeedPassword {
		m.mu.Unlock()
		return nil, autherrors.ErrWrongState
	}
	pending := s.pending
	m.mu.Unlock()

	err := pending.SubmitPassword(ctx, password)

	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.qr[accountID]; !ok || cur != s {
		return nil, autherrors.ErrNoActiveLogin
	}
	if err != nil {
		if domain.KindOf(err) == domain.KindPasswordInvalid {
			return nil, err
		}
		s.State = entities.QRStateFailed
		s.Error = err.Error()
		s.pending.Close(context.Background())
		m.recordFailure(accountID, err)
		return nil, err
	}

	m.finalizeQRLocked(s)
	if s.State != entities.QRStateSuccess {
		return nil, errors.New(s.Error)
	}
	view := s.QRSession
	return &view, nil
}

// RefreshQR discards the current QR session, whatever state it is in, and
// starts a new one with a fresh token and a full deadline. A timed-out or
// failed session refreshes the same way a waiting one does.
func (m *Manager) RefreshQR(ctx context.Context, accountID string) (*entities.QRSession, error) {
	m.mu.Lock()
	s, ok := m.qr[accountID]
	if !ok {
		m.mu.Unlock()
		return nil, autherrors.ErrNoActiveLogin
	}
	delete(m.qr, accountID)
	m.mu.Unlock()

	s.cancel()
	s.pending.Close(context.Background())

	view, err := m.beginQR(ctx, accountID, s.proxyID)
	if err != nil {
		return nil, err
	}
	m.logger.Info().Str("account_id", accountID).Msg("qr login restarted")
	return view, nil
}

// QRStatus reports the session state. After a completed login whose session
// was already swept, an existing account answers success, so polling clients
// converge no matter when they ask.
func (m *Manager) QRStatus(accountID string) (*entities.QRSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.qr[accountID]; ok {
		view := s.QRSession
		return &view, nil
	}
	if _, err := m.registry.Get(accountID); err == nil {
		return &entities.QRSession{
			AccountID: accountID,
			State:     entities.QRStateSuccess,
		}, nil
	}
	return nil, autherrors.ErrNoActiveLogin
}

// CancelQR discards a QR session and closes its connection.
func (m *Manager) CancelQR(accountID string) error {
	m.mu.Lock()
	s, ok := m.qr[accountID]
	delete(m.qr, accountID)
	m.mu.Unlock()

	if !ok {
		return autherrors.ErrNoActiveLogin
	}
	s.cancel()
	s.pending.Close(context.Background())
	m.logger.Info().Str("account_id", accountID).Msg("qr login cancelled")
	return nil
}

func (m *Manager) recordSuccess(accountID string) {
	if err := m.outcomes.RecordSuccess(accountID); err != nil {
		m.logger.Error().Err(err).Str("account_id", accountID).Msg("record login success")
	}
}

func (m *Manager) recordFailure(accountID string, cause error) {
	if err := m.outcomes.RecordFailure(accountID, cause.Error()); err != nil {
		m.logger.Error().Err(err).Str("account_id", accountID).Msg("record login failure")
	}
}

// renderQR encodes a login link as a PNG data URI.
func renderQR(link string) (string, error) {
	code, err := qr.Encode(link, qr.M)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(code.PNG()), nil
}
