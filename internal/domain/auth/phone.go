package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/Conte777/TgFleet/internal/domain"
	"github.com/Conte777/TgFleet/internal/domain/auth/entities"
	autherrors "github.com/Conte777/TgFleet/internal/domain/auth/errors"
	"github.com/Conte777/TgFleet/internal/utils"
)

// NormalizePhone strips formatting characters and guarantees a leading +.
func NormalizePhone(phone string) (string, error) {
	var digits strings.Builder
	for _, r := range phone {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
			// formatting, dropped
		default:
			return "", autherrors.ErrInvalidPhone
		}
	}
	n := digits.Len()
	if n < 7 || n > 15 {
		return "", autherrors.ErrInvalidPhone
	}
	return "+" + digits.String(), nil
}

// SendCode starts a phone login: the server texts a confirmation code to the
// number and the session waits for it. A non-empty proxyID pins the login
// connection to that proxy.
func (m *Manager) SendCode(ctx context.Context, accountID, phone, proxyID string) (*entities.PhoneSession, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if err := m.checkNewLogin(accountID); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	pending, err := m.open(ctx, accountID, proxyID)
	if err != nil {
		return nil, fmt.Errorf("open login connection: %w", err)
	}

	codeHash, err := pending.SendCode(ctx, normalized)
	if err != nil {
		pending.Close(context.Background())
		m.recordFailure(accountID, err)
		return nil, fmt.Errorf("send code: %w", err)
	}

	s := &phoneSession{
		PhoneSession: entities.PhoneSession{
			AccountID: accountID,
			State:     entities.PhoneStateCodeSent,
			Phone:     normalized,
			CreatedAt: m.now(),
		},
		pending:  pending,
		codeHash: codeHash,
	}

	m.mu.Lock()
	m.phone[accountID] = s
	view := s.PhoneSession
	m.mu.Unlock()

	m.logger.Info().
		Str("account_id", accountID).
		Str("phone", utils.MaskPhone(normalized)).
		Msg("login code sent")
	return &view, nil
}

// VerifyCode submits the received code. A wrong or expired code leaves the
// session in code_sent; an account with 2FA moves to need_2fa with the
// connection kept open.
func (m *Manager) VerifyCode(ctx context.Context, accountID, code string) (*entities.PhoneSession, error) {
	m.mu.Lock()
	s, ok := m.phone[accountID]
	if !ok {
		m.mu.Unlock()
		return nil, autherrors.ErrNoActiveLogin
	}
	if s.State != entities.PhoneStateCodeSent {
		m.mu.Unlock()
		return nil, autherrors.ErrWrongState
	}
	pending, phone, codeHash := s.pending, s.Phone, s.codeHash
	m.mu.Unlock()

	err := pending.SignIn(ctx, phone, codeHash, code)

	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.phone[accountID]; !ok || cur != s {
		return nil, autherrors.ErrNoActiveLogin
	}

	switch domain.KindOf(err) {
	case domain.KindPasswordNeeded:
		s.State = entities.PhoneStateNeed2FA
		view := s.PhoneSession
		m.logger.Info().Str("account_id", accountID).Msg("code accepted, 2fa password required")
		return &view, nil
	case domain.KindCodeInvalid, domain.KindCodeExpired:
		return nil, err
	}
	if err != nil {
		s.State = entities.PhoneStateFailed
		s.Error = err.Error()
		s.pending.Close(context.Background())
		m.recordFailure(accountID, err)
		return nil, err
	}

	m.finalizePhoneLocked(s)
	if s.State != entities.PhoneStateSuccess {
		return nil, errors.New(s.Error)
	}
	view := s.PhoneSession
	return &view, nil
}

// Submit2FA completes a phone login that hit a 2FA challenge. A wrong
// password leaves the session in need_2fa for another try.
func (m *Manager) Submit2FA(ctx context.Context, accountID, password string) (*entities.PhoneSession, error) {
	m.mu.Lock()
	s, ok := m.phone[accountID]
	if !ok {
		m.mu.Unlock()
		return nil, autherrors.ErrNoActiveLogin
	}
	if s.State != entities.PhoneStateNeed2FA {
		m.mu.Unlock()
		return nil, autherrors.ErrWrongState
	}
	pending := s.pending
	m.mu.Unlock()

	err := pending.SubmitPassword(ctx, password)

	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.phone[accountID]; !ok || cur != s {
		return nil, autherrors.ErrNoActiveLogin
	}
	if err != nil {
		if domain.KindOf(err) == domain.KindPasswordInvalid {
			return nil, err
		}
		s.State = entities.PhoneStateFailed
		s.Error = err.Error()
		s.pending.Close(context.Background())
		m.recordFailure(accountID, err)
		return nil, err
	}

	m.finalizePhoneLocked(s)
	if s.State != entities.PhoneStateSuccess {
		return nil, errors.New(s.Error)
	}
	view := s.PhoneSession
	return &view, nil
}

// finalizePhoneLocked exports the credential, registers the account and
// closes the login connection. Caller holds the lock.
func (m *Manager) finalizePhoneLocked(s *phoneSession) {
	accountID := s.PhoneSession.AccountID
	credential, profile, err := m.harvest(s.pending)
	if err != nil {
		s.State = entities.PhoneStateFailed
		s.Error = err.Error()
		s.pending.Close(context.Background())
		m.recordFailure(accountID, err)
		return
	}

	if err := m.registry.AddAuthorized(accountID, credential, profile); err != nil {
		s.State = entities.PhoneStateFailed
		s.Error = err.Error()
		s.pending.Close(context.Background())
		return
	}

	s.State = entities.PhoneStateSuccess
	s.pending.Close(context.Background())
	m.recordSuccess(accountID)
	m.logger.Info().Str("account_id", accountID).Msg("phone login succeeded")
}

// PhoneStatus reports the session state, answering success for an already
// registered account whose session was swept.
func (m *Manager) PhoneStatus(accountID string) (*entities.PhoneSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.phone[accountID]; ok {
		view := s.PhoneSession
		return &view, nil
	}
	if _, err := m.registry.Get(accountID); err == nil {
		return &entities.PhoneSession{
			AccountID: accountID,
			State:     entities.PhoneStateSuccess,
		}, nil
	}
	return nil, autherrors.ErrNoActiveLogin
}

// CancelPhone discards a phone session and closes its connection.
func (m *Manager) CancelPhone(accountID string) error {
	m.mu.Lock()
	s, ok := m.phone[accountID]
	delete(m.phone, accountID)
	m.mu.Unlock()

	if !ok {
		return autherrors.ErrNoActiveLogin
	}
	s.pending.Close(context.Background())
	m.logger.Info().Str("account_id", accountID).Msg("phone login cancelled")
	return nil
}
