package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/config"
	"github.com/Conte777/TgFleet/internal/domain"
	"github.com/Conte777/TgFleet/internal/domain/account"
	accounterrors "github.com/Conte777/TgFleet/internal/domain/account/errors"
	autherrors "github.com/Conte777/TgFleet/internal/domain/auth/errors"
	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

// fakePending scripts one login exchange.
type fakePending struct {
	mu sync.Mutex

	qrResult   chan error // waitQR outcome, nil means authorized
	signInErr  error
	passwords  map[string]error // password -> outcome, nil means accepted
	codeHash   string
	credential string
	profile    domain.Profile

	authorized bool
	closed     bool
	beginCalls int
}

func (f *fakePending) BeginQR(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beginCalls++
	return "tg://login?token=abc", nil
}

func (f *fakePending) WaitQR(ctx context.Context) error {
	select {
	case err := <-f.qrResult:
		if err == nil {
			f.mu.Lock()
			f.authorized = true
			f.mu.Unlock()
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakePending) SendCode(_ context.Context, phone string) (string, error) {
	return f.codeHash, nil
}

func (f *fakePending) SignIn(_ context.Context, _, _, _ string) error {
	if f.signInErr != nil {
		return f.signInErr
	}
	f.mu.Lock()
	f.authorized = true
	f.mu.Unlock()
	return nil
}

func (f *fakePending) SubmitPassword(_ context.Context, password string) error {
	err, ok := f.passwords[password]
	if !ok {
		err = &domain.KindError{Kind: domain.KindPasswordInvalid, Err: errors.New("PASSWORD_HASH_INVALID")}
	}
	if err == nil {
		f.mu.Lock()
		f.authorized = true
		f.mu.Unlock()
	}
	return err
}

func (f *fakePending) IsAuthorized(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authorized, nil
}

func (f *fakePending) Profile(context.Context) (*domain.Profile, error) {
	p := f.profile
	return &p, nil
}

func (f *fakePending) ExportCredential(context.Context) (string, error) {
	return f.credential, nil
}

func (f *fakePending) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeBackend struct {
	mu       sync.Mutex
	pending  *fakePending
	openErrs []error // consumed per call before pending is handed out
	opens    int
}

func (f *fakeBackend) Open(context.Context, *domain.PackedProxy) (domain.PendingLogin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if len(f.openErrs) > 0 {
		err := f.openErrs[0]
		f.openErrs = f.openErrs[1:]
		return nil, err
	}
	return f.pending, nil
}

type nilResolver struct{}

func (nilResolver) ResolveForAccount(string) *domain.PackedProxy { return nil }
func (nilResolver) Get(string) *domain.PackedProxy               { return nil }

type nopOutcomes struct{}

func (nopOutcomes) RecordSuccess(string) error         { return nil }
func (nopOutcomes) RecordFailure(string, string) error { return nil }

func newTestManager(t *testing.T, backend domain.LoginBackend) (*Manager, *account.Registry) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewStore(filepath.Join(dir, "accounts.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	factory := func(cfg domain.ClientConfig) (domain.Client, error) {
		t.Fatal("factory must not be used by login flows")
		return nil, nil
	}
	registry, err := account.NewRegistry(store, &config.StorageConfig{DataDir: dir}, &config.TelegramConfig{APIID: 1, APIHash: "h"}, factory, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	m := NewManager(backend, registry, nilResolver{}, nopOutcomes{}, zerolog.Nop())
	return m, registry
}

func waitForState(t *testing.T, fetch func() (string, error), want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		state, err := fetch()
		if err == nil && state == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("state = %q (err %v), want %q", state, err, want)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func qrState(m *Manager, accountID string) func() (string, error) {
	return func() (string, error) {
		s, err := m.QRStatus(accountID)
		if err != nil {
			return "", err
		}
		return s.State, nil
	}
}

func TestQRLogin_Success(t *testing.T) {
	pending := &fakePending{
		qrResult:   make(chan error, 1),
		credential: "fresh-cred",
		profile:    domain.Profile{Username: "alice", UserID: 7},
	}
	backend := &fakeBackend{pending: pending}
	m, registry := newTestManager(t, backend)

	s, err := m.StartQR(context.Background(), "acc", "")
	if err != nil {
		t.Fatalf("StartQR: %v", err)
	}
	if s.State != "waiting" {
		t.Errorf("State = %q, want waiting", s.State)
	}
	if s.QRLink == "" || !strings.HasPrefix(s.QRImage, "data:image/png;base64,") {
		t.Errorf("missing link or rendered image: %+v", s)
	}

	pending.qrResult <- nil
	waitForState(t, qrState(m, "acc"), "success")

	acc, err := registry.Get("acc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if acc.Credential != "fresh-cred" || acc.Username != "alice" {
		t.Errorf("stored account = %+v, want harvested credential and profile", acc)
	}
	if !pending.closed {
		t.Error("login connection not closed after success")
	}
}

func TestQRLogin_PasswordFlow(t *testing.T) {
	pending := &fakePending{
		qrResult:   make(chan error, 1),
		credential: "cred",
		passwords:  map[string]error{"hunter2": nil},
	}
	backend := &fakeBackend{pending: pending}
	m, registry := newTestManager(t, backend)

	if _, err := m.StartQR(context.Background(), "acc", ""); err != nil {
		t.Fatalf("StartQR: %v", err)
	}
	pending.qrResult <- &domain.KindError{Kind: domain.KindPasswordNeeded, Err: domain.ErrPasswordNeeded}
	waitForState(t, qrState(m, "acc"), "need_password")

	// Wrong password keeps the session open for another try.
	if _, err := m.SubmitQRPassword(context.Background(), "acc", "wrong"); err == nil {
		t.Fatal("wrong password accepted")
	}
	if s, _ := m.QRStatus("acc"); s.State != "need_password" {
		t.Fatalf("state after wrong password = %q, want need_password", s.State)
	}

	if _, err := m.SubmitQRPassword(context.Background(), "acc", "hunter2"); err != nil {
		t.Fatalf("SubmitQRPassword: %v", err)
	}
	if s, _ := m.QRStatus("acc"); s.State != "success" {
		t.Fatalf("state = %q, want success", s.State)
	}
	if _, err := registry.Get("acc"); err != nil {
		t.Fatalf("account not registered: %v", err)
	}
}

func TestQRLogin_Timeout(t *testing.T) {
	pending := &fakePending{qrResult: make(chan error)}
	backend := &fakeBackend{pending: pending}
	m, _ := newTestManager(t, backend)
	m.qrDeadline = 50 * time.Millisecond

	if _, err := m.StartQR(context.Background(), "acc", ""); err != nil {
		t.Fatalf("StartQR: %v", err)
	}
	waitForState(t, qrState(m, "acc"), "timeout")
	if !pending.closed {
		t.Error("login connection not closed after timeout")
	}
}

func TestQRLogin_RejectsCollisions(t *testing.T) {
	pending := &fakePending{qrResult: make(chan error, 1)}
	backend := &fakeBackend{pending: pending}
	m, registry := newTestManager(t, backend)

	if _, err := m.StartQR(context.Background(), "acc", ""); err != nil {
		t.Fatalf("StartQR: %v", err)
	}
	if _, err := m.StartQR(context.Background(), "acc", ""); !errors.Is(err, autherrors.ErrLoginInProgress) {
		t.Fatalf("second StartQR = %v, want ErrLoginInProgress", err)
	}

	if err := registry.AddAuthorized("taken", "cred", nil); err != nil {
		t.Fatalf("AddAuthorized: %v", err)
	}
	if _, err := m.StartQR(context.Background(), "taken", ""); !errors.Is(err, accounterrors.ErrAccountExists) {
		t.Fatalf("StartQR for existing account = %v, want ErrAccountExists", err)
	}
}

func TestQRLogin_RefreshRestartsSession(t *testing.T) {
	pending := &fakePending{qrResult: make(chan error, 1)}
	backend := &fakeBackend{pending: pending}
	m, _ := newTestManager(t, backend)

	t1 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return t1 }
	s1, err := m.StartQR(context.Background(), "acc", "")
	if err != nil {
		t.Fatalf("StartQR: %v", err)
	}

	m.now = func() time.Time { return t1.Add(90 * time.Second) }
	s2, err := m.RefreshQR(context.Background(), "acc")
	if err != nil {
		t.Fatalf("RefreshQR: %v", err)
	}

	if s2.State != "waiting" {
		t.Errorf("State = %q, want waiting", s2.State)
	}
	if pending.beginCalls != 2 {
		t.Errorf("BeginQR calls = %d, want 2", pending.beginCalls)
	}
	if backend.opens != 2 {
		t.Errorf("opens = %d, want a fresh connection per refresh", backend.opens)
	}
	if !s2.CreatedAt.After(s1.CreatedAt) {
		t.Error("refresh kept the old session clock instead of restarting the deadline")
	}
	if !pending.closed {
		t.Error("old login connection not closed on refresh")
	}
}

func TestQRLogin_RefreshAfterTimeout(t *testing.T) {
	pending := &fakePending{qrResult: make(chan error)}
	backend := &fakeBackend{pending: pending}
	m, _ := newTestManager(t, backend)
	m.qrDeadline = 50 * time.Millisecond

	if _, err := m.StartQR(context.Background(), "acc", ""); err != nil {
		t.Fatalf("StartQR: %v", err)
	}
	waitForState(t, qrState(m, "acc"), "timeout")

	m.qrDeadline = time.Minute
	s, err := m.RefreshQR(context.Background(), "acc")
	if err != nil {
		t.Fatalf("RefreshQR after timeout: %v", err)
	}
	if s.State != "waiting" {
		t.Errorf("State = %q, want waiting again", s.State)
	}
}

func TestQRLogin_OpenRetries(t *testing.T) {
	pending := &fakePending{qrResult: make(chan error, 1)}
	backend := &fakeBackend{
		pending:  pending,
		openErrs: []error{errors.New("dial error"), errors.New("dial error")},
	}
	m, _ := newTestManager(t, backend)

	if _, err := m.StartQR(context.Background(), "acc", ""); err != nil {
		t.Fatalf("StartQR: %v", err)
	}
	if backend.opens != 3 {
		t.Errorf("opens = %d, want 3", backend.opens)
	}
}

func TestQRLogin_StatusIdempotentAfterSweep(t *testing.T) {
	pending := &fakePending{qrResult: make(chan error, 1), credential: "cred"}
	backend := &fakeBackend{pending: pending}
	m, _ := newTestManager(t, backend)

	if _, err := m.StartQR(context.Background(), "acc", ""); err != nil {
		t.Fatalf("StartQR: %v", err)
	}
	pending.qrResult <- nil
	waitForState(t, qrState(m, "acc"), "success")

	// Sweeping the finished session must not flip status for pollers.
	m.mu.Lock()
	delete(m.qr, "acc")
	m.mu.Unlock()

	s, err := m.QRStatus("acc")
	if err != nil {
		t.Fatalf("QRStatus: %v", err)
	}
	if s.State != "success" {
		t.Errorf("State = %q, want success", s.State)
	}
}

func TestPhoneLogin_NormalizesNumber(t *testing.T) {
	got, err := NormalizePhone("8 (999) 123-45-67")
	if err != nil {
		t.Fatalf("NormalizePhone: %v", err)
	}
	if got != "+89991234567" {
		t.Errorf("NormalizePhone = %q, want +89991234567", got)
	}
	if _, err := NormalizePhone("not a phone"); !errors.Is(err, autherrors.ErrInvalidPhone) {
		t.Fatalf("NormalizePhone(garbage) = %v, want ErrInvalidPhone", err)
	}
	if _, err := NormalizePhone("123"); !errors.Is(err, autherrors.ErrInvalidPhone) {
		t.Fatalf("NormalizePhone(short) = %v, want ErrInvalidPhone", err)
	}
}

func TestPhoneLogin_FullFlow(t *testing.T) {
	pending := &fakePending{
		codeHash:   "hash123",
		credential: "phone-cred",
		profile:    domain.Profile{Phone: "+19995550100"},
	}
	backend := &fakeBackend{pending: pending}
	m, registry := newTestManager(t, backend)

	s, err := m.SendCode(context.Background(), "acc", "+1 999 555-0100", "")
	if err != nil {
		t.Fatalf("SendCode: %v", err)
	}
	if s.State != "code_sent" || s.Phone != "+19995550100" {
		t.Fatalf("session = %+v, want code_sent with normalized phone", s)
	}

	s, err = m.VerifyCode(context.Background(), "acc", "12345")
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if s.State != "success" {
		t.Fatalf("State = %q, want success", s.State)
	}

	acc, err := registry.Get("acc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if acc.Credential != "phone-cred" {
		t.Errorf("Credential = %q, want phone-cred", acc.Credential)
	}
}

func TestPhoneLogin_WrongCodeKeepsState(t *testing.T) {
	pending := &fakePending{
		codeHash:  "hash",
		signInErr: &domain.KindError{Kind: domain.KindCodeInvalid, Err: errors.New("PHONE_CODE_INVALID")},
	}
	backend := &fakeBackend{pending: pending}
	m, _ := newTestManager(t, backend)

	if _, err := m.SendCode(context.Background(), "acc", "+19995550100", ""); err != nil {
		t.Fatalf("SendCode: %v", err)
	}
	if _, err := m.VerifyCode(context.Background(), "acc", "00000"); err == nil {
		t.Fatal("wrong code accepted")
	}
	s, err := m.PhoneStatus("acc")
	if err != nil {
		t.Fatalf("PhoneStatus: %v", err)
	}
	if s.State != "code_sent" {
		t.Errorf("State = %q, want code_sent after wrong code", s.State)
	}
}

func TestPhoneLogin_TwoFactorFlow(t *testing.T) {
	pending := &fakePending{
		codeHash:   "hash",
		credential: "cred",
		signInErr:  &domain.KindError{Kind: domain.KindPasswordNeeded, Err: domain.ErrPasswordNeeded},
		passwords:  map[string]error{"correct horse": nil},
	}
	backend := &fakeBackend{pending: pending}
	m, registry := newTestManager(t, backend)

	if _, err := m.SendCode(context.Background(), "acc", "+19995550100", ""); err != nil {
		t.Fatalf("SendCode: %v", err)
	}
	s, err := m.VerifyCode(context.Background(), "acc", "12345")
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if s.State != "need_2fa" {
		t.Fatalf("State = %q, want need_2fa", s.State)
	}

	if _, err := m.Submit2FA(context.Background(), "acc", "wrong"); err == nil {
		t.Fatal("wrong 2fa password accepted")
	}
	if s, _ := m.PhoneStatus("acc"); s.State != "need_2fa" {
		t.Fatalf("state after wrong password = %q, want need_2fa", s.State)
	}

	s, err = m.Submit2FA(context.Background(), "acc", "correct horse")
	if err != nil {
		t.Fatalf("Submit2FA: %v", err)
	}
	if s.State != "success" {
		t.Fatalf("State = %q, want success", s.State)
	}
	if _, err := registry.Get("acc"); err != nil {
		t.Fatalf("account not registered: %v", err)
	}
}

func TestCancelClosesConnection(t *testing.T) {
	pending := &fakePending{qrResult: make(chan error)}
	backend := &fakeBackend{pending: pending}
	m, _ := newTestManager(t, backend)

	if _, err := m.StartQR(context.Background(), "acc", ""); err != nil {
		t.Fatalf("StartQR: %v", err)
	}
	if err := m.CancelQR("acc"); err != nil {
		t.Fatalf("CancelQR: %v", err)
	}
	if !pending.closed {
		t.Error("connection not closed on cancel")
	}
	if _, err := m.QRStatus("acc"); !errors.Is(err, autherrors.ErrNoActiveLogin) {
		t.Fatalf("QRStatus after cancel = %v, want ErrNoActiveLogin", err)
	}
}
