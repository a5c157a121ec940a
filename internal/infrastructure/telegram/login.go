package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/config"
	"github.com/Conte777/TgFleet/internal/domain"
)

// acceptRetryDelay paces Accept retries while the scanning device has not
// registered the auth key yet.
const acceptRetryDelay = time.Second

// LoginBackend opens pending logins against the production servers.
type LoginBackend struct {
	cfg    *config.TelegramConfig
	logger zerolog.Logger
}

func NewLoginBackend(cfg *config.TelegramConfig, logger zerolog.Logger) *LoginBackend {
	return &LoginBackend{
		cfg:    cfg,
		logger: logger.With().Str("component", "login_backend").Logger(),
	}
}

// Open dials a fresh, credential-less connection through the given proxy.
func (b *LoginBackend) Open(ctx context.Context, proxy *domain.PackedProxy) (domain.PendingLogin, error) {
	client, err := NewClient(domain.ClientConfig{
		APIID:   b.cfg.APIID,
		APIHash: b.cfg.APIHash,
		Proxy:   proxy,
	}, b.logger)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return &pendingLogin{
		client:  client,
		apiID:   b.cfg.APIID,
		apiHash: b.cfg.APIHash,
		logger:  b.logger,
	}, nil
}

var _ domain.LoginBackend = (*LoginBackend)(nil)

// pendingLogin drives one login exchange over a live connection.
type pendingLogin struct {
	client  *Client
	apiID   int
	apiHash string
	logger  zerolog.Logger

	mu    sync.Mutex
	qr    *qrlogin.QR
	token qrlogin.Token
}

func (p *pendingLogin) auth() (*auth.Client, error) {
	p.client.mu.RLock()
	defer p.client.mu.RUnlock()
	if !p.client.connected || p.client.client == nil {
		return nil, domain.ErrNotConnected
	}
	return p.client.client.Auth(), nil
}

// BeginQR exports a scannable login token. Calling it again replaces the
// token, which is how explicit refresh works.
func (p *pendingLogin) BeginQR(ctx context.Context) (string, error) {
	p.client.mu.RLock()
	api := p.client.api
	connected := p.client.connected
	p.client.mu.RUnlock()
	if !connected || api == nil {
		return "", domain.ErrNotConnected
	}

	qr := qrlogin.NewQR(api, p.apiID, p.apiHash, qrlogin.Options{})
	token, err := qr.Export(ctx)
	if err != nil {
		return "", classify(fmt.Errorf("export qr token: %w", err))
	}

	p.mu.Lock()
	p.qr = &qr
	p.token = token
	p.mu.Unlock()

	return token.URL(), nil
}

// WaitQR blocks until the token is scanned and accepted. Expired tokens are
// re-exported transparently; the caller's deadline bounds the whole wait.
func (p *pendingLogin) WaitQR(ctx context.Context) error {
	p.mu.Lock()
	qr := p.qr
	token := p.token
	p.mu.Unlock()
	if qr == nil {
		return errors.New("qr login not started")
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, err := qr.Accept(ctx, token)
		if err == nil {
			p.logger.Debug().Msg("qr token accepted")
			return nil
		}

		switch {
		case tgerr.Is(err, "AUTH_TOKEN_EXPIRED"):
			token, err = qr.Export(ctx)
			if err != nil {
				return classify(fmt.Errorf("re-export qr token: %w", err))
			}
			p.mu.Lock()
			p.token = token
			p.mu.Unlock()
			continue
		case tgerr.Is(err, "AUTH_KEY_UNREGISTERED"):
			// Scanned but not registered on this DC yet, retry shortly.
			select {
			case <-time.After(acceptRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		case tgerr.Is(err, "AUTH_TOKEN_ALREADY_ACCEPTED"):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return classify(fmt.Errorf("accept qr token: %w", err))
		}
	}
}

// SendCode asks the server to text a login code to the phone.
func (p *pendingLogin) SendCode(ctx context.Context, phone string) (string, error) {
	a, err := p.auth()
	if err != nil {
		return "", err
	}

	sent, err := a.SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", classify(fmt.Errorf("send code: %w", err))
	}
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", fmt.Errorf("unexpected sent code type %T", sent)
	}
	return code.PhoneCodeHash, nil
}

// SignIn submits a received login code.
func (p *pendingLogin) SignIn(ctx context.Context, phone, codeHash, code string) error {
	a, err := p.auth()
	if err != nil {
		return err
	}

	if _, err := a.SignIn(ctx, phone, code, codeHash); err != nil {
		return classify(fmt.Errorf("sign in: %w", err))
	}
	return nil
}

// SubmitPassword completes a 2FA challenge.
func (p *pendingLogin) SubmitPassword(ctx context.Context, password string) error {
	a, err := p.auth()
	if err != nil {
		return err
	}

	if _, err := a.Password(ctx, password); err != nil {
		return classify(fmt.Errorf("check password: %w", err))
	}
	return nil
}

func (p *pendingLogin) IsAuthorized(ctx context.Context) (bool, error) {
	return p.client.IsAuthorized(ctx)
}

func (p *pendingLogin) Profile(ctx context.Context) (*domain.Profile, error) {
	return p.client.Profile(ctx)
}

func (p *pendingLogin) ExportCredential(ctx context.Context) (string, error) {
	return p.client.ExportCredential(ctx)
}

func (p *pendingLogin) Close(ctx context.Context) error {
	return p.client.Disconnect(ctx)
}

var _ domain.PendingLogin = (*pendingLogin)(nil)
