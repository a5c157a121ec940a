package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Conte777/TgFleet/internal/domain"
)

// Client implements domain.Client over gotd/td. One Client serves one
// account; its session lives in memory and is exported back out as an opaque
// credential.
type Client struct {
	apiID     int
	apiHash   string
	accountID string

	storage *memorySessionStorage
	dial    dialFunc

	client        *telegram.Client
	api           *tg.Client
	connected     bool
	disconnecting bool
	mu            sync.RWMutex
	cancelFunc    context.CancelFunc
	runDone       chan struct{} // signals when client.Run() completes

	rateLimiter *rate.Limiter
	logger      zerolog.Logger
}

// NewClient builds a client from an account's config. It does not dial;
// Connect does.
func NewClient(cfg domain.ClientConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.APIID == 0 {
		return nil, fmt.Errorf("APIID is required")
	}
	if cfg.APIHash == "" {
		return nil, fmt.Errorf("APIHash is required")
	}

	storage, err := newMemorySessionStorage(cfg.Credential)
	if err != nil {
		return nil, err
	}
	dial, err := proxyDial(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	return &Client{
		apiID:     cfg.APIID,
		apiHash:   cfg.APIHash,
		accountID: cfg.AccountID,
		storage:   storage,
		dial:      dial,
		// 10 requests per second per account
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 10),
		logger: logger.With().
			Str("component", "mtproto_client").
			Str("account_id", cfg.AccountID).
			Logger(),
	}, nil
}

// Connect opens the connection. The caller should provide a context with
// timeout to prevent indefinite hanging.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		c.logger.Debug().Msg("already connected")
		return nil
	}
	if c.disconnecting {
		c.mu.Unlock()
		return fmt.Errorf("disconnect in progress, cannot connect")
	}
	// Keep the lock to prevent concurrent connection attempts
	defer c.mu.Unlock()

	c.logger.Info().Msg("connecting to Telegram")

	c.client = telegram.NewClient(c.apiID, c.apiHash, telegram.Options{
		SessionStorage: c.storage,
		Resolver:       dcs.Plain(dcs.PlainOptions{Dial: dcs.DialFunc(c.dial)}),
	})

	// Cancellable context for the client lifecycle, detached from the
	// caller's deadline so the connection outlives the Connect call.
	clientCtx, cancel := context.WithCancel(context.Background())
	c.cancelFunc = cancel

	readyChan := make(chan struct{})
	errChan := make(chan error, 1)
	c.runDone = make(chan struct{})

	go func() {
		defer close(c.runDone)
		err := c.client.Run(clientCtx, func(ctx context.Context) error {
			// Connect still holds the write lock; readyChan orders these
			// writes before any reader.
			c.api = c.client.API()
			c.connected = true
			close(readyChan)

			// Keep connection alive
			<-ctx.Done()
			return ctx.Err()
		})
		select {
		case errChan <- err:
		default:
		}
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	select {
	case <-readyChan:
		c.logger.Info().Msg("connected to Telegram")
		return nil
	case err := <-errChan:
		cancel()
		if err != nil {
			return classify(fmt.Errorf("failed to connect: %w", err))
		}
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// Disconnect closes the connection. Safe to call more than once.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.disconnecting {
		c.mu.Unlock()
		return nil
	}
	if c.cancelFunc == nil {
		c.mu.Unlock()
		return nil
	}
	c.disconnecting = true
	cancelFunc := c.cancelFunc
	runDone := c.runDone
	c.mu.Unlock()

	cancelFunc()
	if runDone != nil {
		select {
		case <-runDone:
			c.logger.Debug().Msg("client stopped gracefully")
		case <-ctx.Done():
			c.logger.Warn().Msg("disconnect timeout reached while waiting for client shutdown")
		}
	}

	c.mu.Lock()
	c.client = nil
	c.api = nil
	c.connected = false
	c.cancelFunc = nil
	c.runDone = nil
	c.disconnecting = false
	c.mu.Unlock()

	c.logger.Info().Msg("disconnected from Telegram")
	return nil
}

// IsConnected reports whether the connection is currently live.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// IsAuthorized checks the stored session's authorization status.
func (c *Client) IsAuthorized(ctx context.Context) (bool, error) {
	c.mu.RLock()
	client := c.client
	connected := c.connected
	c.mu.RUnlock()
	if !connected || client == nil {
		return false, domain.ErrNotConnected
	}

	status, err := client.Auth().Status(ctx)
	if err != nil {
		return false, classify(fmt.Errorf("check auth status: %w", err))
	}
	return status.Authorized, nil
}

// Profile returns the account's own identity.
func (c *Client) Profile(ctx context.Context) (*domain.Profile, error) {
	c.mu.RLock()
	client := c.client
	connected := c.connected
	c.mu.RUnlock()
	if !connected || client == nil {
		return nil, domain.ErrNotConnected
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	self, err := client.Self(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("get self: %w", err))
	}
	return profileFromUser(self), nil
}

// SendMessage delivers a text message. Target "me" or "self" goes to the
// account's saved messages.
func (c *Client) SendMessage(ctx context.Context, target, text string) error {
	c.mu.RLock()
	api := c.api
	connected := c.connected
	c.mu.RUnlock()
	if !connected || api == nil {
		return domain.ErrNotConnected
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	sender := message.NewSender(api)
	var err error
	if target == "me" || target == "self" {
		_, err = sender.Self().Text(ctx, text)
	} else {
		_, err = sender.Resolve(target).Text(ctx, text)
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("target", target).Msg("send failed")
		return classify(fmt.Errorf("send message: %w", err))
	}

	c.logger.Debug().Str("target", target).Msg("message sent")
	return nil
}

// ExportCredential exports the session as an opaque string.
func (c *Client) ExportCredential(_ context.Context) (string, error) {
	return c.storage.Export()
}

// AccountID returns the account id this client serves.
func (c *Client) AccountID() string {
	return c.accountID
}

func profileFromUser(u *tg.User) *domain.Profile {
	// The server reports phones without the leading +.
	phone := u.Phone
	if phone != "" && !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return &domain.Profile{
		UserID:    u.ID,
		Username:  u.Username,
		Phone:     phone,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Premium:   u.Premium,
	}
}

var _ domain.Client = (*Client)(nil)
