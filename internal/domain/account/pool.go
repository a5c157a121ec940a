package account

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/config"
	"github.com/Conte777/TgFleet/internal/domain"
	"github.com/Conte777/TgFleet/internal/domain/account/entities"
)

// Connection policy for acquisition.
const (
	connectAttempts = 3
	connectTimeout  = 15 * time.Second
	connectBackoff  = 500 * time.Millisecond
)

// ProxyResolver resolves the proxy an account's traffic should ride on,
// either through the assignment chain or by explicit proxy id. Satisfied by
// the proxy registry.
type ProxyResolver interface {
	ResolveForAccount(accountID string) *domain.PackedProxy
	Get(proxyID string) *domain.PackedProxy
}

// OutcomeRecorder receives login outcomes. Satisfied by the risk ledger.
type OutcomeRecorder interface {
	RecordSuccess(accountID string) error
	RecordFailure(accountID, errText string) error
}

// Pool hands out live connections, at most one per account, reused across
// acquisitions until it drops.
type Pool struct {
	registry *Registry
	tg       *config.TelegramConfig
	factory  domain.ClientFactory
	proxies  ProxyResolver
	outcomes OutcomeRecorder

	mu      sync.Mutex
	clients map[string]domain.Client
	locks   map[string]*sync.Mutex

	logger zerolog.Logger
}

func NewPool(registry *Registry, tg *config.TelegramConfig, factory domain.ClientFactory, proxies ProxyResolver, outcomes OutcomeRecorder, logger zerolog.Logger) *Pool {
	return &Pool{
		registry: registry,
		tg:       tg,
		factory:  factory,
		proxies:  proxies,
		outcomes: outcomes,
		clients:  make(map[string]domain.Client),
		locks:    make(map[string]*sync.Mutex),
		logger:   logger.With().Str("component", "account_pool").Logger(),
	}
}

// accountLock returns the per-account mutex serializing acquisition, so two
// concurrent acquisitions of the same account never open two connections.
func (p *Pool) accountLock(accountID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[accountID] = l
	}
	return l
}

// Acquire returns a live, authorized connection for the account, opening one
// when none exists. A non-empty proxyID overrides the account's resolved
// proxy for this connection. Failure to produce a connection is terminal for
// this attempt: callers get ErrClientUnavailable, never a half-open handle.
func (p *Pool) Acquire(ctx context.Context, accountID, proxyID string) (domain.Client, error) {
	lock := p.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	p.mu.Lock()
	client, ok := p.clients[accountID]
	p.mu.Unlock()

	if ok && client.IsConnected() {
		if err := p.registry.MarkUsed(accountID); err != nil {
			p.logger.Error().Err(err).Str("account_id", accountID).Msg("mark used")
		}
		return client, nil
	}

	credential, err := p.registry.Credential(accountID)
	if err != nil {
		return nil, err
	}

	client, err = p.open(ctx, accountID, credential, proxyID)
	if err != nil {
		if recErr := p.outcomes.RecordFailure(accountID, err.Error()); recErr != nil {
			p.logger.Error().Err(recErr).Str("account_id", accountID).Msg("record failure")
		}
		p.logger.Warn().Err(err).Str("account_id", accountID).Msg("acquisition failed")
		return nil, fmt.Errorf("%w: %s", domain.ErrClientUnavailable, err)
	}

	p.mu.Lock()
	p.clients[accountID] = client
	p.mu.Unlock()

	if recErr := p.outcomes.RecordSuccess(accountID); recErr != nil {
		p.logger.Error().Err(recErr).Str("account_id", accountID).Msg("record success")
	}
	if err := p.registry.MarkUsed(accountID); err != nil {
		p.logger.Error().Err(err).Str("account_id", accountID).Msg("mark used")
	}
	return client, nil
}

// resolveProxy picks the proxy for one connection: an explicit override
// wins, the bootstrap account always dials direct, everyone else goes
// through the assignment chain.
func (p *Pool) resolveProxy(accountID, proxyID string) *domain.PackedProxy {
	if proxyID != "" {
		return p.proxies.Get(proxyID)
	}
	if accountID == entities.DefaultAccountID {
		return nil
	}
	return p.proxies.ResolveForAccount(accountID)
}

// open dials a fresh connection, retrying transient failures.
func (p *Pool) open(ctx context.Context, accountID, credential, proxyID string) (domain.Client, error) {
	cfg := domain.ClientConfig{
		APIID:      p.tg.APIID,
		APIHash:    p.tg.APIHash,
		AccountID:  accountID,
		Credential: credential,
		Proxy:      p.resolveProxy(accountID, proxyID),
	}

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		client, err := p.factory(cfg)
		if err != nil {
			return nil, fmt.Errorf("create client: %w", err)
		}

		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err = client.Connect(connectCtx)
		cancel()
		if err != nil {
			lastErr = err
			client.Disconnect(context.Background())
			p.logger.Debug().Err(err).Str("account_id", accountID).Int("attempt", attempt).Msg("connect attempt failed")
			time.Sleep(connectBackoff)
			continue
		}

		authorized, err := client.IsAuthorized(ctx)
		if err != nil || !authorized {
			client.Disconnect(context.Background())
			if err == nil {
				err = domain.ErrNotAuthorized
			}
			// An unauthorized credential will not heal on retry.
			return nil, err
		}
		return client, nil
	}
	return nil, lastErr
}

// Drop disconnects and forgets an account's live connection, if any.
func (p *Pool) Drop(ctx context.Context, accountID string) {
	p.mu.Lock()
	client, ok := p.clients[accountID]
	delete(p.clients, accountID)
	p.mu.Unlock()

	if ok {
		if err := client.Disconnect(ctx); err != nil {
			p.logger.Warn().Err(err).Str("account_id", accountID).Msg("disconnect")
		}
	}
}

// DisconnectAll tears down every live connection. Used on shutdown.
func (p *Pool) DisconnectAll(ctx context.Context) {
	p.mu.Lock()
	clients := p.clients
	p.clients = make(map[string]domain.Client)
	p.mu.Unlock()

	for id, client := range clients {
		if err := client.Disconnect(ctx); err != nil {
			p.logger.Warn().Err(err).Str("account_id", id).Msg("disconnect")
		}
	}
	p.logger.Info().Int("count", len(clients)).Msg("all connections closed")
}

// Remove deletes an account and tears down its connection and per-account
// state. The bootstrap account is protected.
func (p *Pool) Remove(ctx context.Context, accountID string) error {
	if err := p.registry.Remove(accountID); err != nil {
		return err
	}
	p.Drop(ctx, accountID)

	p.mu.Lock()
	delete(p.locks, accountID)
	p.mu.Unlock()
	return nil
}

// AccountIDs lists the managed accounts.
func (p *Pool) AccountIDs() []string {
	return p.registry.AccountIDs()
}

// Connected reports whether an account holds a live connection right now.
func (p *Pool) Connected(accountID string) bool {
	p.mu.Lock()
	client, ok := p.clients[accountID]
	p.mu.Unlock()
	return ok && client.IsConnected()
}

// LiveCount returns the number of currently live connections.
func (p *Pool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, client := range p.clients {
		if client.IsConnected() {
			n++
		}
	}
	return n
}

// ProfileOf returns the profile captured at registration time.
func (p *Pool) ProfileOf(accountID string) (*domain.Profile, error) {
	acc, err := p.registry.Get(accountID)
	if err != nil {
		return nil, err
	}
	return &domain.Profile{
		UserID:    acc.UserID,
		Username:  acc.Username,
		Phone:     acc.Phone,
		FirstName: acc.FirstName,
		LastName:  acc.LastName,
		Premium:   acc.Premium,
	}, nil
}

// ExportCredential returns the stored credential for an account.
func (p *Pool) ExportCredential(accountID string) (string, error) {
	return p.registry.Credential(accountID)
}

// Import registers an exported credential under a new account id, validating
// it through the account's resolved proxy.
func (p *Pool) Import(ctx context.Context, accountID, credential string) error {
	return p.registry.AddWithCredential(ctx, accountID, credential, p.resolveProxy(accountID, ""))
}

// CheckHealth verifies that an account can hold an authorized connection.
func (p *Pool) CheckHealth(ctx context.Context, accountID string) error {
	client, err := p.Acquire(ctx, accountID, "")
	if err != nil {
		return err
	}
	authorized, err := client.IsAuthorized(ctx)
	if err != nil {
		return err
	}
	if !authorized {
		return domain.ErrNotAuthorized
	}
	return nil
}

// List returns the fleet view: stored records enriched with connection
// status and risk level.
func (p *Pool) List(riskOf func(accountID string) string) []entities.Info {
	accounts := p.registry.Accounts()

	out := make([]entities.Info, 0, len(accounts))
	for _, acc := range accounts {
		status := entities.StatusOffline
		if p.Connected(acc.AccountID) {
			status = entities.StatusOnline
		}
		level := ""
		if riskOf != nil {
			level = riskOf(acc.AccountID)
		}
		out = append(out, entities.Info{
			AccountID:  acc.AccountID,
			UserID:     acc.UserID,
			Username:   acc.Username,
			Phone:      acc.Phone,
			FirstName:  acc.FirstName,
			LastName:   acc.LastName,
			Premium:    acc.Premium,
			Status:     status,
			RiskLevel:  level,
			CreatedAt:  acc.CreatedAt,
			LastOnline: acc.LastOnline,
			UseCount:   acc.UseCount,
		})
	}
	return out
}
