// Package proxy manages the persisted proxy registry: per-account proxy
// assignments, the optional global fallback proxy, protocol-specific
// credential packing and connectivity testing.
package proxy

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/internal/domain"
	"github.com/Conte777/TgFleet/internal/domain/proxy/entities"
	proxyerrors "github.com/Conte777/TgFleet/internal/domain/proxy/errors"
	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

// registryState is the persisted document layout.
type registryState struct {
	Global  *entities.Config            `json:"global"`
	Proxies map[string]*entities.Config `json:"proxies"`
	Stats   map[string]*entities.Stats  `json:"stats"`
}

// Registry holds proxy configs, the optional global proxy and per-account
// assignment links.
type Registry struct {
	store *storage.Store

	mu       sync.RWMutex
	global   *entities.Config
	proxies  map[string]*entities.Config
	proxyIDs []string // insertion order, assignment resolution is order-dependent
	stats    map[string]*entities.Stats

	logger zerolog.Logger
}

// NewRegistry loads the registry from its backing store.
func NewRegistry(store *storage.Store, logger zerolog.Logger) (*Registry, error) {
	r := &Registry{
		store:   store,
		proxies: make(map[string]*entities.Config),
		stats:   make(map[string]*entities.Stats),
		logger:  logger.With().Str("component", "proxy_registry").Logger(),
	}

	var state registryState
	if err := store.Load(&state); err != nil {
		return nil, err
	}
	r.global = state.Global
	if state.Proxies != nil {
		r.proxies = state.Proxies
	}
	if state.Stats != nil {
		r.stats = state.Stats
	}
	// Creation order is not persisted; restarts fall back to lexical order
	// so resolution stays deterministic.
	for id := range r.proxies {
		r.proxyIDs = append(r.proxyIDs, id)
	}
	sort.Strings(r.proxyIDs)

	return r, nil
}

func (r *Registry) save() error {
	return r.store.Save(registryState{
		Global:  r.global,
		Proxies: r.proxies,
		Stats:   r.stats,
	})
}

// Add creates or replaces a proxy config.
func (r *Registry) Add(proxyID, protocol, host string, port int, username, password string) error {
	if !entities.SupportedProtocol(protocol) {
		return proxyerrors.ErrUnsupportedProtocol
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, replaced := r.proxies[proxyID]
	cfg := &entities.Config{
		ProxyID:   proxyID,
		Protocol:  protocol,
		Host:      host,
		Port:      port,
		Username:  username,
		Password:  password,
		CreatedAt: time.Now(),
	}
	if replaced {
		// Keep assignments across a config update.
		cfg.AssignedTo = existing.AssignedTo
		cfg.CreatedAt = existing.CreatedAt
		cfg.UpdatedAt = time.Now()
	} else {
		r.proxyIDs = append(r.proxyIDs, proxyID)
	}
	r.proxies[proxyID] = cfg

	if _, ok := r.stats[proxyID]; !ok {
		r.stats[proxyID] = &entities.Stats{}
	}

	r.logger.Info().Str("proxy_id", proxyID).Str("protocol", protocol).Msg("proxy added")
	return r.save()
}

// Delete removes a proxy config. Assignments pointing at the deleted id
// become dangling and are ignored by resolution.
func (r *Registry) Delete(proxyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.proxies[proxyID]; !ok {
		return proxyerrors.ErrProxyNotFound
	}
	delete(r.proxies, proxyID)
	for i, id := range r.proxyIDs {
		if id == proxyID {
			r.proxyIDs = append(r.proxyIDs[:i], r.proxyIDs[i+1:]...)
			break
		}
	}

	r.logger.Info().Str("proxy_id", proxyID).Msg("proxy deleted")
	return r.save()
}

// SetGlobal sets the singleton fallback proxy.
func (r *Registry) SetGlobal(protocol, host string, port int, username, password string) error {
	if !entities.SupportedProtocol(protocol) {
		return proxyerrors.ErrUnsupportedProtocol
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.global = &entities.Config{
		Protocol:  protocol,
		Host:      host,
		Port:      port,
		Username:  username,
		Password:  password,
		UpdatedAt: time.Now(),
	}

	r.logger.Info().Str("protocol", protocol).Str("host", host).Msg("global proxy set")
	return r.save()
}

// RemoveGlobal clears the global proxy.
func (r *Registry) RemoveGlobal() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.global = nil
	return r.save()
}

// Assign links an account to a proxy. The link is additive; one proxy can
// serve many accounts.
func (r *Registry) Assign(accountID, proxyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.proxies[proxyID]
	if !ok {
		return proxyerrors.ErrProxyNotFound
	}
	for _, id := range cfg.AssignedTo {
		if id == accountID {
			return nil
		}
	}
	cfg.AssignedTo = append(cfg.AssignedTo, accountID)

	r.logger.Info().Str("account_id", accountID).Str("proxy_id", proxyID).Msg("proxy assigned")
	return r.save()
}

// Unassign removes an account's link to a proxy.
func (r *Registry) Unassign(accountID, proxyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.proxies[proxyID]
	if !ok {
		return proxyerrors.ErrProxyNotFound
	}
	for i, id := range cfg.AssignedTo {
		if id == accountID {
			cfg.AssignedTo = append(cfg.AssignedTo[:i], cfg.AssignedTo[i+1:]...)
			break
		}
	}
	return r.save()
}

// ListResult is the full registry snapshot.
type ListResult struct {
	Global  *entities.Config            `json:"global"`
	Proxies map[string]*entities.Config `json:"proxies"`
	Stats   map[string]*entities.Stats  `json:"stats"`
}

// List returns a snapshot of all proxies and their stats.
func (r *Registry) List() ListResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	proxies := make(map[string]*entities.Config, len(r.proxies))
	for id, cfg := range r.proxies {
		c := *cfg
		proxies[id] = &c
	}
	stats := make(map[string]*entities.Stats, len(r.stats))
	for id, st := range r.stats {
		s := *st
		stats[id] = &s
	}
	var global *entities.Config
	if r.global != nil {
		g := *r.global
		global = &g
	}
	return ListResult{Global: global, Proxies: proxies, Stats: stats}
}

// Get returns the packed form of one proxy by id, or nil when the proxy is
// missing or has no usable host/port.
func (r *Registry) Get(proxyID string) *domain.PackedProxy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.proxies[proxyID]
	if !ok || !cfg.Usable() {
		return nil
	}
	return Pack(cfg)
}

// Global returns the packed global proxy, or nil when unset or unusable.
func (r *Registry) Global() *domain.PackedProxy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.global.Usable() {
		return nil
	}
	return Pack(r.global)
}

// ResolveForAccount resolves the proxy an account's traffic should use:
// first a usable proxy explicitly assigned to the account (in assignment
// order, skipping dangling links), else the global proxy, else none.
func (r *Registry) ResolveForAccount(accountID string) *domain.PackedProxy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, proxyID := range r.proxyIDs {
		cfg, ok := r.proxies[proxyID]
		if !ok {
			continue
		}
		for _, id := range cfg.AssignedTo {
			if id == accountID && cfg.Usable() {
				return Pack(cfg)
			}
		}
	}

	if r.global.Usable() {
		return Pack(r.global)
	}
	return nil
}

// ConfigForAccount returns the raw (unpacked) resolution of the proxy an
// account's traffic rides on. The health monitor re-tests it periodically.
func (r *Registry) ConfigForAccount(accountID string) *entities.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, proxyID := range r.proxyIDs {
		cfg, ok := r.proxies[proxyID]
		if !ok {
			continue
		}
		for _, id := range cfg.AssignedTo {
			if id == accountID && cfg.Usable() {
				c := *cfg
				return &c
			}
		}
	}
	if r.global.Usable() {
		g := *r.global
		return &g
	}
	return nil
}

// RecordTest folds a test result into the proxy's rolling stats. The global
// proxy is tracked under the id "global".
func (r *Registry) RecordTest(proxyID string, result entities.TestResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.stats[proxyID]
	if !ok {
		st = &entities.Stats{}
		r.stats[proxyID] = st
	}

	if result.Success {
		st.SuccessCount++
		if st.AvgResponseTime == 0 {
			st.AvgResponseTime = result.ResponseTime
		} else {
			st.AvgResponseTime = (st.AvgResponseTime + result.ResponseTime) / 2
		}
	} else {
		st.FailCount++
	}
	now := time.Now()
	st.LastTest = &now

	return r.save()
}

// Pack converts a stored config into the packed form handed to dialers.
// Credential packing differs per protocol; combinations a protocol cannot
// express are dropped rather than rejected, so a host/port-valid proxy still
// routes logins even when its auth fields are misconfigured.
func Pack(cfg *entities.Config) *domain.PackedProxy {
	packed := &domain.PackedProxy{
		Protocol: cfg.Protocol,
		Host:     cfg.Host,
		Port:     cfg.Port,
	}

	switch cfg.Protocol {
	case entities.ProtocolSOCKS5:
		packed.RDNS = true
		// socks5 takes a password with or without a username.
		if cfg.Username != "" || cfg.Password != "" {
			packed.Username = cfg.Username
			packed.Password = cfg.Password
		}
	case entities.ProtocolHTTP, entities.ProtocolHTTPS:
		// http/https require the pair together or neither.
		if cfg.Username != "" && cfg.Password != "" {
			packed.Username = cfg.Username
			packed.Password = cfg.Password
		}
	case entities.ProtocolSOCKS4:
		// socks4 knows usernames only, never passwords.
		if cfg.Username != "" {
			packed.Username = cfg.Username
		}
	}

	return packed
}
