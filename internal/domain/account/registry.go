// Package account manages the fleet: registration and removal of accounts,
// their persisted credentials, and the pool of live connections.
package account

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/config"
	"github.com/Conte777/TgFleet/internal/domain"
	"github.com/Conte777/TgFleet/internal/domain/account/entities"
	accounterrors "github.com/Conte777/TgFleet/internal/domain/account/errors"
	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

// validateTimeout bounds the connect-and-check round trip of a credential
// registration.
const validateTimeout = 30 * time.Second

// Registry is the persisted account catalog.
type Registry struct {
	store   *storage.Store
	tg      *config.TelegramConfig
	factory domain.ClientFactory

	mu         sync.RWMutex
	accounts   map[string]*entities.Account
	accountIDs []string // insertion order

	logger zerolog.Logger
}

// NewRegistry loads the catalog from its backing store and seeds the
// bootstrap account from the standalone credential file when present.
func NewRegistry(store *storage.Store, storageCfg *config.StorageConfig, tg *config.TelegramConfig, factory domain.ClientFactory, logger zerolog.Logger) (*Registry, error) {
	r := &Registry{
		store:    store,
		tg:       tg,
		factory:  factory,
		accounts: make(map[string]*entities.Account),
		logger:   logger.With().Str("component", "account_registry").Logger(),
	}
	if err := store.Load(&r.accounts); err != nil {
		return nil, err
	}
	for id := range r.accounts {
		r.accountIDs = append(r.accountIDs, id)
	}
	sort.Strings(r.accountIDs)

	if err := r.seedDefault(storageCfg.DataDir); err != nil {
		return nil, err
	}
	return r, nil
}

// seedDefault registers the bootstrap account from <data-dir>/default.credential.
// A registry already holding "default" keeps its stored record; the file is
// only read on first boot.
func (r *Registry) seedDefault(dataDir string) error {
	if _, ok := r.accounts[entities.DefaultAccountID]; ok {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(dataDir, "default.credential"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read default credential: %w", err)
	}
	credential := strings.TrimSpace(string(data))
	if credential == "" {
		return nil
	}

	r.accounts[entities.DefaultAccountID] = &entities.Account{
		AccountID:  entities.DefaultAccountID,
		Credential: credential,
		CreatedAt:  time.Now(),
	}
	r.accountIDs = append([]string{entities.DefaultAccountID}, r.accountIDs...)
	r.logger.Info().Msg("bootstrap account seeded from credential file")
	return r.save()
}

func (r *Registry) save() error {
	return r.store.Save(r.accounts)
}

// AddWithCredential registers an account from an exported credential. The
// credential is validated by opening a live connection and fetching the
// profile before anything is stored.
func (r *Registry) AddWithCredential(ctx context.Context, accountID, credential string, proxy *domain.PackedProxy) error {
	r.mu.RLock()
	_, exists := r.accounts[accountID]
	r.mu.RUnlock()
	if exists || accountID == entities.DefaultAccountID {
		return accounterrors.ErrAccountExists
	}

	profile, err := r.validate(ctx, accountID, credential, proxy)
	if err != nil {
		return err
	}

	return r.AddAuthorized(accountID, credential, profile)
}

// validate opens a throwaway connection to prove the credential authorizes.
func (r *Registry) validate(ctx context.Context, accountID, credential string, proxy *domain.PackedProxy) (*domain.Profile, error) {
	client, err := r.factory(domain.ClientConfig{
		APIID:      r.tg.APIID,
		APIHash:    r.tg.APIHash,
		AccountID:  accountID,
		Credential: credential,
		Proxy:      proxy,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()
	defer client.Disconnect(context.Background())

	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	authorized, err := client.IsAuthorized(ctx)
	if err != nil {
		return nil, fmt.Errorf("check authorization: %w", err)
	}
	if !authorized {
		return nil, accounterrors.ErrCredentialInvalid
	}
	profile, err := client.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return profile, nil
}

// AddAuthorized stores an account whose credential is already proven, as
// after a completed login.
func (r *Registry) AddAuthorized(accountID, credential string, profile *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[accountID]; exists {
		return accounterrors.ErrAccountExists
	}

	acc := &entities.Account{
		AccountID:  accountID,
		Credential: credential,
		CreatedAt:  time.Now(),
	}
	if profile != nil {
		acc.UserID = profile.UserID
		acc.Username = profile.Username
		acc.Phone = profile.Phone
		acc.FirstName = profile.FirstName
		acc.LastName = profile.LastName
		acc.Premium = profile.Premium
	}
	r.accounts[accountID] = acc
	r.accountIDs = append(r.accountIDs, accountID)

	if err := r.save(); err != nil {
		delete(r.accounts, accountID)
		r.accountIDs = r.accountIDs[:len(r.accountIDs)-1]
		return err
	}
	r.logger.Info().Str("account_id", accountID).Msg("account registered")
	return nil
}

// Remove deletes an account. The bootstrap account is protected.
func (r *Registry) Remove(accountID string) error {
	if accountID == entities.DefaultAccountID {
		return accounterrors.ErrDefaultProtected
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[accountID]; !ok {
		return accounterrors.ErrAccountNotFound
	}
	delete(r.accounts, accountID)
	for i, id := range r.accountIDs {
		if id == accountID {
			r.accountIDs = append(r.accountIDs[:i], r.accountIDs[i+1:]...)
			break
		}
	}

	if err := r.save(); err != nil {
		return err
	}
	r.logger.Info().Str("account_id", accountID).Msg("account removed")
	return nil
}

// Get returns a copy of one account record.
func (r *Registry) Get(accountID string) (*entities.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[accountID]
	if !ok {
		return nil, accounterrors.ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

// Credential returns the stored credential for export.
func (r *Registry) Credential(accountID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[accountID]
	if !ok {
		return "", accounterrors.ErrAccountNotFound
	}
	return acc.Credential, nil
}

// AccountIDs returns the registered ids in registration order.
func (r *Registry) AccountIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.accountIDs...)
}

// Accounts returns copies of every record in registration order.
func (r *Registry) Accounts() []entities.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entities.Account, 0, len(r.accountIDs))
	for _, id := range r.accountIDs {
		out = append(out, *r.accounts[id])
	}
	return out
}

// MarkUsed bumps the usage counters after a successful acquisition.
func (r *Registry) MarkUsed(accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[accountID]
	if !ok {
		return accounterrors.ErrAccountNotFound
	}
	now := time.Now()
	acc.UseCount++
	acc.LastOnline = &now
	return r.save()
}
