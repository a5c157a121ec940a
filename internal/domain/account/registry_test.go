package account

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/config"
	"github.com/Conte777/TgFleet/internal/domain"
	accounterrors "github.com/Conte777/TgFleet/internal/domain/account/errors"
	"github.com/Conte777/TgFleet/internal/infrastructure/storage"
)

func TestRegistry_AddWithCredentialValidates(t *testing.T) {
	factory := &fakeFactory{clients: map[string]*fakeClient{
		"good": {accountID: "good", authorized: true, profile: domain.Profile{Username: "alice", UserID: 42}},
		"bad":  {accountID: "bad", authorized: false},
	}}
	registry := newTestRegistry(t, factory.new)

	ctx := context.Background()
	if err := registry.AddWithCredential(ctx, "good", "cred", nil); err != nil {
		t.Fatalf("AddWithCredential: %v", err)
	}
	acc, err := registry.Get("good")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if acc.Username != "alice" || acc.UserID != 42 {
		t.Errorf("profile = %s/%d, want alice/42", acc.Username, acc.UserID)
	}

	err = registry.AddWithCredential(ctx, "bad", "cred", nil)
	if !errors.Is(err, accounterrors.ErrCredentialInvalid) {
		t.Fatalf("AddWithCredential(bad) = %v, want ErrCredentialInvalid", err)
	}
	if _, err := registry.Get("bad"); !errors.Is(err, accounterrors.ErrAccountNotFound) {
		t.Fatal("invalid credential was stored")
	}
}

func TestRegistry_DuplicateAndReservedIDs(t *testing.T) {
	factory := &fakeFactory{}
	registry := newTestRegistry(t, factory.new)

	ctx := context.Background()
	if err := registry.AddWithCredential(ctx, "acc", "cred", nil); err != nil {
		t.Fatalf("AddWithCredential: %v", err)
	}
	if err := registry.AddWithCredential(ctx, "acc", "cred2", nil); !errors.Is(err, accounterrors.ErrAccountExists) {
		t.Fatalf("duplicate add = %v, want ErrAccountExists", err)
	}
	if err := registry.AddWithCredential(ctx, "default", "cred", nil); !errors.Is(err, accounterrors.ErrAccountExists) {
		t.Fatalf("reserved add = %v, want ErrAccountExists", err)
	}
}

func TestRegistry_SeedsDefaultFromCredentialFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "default.credential"), []byte("boot-cred\n"), 0o600); err != nil {
		t.Fatalf("write credential file: %v", err)
	}

	store, err := storage.NewStore(filepath.Join(dir, "accounts.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	factory := &fakeFactory{}
	registry, err := NewRegistry(store, &config.StorageConfig{DataDir: dir}, testTelegramConfig(), factory.new, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	cred, err := registry.Credential("default")
	if err != nil {
		t.Fatalf("Credential: %v", err)
	}
	if cred != "boot-cred" {
		t.Errorf("Credential = %q, want boot-cred (trimmed)", cred)
	}
	if err := registry.Remove("default"); !errors.Is(err, accounterrors.ErrDefaultProtected) {
		t.Fatalf("Remove(default) = %v, want ErrDefaultProtected", err)
	}
}

func TestRegistry_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewStore(filepath.Join(dir, "accounts.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	factory := &fakeFactory{}
	registry, err := NewRegistry(store, &config.StorageConfig{DataDir: dir}, testTelegramConfig(), factory.new, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := registry.AddAuthorized("acc", "cred", &domain.Profile{Phone: "+10000000000"}); err != nil {
		t.Fatalf("AddAuthorized: %v", err)
	}

	store2, err := storage.NewStore(filepath.Join(dir, "accounts.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	registry2, err := NewRegistry(store2, &config.StorageConfig{DataDir: dir}, testTelegramConfig(), factory.new, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry reload: %v", err)
	}
	acc, err := registry2.Get("acc")
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if acc.Phone != "+10000000000" || acc.Credential != "cred" {
		t.Errorf("reloaded account = %+v, want phone and credential kept", acc)
	}
}
