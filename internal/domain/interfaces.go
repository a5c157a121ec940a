package domain

import "context"

// Client defines the connection handle for one authorized account. It wraps
// the MTProto client; the orchestration layers never touch the wire protocol
// directly.
type Client interface {
	// Connect opens the connection and verifies authorization. The caller
	// should provide a context with timeout.
	Connect(ctx context.Context) error

	// Disconnect closes the connection. Safe to call more than once.
	Disconnect(ctx context.Context) error

	// IsConnected reports whether the connection is currently live.
	IsConnected() bool

	// IsAuthorized checks the authorization status of the session.
	IsAuthorized(ctx context.Context) (bool, error)

	// Profile returns the account's own profile. Requires a live connection.
	Profile(ctx context.Context) (*Profile, error)

	// SendMessage sends a text message to a destination (username, "me" for
	// saved messages). Requires a live connection.
	SendMessage(ctx context.Context, target, text string) error

	// ExportCredential exports the session as an opaque string for storage.
	ExportCredential(ctx context.Context) (string, error)

	// AccountID returns the account id this client serves.
	AccountID() string
}

// ClientFactory creates a Client from a config. Overridable in tests.
type ClientFactory func(cfg ClientConfig) (Client, error)

// PendingLogin is a fresh, credential-less connection used by one login
// attempt. It stays open across the whole authentication exchange and is
// closed either by success (after the credential is exported) or by the auth
// manager discarding the session.
type PendingLogin interface {
	// BeginQR requests a scannable login token and returns its tg:// URL.
	BeginQR(ctx context.Context) (string, error)

	// WaitQR blocks until the token is scanned and accepted. Returns nil on
	// full authorization, an error of kind KindPasswordNeeded when 2FA is
	// required, or the failure otherwise. The caller owns the deadline.
	WaitQR(ctx context.Context) error

	// SendCode asks the server to send a login code to phone and returns the
	// server-issued code hash.
	SendCode(ctx context.Context, phone string) (string, error)

	// SignIn submits a received code. Fails with kind KindPasswordNeeded when
	// the account has 2FA enabled.
	SignIn(ctx context.Context, phone, codeHash, code string) error

	// SubmitPassword completes a 2FA challenge.
	SubmitPassword(ctx context.Context, password string) error

	// IsAuthorized reports whether the session reached full authorization.
	IsAuthorized(ctx context.Context) (bool, error)

	// Profile returns the just-authorized account's profile.
	Profile(ctx context.Context) (*Profile, error)

	// ExportCredential exports the now-authorized session.
	ExportCredential(ctx context.Context) (string, error)

	// Close tears the connection down. Safe to call more than once.
	Close(ctx context.Context) error
}

// LoginBackend opens pending logins. The production implementation dials
// Telegram through the resolved proxy; tests substitute a fake.
type LoginBackend interface {
	Open(ctx context.Context, proxy *PackedProxy) (PendingLogin, error)
}
