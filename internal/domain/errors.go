package domain

import "errors"

var (
	// ErrNotConnected is returned by client operations that need a live
	// connection.
	ErrNotConnected = errors.New("client is not connected")

	// ErrNotAuthorized means the stored credential no longer authorizes the
	// session.
	ErrNotAuthorized = errors.New("session is not authorized")

	// ErrPasswordNeeded signals that the login requires a 2FA password.
	ErrPasswordNeeded = errors.New("2fa password required")

	// ErrClientUnavailable is the definitive "no usable connection for this
	// attempt" outcome of acquisition. Callers must not treat it as a
	// transient retry signal.
	ErrClientUnavailable = errors.New("client unavailable")
)

// ErrorKind is the tagged classification of a platform error, produced once
// at the point where the protocol client's errors are first observed. Layers
// above pattern-match on the kind instead of re-parsing error text.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindPasswordNeeded
	KindPasswordInvalid
	KindCodeInvalid
	KindCodeExpired
	KindFlood
	KindBanned
	KindTimeout
	KindNetwork
)

// KindError carries an ErrorKind together with the underlying error.
type KindError struct {
	Kind ErrorKind
	Err  error
}

func (e *KindError) Error() string {
	return e.Err.Error()
}

func (e *KindError) Unwrap() error {
	return e.Err
}

// KindOf extracts the classification from an error chain, defaulting to
// KindUnknown.
func KindOf(err error) ErrorKind {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	if errors.Is(err, ErrPasswordNeeded) {
		return KindPasswordNeeded
	}
	return KindUnknown
}
