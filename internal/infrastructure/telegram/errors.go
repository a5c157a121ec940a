package telegram

import (
	"context"
	"errors"
	"net"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tgerr"

	"github.com/Conte777/TgFleet/internal/domain"
)

// classify tags a platform error with its kind once, here at the boundary.
// Everything above matches on domain.ErrorKind instead of error strings.
func classify(err error) error {
	if err == nil {
		return nil
	}
	return &domain.KindError{Kind: kindOf(err), Err: err}
}

func kindOf(err error) domain.ErrorKind {
	switch {
	case errors.Is(err, auth.ErrPasswordAuthNeeded) || tgerr.Is(err, "SESSION_PASSWORD_NEEDED"):
		return domain.KindPasswordNeeded
	case tgerr.Is(err, "PASSWORD_HASH_INVALID"):
		return domain.KindPasswordInvalid
	case tgerr.Is(err, "PHONE_CODE_INVALID"):
		return domain.KindCodeInvalid
	case tgerr.Is(err, "PHONE_CODE_EXPIRED"):
		return domain.KindCodeExpired
	case tgerr.Is(err, "SESSION_REVOKED", "AUTH_KEY_UNREGISTERED"):
		return domain.KindBanned
	case tgerr.Is(err, "USER_DEACTIVATED", "USER_DEACTIVATED_BAN", "PHONE_NUMBER_BANNED"):
		return domain.KindBanned
	case errors.Is(err, context.DeadlineExceeded):
		return domain.KindTimeout
	}
	if _, ok := tgerr.AsFloodWait(err); ok {
		return domain.KindFlood
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.KindTimeout
		}
		return domain.KindNetwork
	}
	return domain.KindUnknown
}
