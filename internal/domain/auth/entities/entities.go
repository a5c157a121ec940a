package entities

import "time"

// QRDeadline is how long a QR login session stays scannable. The token is
// refreshed under the hood; the ceiling applies to the whole session.
const QRDeadline = 120 * time.Second

// QR login states.
const (
	QRStateWaiting      = "waiting"
	QRStateNeedPassword = "need_password"
	QRStateSuccess      = "success"
	QRStateTimeout      = "timeout"
	QRStateFailed       = "failed"
)

// Phone login states.
const (
	PhoneStateCodeSent = "code_sent"
	PhoneStateNeed2FA  = "need_2fa"
	PhoneStateSuccess  = "success"
	PhoneStateFailed   = "failed"
)

// QRSession is the observable state of one QR login attempt.
type QRSession struct {
	AccountID string    `json:"account_id"`
	State     string    `json:"state"`
	QRLink    string    `json:"qr_link,omitempty"`
	QRImage   string    `json:"qr_image,omitempty"` // PNG data URI
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Elapsed returns how long the session has been open.
func (s *QRSession) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// Remaining returns the time left before the deadline, floored at zero.
func (s *QRSession) Remaining(now time.Time) time.Duration {
	left := QRDeadline - s.Elapsed(now)
	if left < 0 {
		return 0
	}
	return left
}

// PhoneSession is the observable state of one phone login attempt.
type PhoneSession struct {
	AccountID string    `json:"account_id"`
	State     string    `json:"state"`
	Phone     string    `json:"phone"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
