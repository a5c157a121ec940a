package entities

import "time"

// DefaultAccountID is the reserved id of the bootstrap account whose
// credential lives in a standalone file in the data dir. It cannot be
// removed through the registry.
const DefaultAccountID = "default"

// Connection statuses reported by listings.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Account is one managed account's persisted record.
type Account struct {
	AccountID  string     `json:"account_id"`
	Credential string     `json:"credential"`
	UserID     int64      `json:"user_id,omitempty"`
	Username   string     `json:"username,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	FirstName  string     `json:"first_name,omitempty"`
	LastName   string     `json:"last_name,omitempty"`
	Premium    bool       `json:"is_premium,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastOnline *time.Time `json:"last_online,omitempty"`
	UseCount   int        `json:"use_count"`
}

// Info projects the record into its listing view. Status and risk level are
// runtime state and stay empty here.
func (a *Account) Info() Info {
	return Info{
		AccountID:  a.AccountID,
		UserID:     a.UserID,
		Username:   a.Username,
		Phone:      a.Phone,
		FirstName:  a.FirstName,
		LastName:   a.LastName,
		Premium:    a.Premium,
		CreatedAt:  a.CreatedAt,
		LastOnline: a.LastOnline,
		UseCount:   a.UseCount,
	}
}

// Info is the listing view of an account: the stored record minus the
// credential, plus derived runtime state.
type Info struct {
	AccountID  string     `json:"account_id"`
	UserID     int64      `json:"user_id,omitempty"`
	Username   string     `json:"username,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	FirstName  string     `json:"first_name,omitempty"`
	LastName   string     `json:"last_name,omitempty"`
	Premium    bool       `json:"is_premium,omitempty"`
	Status     string     `json:"status"`
	RiskLevel  string     `json:"risk_level"`
	CreatedAt  time.Time  `json:"created_at"`
	LastOnline *time.Time `json:"last_online,omitempty"`
	UseCount   int        `json:"use_count"`
}
