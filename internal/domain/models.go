package domain

// Profile holds the identity fields the platform reports for an authorized
// account.
type Profile struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Premium   bool   `json:"is_premium"`
}

// ClientConfig holds everything needed to open a connection for one account.
type ClientConfig struct {
	APIID      int
	APIHash    string
	AccountID  string
	Credential string       // opaque exported session blob, never parsed
	Proxy      *PackedProxy // nil means direct connection
}

// PackedProxy is a proxy config after protocol-specific credential packing.
// Username/Password are already filtered according to what the protocol
// supports; consumers use them as-is.
type PackedProxy struct {
	Protocol string `json:"proxy_type"`
	Host     string `json:"addr"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	RDNS     bool   `json:"rdns,omitempty"`
}

// ItemResult is the per-account outcome of a fan-out pass. A result list
// always preserves input order.
type ItemResult struct {
	AccountID string `json:"account"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// BatchReport aggregates a fan-out pass.
type BatchReport struct {
	Total        int          `json:"total"`
	SuccessCount int          `json:"success_count"`
	FailCount    int          `json:"fail_count"`
	Results      []ItemResult `json:"results"`
}
