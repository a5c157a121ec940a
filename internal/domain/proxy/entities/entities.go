package entities

import "time"

// Protocols supported for account traffic routing.
const (
	ProtocolSOCKS5 = "socks5"
	ProtocolSOCKS4 = "socks4"
	ProtocolHTTP   = "http"
	ProtocolHTTPS  = "https"
)

// SupportedProtocol reports whether protocol is one of the four supported
// schemes.
func SupportedProtocol(protocol string) bool {
	switch protocol {
	case ProtocolSOCKS5, ProtocolSOCKS4, ProtocolHTTP, ProtocolHTTPS:
		return true
	default:
		return false
	}
}

// Config is a stored proxy. The global proxy is a Config with an empty
// ProxyID. Assignment is many-accounts-to-one-proxy, not exclusive.
type Config struct {
	ProxyID    string    `json:"proxy_id,omitempty"`
	Protocol   string    `json:"protocol"`
	Host       string    `json:"host"`
	Port       int       `json:"port"`
	Username   string    `json:"username,omitempty"`
	Password   string    `json:"password,omitempty"`
	AssignedTo []string  `json:"assigned_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// Usable reports whether the config has the host/port needed to dial.
func (c *Config) Usable() bool {
	return c != nil && c.Host != "" && c.Port != 0
}

// Stats is the rolling test record of one proxy.
type Stats struct {
	SuccessCount int `json:"success_count"`
	FailCount    int `json:"fail_count"`
	// AvgResponseTime is smoothed with (old+new)/2 on every sample.
	AvgResponseTime float64    `json:"avg_response_time"`
	LastTest        *time.Time `json:"last_test"`
}

// TestResult is the outcome of one connectivity test.
type TestResult struct {
	Success      bool    `json:"success"`
	ResponseTime float64 `json:"response_time,omitempty"` // milliseconds
	StatusCode   int     `json:"status_code,omitempty"`
	Timeout      bool    `json:"timeout,omitempty"`
	Error        string  `json:"error,omitempty"`
}
