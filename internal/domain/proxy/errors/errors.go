package errors

import "errors"

var (
	ErrUnsupportedProtocol = errors.New("proxy protocol must be one of socks5, socks4, http, https")
	ErrProxyNotFound       = errors.New("proxy not found")
	ErrProxyNotUsable      = errors.New("proxy has no host or port")
)
