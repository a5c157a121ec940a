package telegram

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	xproxy "golang.org/x/net/proxy"

	"github.com/Conte777/TgFleet/internal/domain"
)

// dialFunc matches dcs.PlainOptions.Dial.
type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// proxyDial builds the dial function for a packed proxy. A nil proxy dials
// directly.
func proxyDial(p *domain.PackedProxy) (dialFunc, error) {
	if p == nil {
		d := &net.Dialer{}
		return d.DialContext, nil
	}

	addr := net.JoinHostPort(p.Host, fmt.Sprint(p.Port))
	switch p.Protocol {
	case "socks5":
		var auth *xproxy.Auth
		if p.Username != "" || p.Password != "" {
			auth = &xproxy.Auth{User: p.Username, Password: p.Password}
		}
		dialer, err := xproxy.SOCKS5("tcp", addr, auth, xproxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer: %w", err)
		}
		cd, ok := dialer.(xproxy.ContextDialer)
		if !ok {
			return func(_ context.Context, network, target string) (net.Conn, error) {
				return dialer.Dial(network, target)
			}, nil
		}
		return cd.DialContext, nil
	case "socks4":
		return socks4Dial(addr, p.Username), nil
	case "http", "https":
		return httpConnectDial(addr, p.Username, p.Password), nil
	default:
		return nil, fmt.Errorf("unsupported proxy protocol %q", p.Protocol)
	}
}

// socks4Dial speaks the classic SOCKS4 CONNECT handshake. The protocol
// predates hostnames, so the target must resolve to an IPv4 address first.
func socks4Dial(proxyAddr, userID string) dialFunc {
	return func(ctx context.Context, network, target string) (net.Conn, error) {
		host, portStr, err := net.SplitHostPort(target)
		if err != nil {
			return nil, err
		}
		var port uint16
		if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
			return nil, fmt.Errorf("parse target port: %w", err)
		}
		ips, err := (&net.Resolver{}).LookupIP(ctx, "ip4", host)
		if err != nil || len(ips) == 0 {
			return nil, fmt.Errorf("resolve %s for socks4: %w", host, err)
		}
		ip4 := ips[0].To4()
		if ip4 == nil {
			return nil, fmt.Errorf("no ipv4 address for %s", host)
		}

		d := &net.Dialer{}
		conn, err := d.DialContext(ctx, "tcp", proxyAddr)
		if err != nil {
			return nil, err
		}

		req := make([]byte, 0, 9+len(userID))
		req = append(req, 0x04, 0x01)
		req = binary.BigEndian.AppendUint16(req, port)
		req = append(req, ip4...)
		req = append(req, userID...)
		req = append(req, 0x00)
		if _, err := conn.Write(req); err != nil {
			conn.Close()
			return nil, fmt.Errorf("socks4 request: %w", err)
		}

		resp := make([]byte, 8)
		if _, err := io.ReadFull(conn, resp); err != nil {
			conn.Close()
			return nil, fmt.Errorf("socks4 response: %w", err)
		}
		if resp[1] != 0x5a {
			conn.Close()
			return nil, fmt.Errorf("socks4 connect rejected: code 0x%02x", resp[1])
		}
		return conn, nil
	}
}

// httpConnectDial tunnels through an HTTP proxy with a CONNECT request.
func httpConnectDial(proxyAddr, username, password string) dialFunc {
	return func(ctx context.Context, network, target string) (net.Conn, error) {
		d := &net.Dialer{}
		conn, err := d.DialContext(ctx, "tcp", proxyAddr)
		if err != nil {
			return nil, err
		}

		req := &http.Request{
			Method: http.MethodConnect,
			URL:    &url.URL{Opaque: target},
			Host:   target,
			Header: make(http.Header),
		}
		if username != "" && password != "" {
			cred := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
			req.Header.Set("Proxy-Authorization", "Basic "+cred)
		}
		if err := req.Write(conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("connect request: %w", err)
		}

		resp, err := http.ReadResponse(bufio.NewReader(conn), req)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("connect response: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			conn.Close()
			return nil, fmt.Errorf("proxy refused connect: %s", resp.Status)
		}
		return conn, nil
	}
}
