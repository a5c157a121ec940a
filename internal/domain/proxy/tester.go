package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/Conte777/TgFleet/internal/domain/proxy/entities"
	proxyerrors "github.com/Conte777/TgFleet/internal/domain/proxy/errors"
	"github.com/Conte777/TgFleet/internal/infrastructure/metrics"
)

const (
	testTimeout = 10 * time.Second
	testURL     = "https://www.google.com"
)

// Tester runs bounded connectivity checks through stored proxies and folds
// the outcomes into the registry's rolling stats.
type Tester struct {
	registry *Registry
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewTester(registry *Registry, m *metrics.Metrics, logger zerolog.Logger) *Tester {
	return &Tester{
		registry: registry,
		metrics:  m,
		logger:   logger.With().Str("component", "proxy_tester").Logger(),
	}
}

// Test checks one proxy by id and records the result. The global proxy is
// addressed as "global".
func (t *Tester) Test(ctx context.Context, proxyID string) (entities.TestResult, error) {
	snapshot := t.registry.List()
	var cfg *entities.Config
	if proxyID == "global" {
		cfg = snapshot.Global
	} else {
		cfg = snapshot.Proxies[proxyID]
	}
	if cfg == nil {
		return entities.TestResult{}, proxyerrors.ErrProxyNotFound
	}
	if !cfg.Usable() {
		return entities.TestResult{}, proxyerrors.ErrProxyNotUsable
	}

	result := t.run(ctx, cfg)
	if err := t.registry.RecordTest(proxyID, result); err != nil {
		return result, err
	}

	outcome := "success"
	if !result.Success {
		outcome = "failure"
		if result.Timeout {
			outcome = "timeout"
		}
	}
	t.metrics.ProxyTestsTotal.WithLabelValues(outcome).Inc()
	if result.Success {
		t.metrics.ProxyTestLatency.Observe(result.ResponseTime / 1000)
	}

	t.logger.Debug().
		Str("proxy_id", proxyID).
		Bool("success", result.Success).
		Float64("response_time_ms", result.ResponseTime).
		Msg("proxy tested")
	return result, nil
}

// TestAll checks every stored proxy plus the global one when set. Failures
// are recorded per proxy, never aborting the sweep.
func (t *Tester) TestAll(ctx context.Context) map[string]entities.TestResult {
	snapshot := t.registry.List()

	results := make(map[string]entities.TestResult)
	for id := range snapshot.Proxies {
		res, err := t.Test(ctx, id)
		if err != nil {
			res = entities.TestResult{Success: false, Error: err.Error()}
		}
		results[id] = res
	}
	if snapshot.Global != nil {
		res, err := t.Test(ctx, "global")
		if err != nil {
			res = entities.TestResult{Success: false, Error: err.Error()}
		}
		results["global"] = res
	}
	return results
}

// SweepProxies re-tests every stored proxy, discarding the per-proxy results;
// outcomes land in the registry stats either way.
func (t *Tester) SweepProxies(ctx context.Context) {
	t.TestAll(ctx)
}

// run performs the actual round trip. socks5/http/https go through an
// http.Transport proxy URL; socks4 falls back to a raw TCP reachability
// check because net/http cannot speak it.
func (t *Tester) run(ctx context.Context, cfg *entities.Config) entities.TestResult {
	start := time.Now()

	if cfg.Protocol == entities.ProtocolSOCKS4 {
		return t.runTCP(ctx, cfg, start)
	}

	proxyURL := &url.URL{
		Scheme: cfg.Protocol,
		Host:   net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
	}
	packed := Pack(cfg)
	if packed.Username != "" || packed.Password != "" {
		proxyURL.User = url.UserPassword(packed.Username, packed.Password)
	}

	client := &http.Client{
		Timeout: testTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, testURL, nil)
	if err != nil {
		return entities.TestResult{Success: false, Error: err.Error()}
	}

	resp, err := client.Do(req)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		return entities.TestResult{
			Success:      false,
			ResponseTime: elapsed,
			Timeout:      isTimeout(err),
			Error:        err.Error(),
		}
	}
	defer resp.Body.Close()

	return entities.TestResult{
		Success:      resp.StatusCode < 400,
		ResponseTime: elapsed,
		StatusCode:   resp.StatusCode,
	}
}

func (t *Tester) runTCP(ctx context.Context, cfg *entities.Config, start time.Time) entities.TestResult {
	d := net.Dialer{Timeout: testTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)))
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		return entities.TestResult{
			Success:      false,
			ResponseTime: elapsed,
			Timeout:      isTimeout(err),
			Error:        err.Error(),
		}
	}
	conn.Close()
	return entities.TestResult{Success: true, ResponseTime: elapsed}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return os.IsTimeout(err)
}
