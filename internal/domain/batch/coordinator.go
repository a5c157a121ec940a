// Package batch fans management operations out across many accounts,
// strictly sequentially with a fixed pause between items so the fleet never
// bursts.
package batch

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Conte777/TgFleet/config"
	"github.com/Conte777/TgFleet/internal/domain"
	"github.com/Conte777/TgFleet/internal/infrastructure/metrics"
)

// Fleet is the slice of the account pool the coordinator drives.
type Fleet interface {
	AccountIDs() []string
	Acquire(ctx context.Context, accountID, proxyID string) (domain.Client, error)
	ProfileOf(accountID string) (*domain.Profile, error)
	ExportCredential(accountID string) (string, error)
	Import(ctx context.Context, accountID, credential string) error
	CheckHealth(ctx context.Context, accountID string) error
	Remove(ctx context.Context, accountID string) error
}

// Renderer renders a stored template for one account. Satisfied by the
// template manager.
type Renderer interface {
	RenderTemplate(id, accountID string, profile *domain.Profile) (string, error)
}

// DeliveryRecorder receives delivery outcomes. Satisfied by the stats
// tracker.
type DeliveryRecorder interface {
	RecordSent(accountID string) error
	RecordFailed(accountID string) error
}

// RiskGate answers an account's current risk level and folds delivery
// outcomes back into it. Satisfied by the risk ledger.
type RiskGate interface {
	Level(accountID string) string
	RecordMessageSuccess(accountID string) error
	RecordMessageFailure(accountID, errText string) error
}

// bannedLevel mirrors the risk ledger's terminal level; banned accounts are
// skipped without an attempt.
const bannedLevel = "banned"

// ErrAccountBanned marks items skipped by the risk gate.
var ErrAccountBanned = errors.New("account is banned")

// Coordinator runs fan-out passes.
type Coordinator struct {
	fleet     Fleet
	templates Renderer
	stats     DeliveryRecorder
	risk      RiskGate
	metrics   *metrics.Metrics

	delay  time.Duration
	logger zerolog.Logger
}

func NewCoordinator(cfg *config.BatchConfig, fleet Fleet, templates Renderer, stats DeliveryRecorder, risk RiskGate, m *metrics.Metrics, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		fleet:     fleet,
		templates: templates,
		stats:     stats,
		risk:      risk,
		metrics:   m,
		delay:     cfg.DefaultDelay,
		logger:    logger.With().Str("component", "batch_coordinator").Logger(),
	}
}

// expand resolves an empty id list to the whole fleet.
func (c *Coordinator) expand(accountIDs []string) []string {
	if len(accountIDs) == 0 {
		return c.fleet.AccountIDs()
	}
	return accountIDs
}

// run drives one pass: items in input order, one at a time, paced by the
// configured delay. The item fn never aborts the pass.
func (c *Coordinator) run(ctx context.Context, accountIDs []string, fn func(accountID string) error) domain.BatchReport {
	limiter := rate.NewLimiter(rate.Every(c.delay), 1)

	report := domain.BatchReport{Total: len(accountIDs)}
	for _, accountID := range accountIDs {
		if err := limiter.Wait(ctx); err != nil {
			report.Results = append(report.Results, domain.ItemResult{
				AccountID: accountID,
				Error:     err.Error(),
			})
			report.FailCount++
			continue
		}

		item := domain.ItemResult{AccountID: accountID, Success: true}
		if err := fn(accountID); err != nil {
			item.Success = false
			item.Error = err.Error()
			report.FailCount++
		} else {
			report.SuccessCount++
		}
		report.Results = append(report.Results, item)
		c.metrics.BatchItemsTotal.Inc()
	}
	c.metrics.BatchPassesTotal.Inc()
	return report
}

// gate rejects banned accounts before any wire traffic.
func (c *Coordinator) gate(accountID string) error {
	if c.risk != nil && c.risk.Level(accountID) == bannedLevel {
		return ErrAccountBanned
	}
	return nil
}

// send acquires the account's connection and delivers one message. The
// outcome reaches both the stats tracker and the risk ledger, so a flood or
// ban answer on the wire escalates the account like a failed login does.
func (c *Coordinator) send(ctx context.Context, accountID, target, text string) error {
	if err := c.gate(accountID); err != nil {
		return err
	}
	client, err := c.fleet.Acquire(ctx, accountID, "")
	if err != nil {
		return err
	}
	if err := client.SendMessage(ctx, target, text); err != nil {
		if recErr := c.stats.RecordFailed(accountID); recErr != nil {
			c.logger.Error().Err(recErr).Str("account_id", accountID).Msg("record failed delivery")
		}
		if c.risk != nil {
			if recErr := c.risk.RecordMessageFailure(accountID, err.Error()); recErr != nil {
				c.logger.Error().Err(recErr).Str("account_id", accountID).Msg("record delivery risk")
			}
		}
		c.metrics.MessagesFailed.Inc()
		return err
	}
	if recErr := c.stats.RecordSent(accountID); recErr != nil {
		c.logger.Error().Err(recErr).Str("account_id", accountID).Msg("record delivery")
	}
	if c.risk != nil {
		if recErr := c.risk.RecordMessageSuccess(accountID); recErr != nil {
			c.logger.Error().Err(recErr).Str("account_id", accountID).Msg("record delivery risk")
		}
	}
	c.metrics.MessagesSent.Inc()
	return nil
}

// SendMessage delivers the same text from every listed account.
func (c *Coordinator) SendMessage(ctx context.Context, accountIDs []string, target, text string) domain.BatchReport {
	ids := c.expand(accountIDs)
	c.logger.Info().Int("accounts", len(ids)).Str("target", target).Msg("batch send started")

	return c.run(ctx, ids, func(accountID string) error {
		return c.send(ctx, accountID, target, text)
	})
}

// SendTemplate renders the template per account and delivers the result.
func (c *Coordinator) SendTemplate(ctx context.Context, accountIDs []string, target, templateID string) domain.BatchReport {
	ids := c.expand(accountIDs)
	c.logger.Info().Int("accounts", len(ids)).Str("template_id", templateID).Msg("batch template send started")

	return c.run(ctx, ids, func(accountID string) error {
		profile, err := c.fleet.ProfileOf(accountID)
		if err != nil {
			return err
		}
		text, err := c.templates.RenderTemplate(templateID, accountID, profile)
		if err != nil {
			return err
		}
		return c.send(ctx, accountID, target, text)
	})
}

// CheckHealth probes every listed account.
func (c *Coordinator) CheckHealth(ctx context.Context, accountIDs []string) domain.BatchReport {
	ids := c.expand(accountIDs)

	return c.run(ctx, ids, func(accountID string) error {
		return c.fleet.CheckHealth(ctx, accountID)
	})
}

// ExportCredentials collects the stored credentials of every listed account.
// The report carries per-account outcomes; credentials come back separately
// so a partial failure still yields the exportable part.
func (c *Coordinator) ExportCredentials(ctx context.Context, accountIDs []string) (map[string]string, domain.BatchReport) {
	ids := c.expand(accountIDs)

	credentials := make(map[string]string)
	report := c.run(ctx, ids, func(accountID string) error {
		cred, err := c.fleet.ExportCredential(accountID)
		if err != nil {
			return err
		}
		credentials[accountID] = cred
		return nil
	})
	return credentials, report
}

// ImportCredentials registers a batch of exported credentials, keyed by the
// account id each one should take. Items run in id order so reports stay
// deterministic; a rejected credential never aborts its siblings.
func (c *Coordinator) ImportCredentials(ctx context.Context, credentials map[string]string) domain.BatchReport {
	ids := make([]string, 0, len(credentials))
	for id := range credentials {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	c.logger.Info().Int("accounts", len(ids)).Msg("batch import started")

	return c.run(ctx, ids, func(accountID string) error {
		return c.fleet.Import(ctx, accountID, credentials[accountID])
	})
}

// DeleteAccounts removes every listed account. Protected accounts surface as
// per-item failures.
func (c *Coordinator) DeleteAccounts(ctx context.Context, accountIDs []string) domain.BatchReport {
	ids := c.expand(accountIDs)
	c.logger.Info().Int("accounts", len(ids)).Msg("batch delete started")

	return c.run(ctx, ids, func(accountID string) error {
		return c.fleet.Remove(ctx, accountID)
	})
}
