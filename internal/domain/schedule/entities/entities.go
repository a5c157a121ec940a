package entities

import "time"

// TargetAll is the destination sentinel: at dispatch every sending account
// delivers to its own saved messages instead of one shared chat.
const TargetAll = "all"

// TargetSelf is the saved-messages destination understood by the wire layer.
const TargetSelf = "me"

// Schedule is one recurring delivery job.
type Schedule struct {
	ID         string   `json:"id"`
	Name       string   `json:"name,omitempty"`
	AccountIDs []string `json:"account_ids,omitempty"` // empty fans out to the whole fleet
	Target     string   `json:"target"`                // destination chat, or the "all" sentinel
	Cron       string   `json:"cron"`

	// Exactly one of Message and TemplateID is set.
	Message    string `json:"message,omitempty"`
	TemplateID string `json:"template_id,omitempty"`

	Enabled   bool       `json:"enabled"`
	CreatedAt time.Time  `json:"created_at"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	RunCount  int        `json:"run_count"`
	FailCount int        `json:"fail_count"`
}

// Stats summarizes the schedule table.
type Stats struct {
	Total     int `json:"total"`
	Enabled   int `json:"enabled"`
	TotalRuns int `json:"total_runs"`
	TotalFail int `json:"total_failures"`
}
