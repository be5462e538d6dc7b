package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/neoclaw-ai/teledispatch/internal/updates"
)

// Validatable is implemented by config sections that can self-validate.
type Validatable interface {
	Validate() error
}

// Validate checks polling limits and the allowed update kinds. The token is
// checked separately by RequireToken since offline commands run without one.
func (c TelegramConfig) Validate() error {
	var errs []error
	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid server_url %q", c.ServerURL))
		}
	}
	if c.PollTimeout < 0 {
		errs = append(errs, errors.New("poll_timeout must be >= 0"))
	}
	if c.PollLimit < 0 || c.PollLimit > updates.MaxPollLimit {
		errs = append(errs, fmt.Errorf("poll_limit must be between 0 and %d", updates.MaxPollLimit))
	}
	if c.RequestTimeout <= c.PollTimeout {
		errs = append(errs, errors.New("request_timeout must be greater than poll_timeout"))
	}
	if _, err := c.AllowedKinds(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RequireToken reports a missing bot token.
func (c TelegramConfig) RequireToken() error {
	if c.Token == "" {
		return errors.New("telegram.token is required")
	}
	return nil
}

// AllowedKinds parses AllowedUpdates.
func (c TelegramConfig) AllowedKinds() ([]updates.Kind, error) {
	kinds := make([]updates.Kind, 0, len(c.AllowedUpdates))
	for _, name := range c.AllowedUpdates {
		kind, err := updates.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("allowed_updates: %w (known kinds: %s)", err, knownKindList())
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func knownKindList() string {
	known := updates.KnownKinds()
	names := make([]string, len(known))
	for i, k := range known {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// Validate validates dispatcher settings.
func (c DispatchConfig) Validate() error {
	return nil
}

// Validate checks the listen address when metrics are enabled.
func (c MetricsConfig) Validate() error {
	if c.Listen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	return nil
}

// Validate checks the report schedule when reporting is enabled.
func (c StatsConfig) Validate() error {
	if c.ReportSchedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(c.ReportSchedule); err != nil {
		return fmt.Errorf("invalid report_schedule %q: %w", c.ReportSchedule, err)
	}
	return nil
}

// Validate checks exporter settings when tracing is enabled.
func (c TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required when enabled=true"))
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		errs = append(errs, errors.New("sample_rate must be between 0 and 1"))
	}
	return errors.Join(errs...)
}

// Validate validates every section and joins the failures.
func (cfg *Config) Validate() error {
	var errs []error

	sections := []struct {
		name    string
		section Validatable
	}{
		{"telegram", cfg.Telegram},
		{"dispatch", cfg.Dispatch},
		{"metrics", cfg.Metrics},
		{"stats", cfg.Stats},
		{"tracing", cfg.Tracing},
	}
	for _, s := range sections {
		if err := s.section.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
