package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"EconomicPulse/internal/domain"
	"EconomicPulse/internal/ports"
)

// StrategySource implements PayloadSource via a registered provider.
type StrategySource struct {
	registry *Registry
	provider string
	logger   *slog.Logger
}

var _ ports.PayloadSource = (*StrategySource)(nil)

// NewStrategySource wires the registry with the configured provider name.
func NewStrategySource(reg *Registry, provider string, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		provider: provider,
		logger:   log,
	}
}

// Fetch resolves the provider and requests all series in a single call.
func (s *StrategySource) Fetch(ctx context.Context, req ports.FetchRequest) (domain.RawPayload, error) {
	if s.registry == nil {
		return domain.RawPayload{}, fmt.Errorf("provider registry is not configured")
	}
	if len(req.Series) == 0 {
		return domain.RawPayload{}, fmt.Errorf("no series requested")
	}

	provider, err := s.registry.Resolve(s.provider)
	if err != nil {
		return domain.RawPayload{}, err
	}

	s.debug("fetch payload", "provider", provider.Name(), "series", strings.Join(req.Series, ","),
		"from", req.DateFrom, "to", req.DateTo)

	payload, err := provider.Fetch(ctx, req)
	if err != nil {
		return domain.RawPayload{}, fmt.Errorf("provider %s: %w", provider.Name(), err)
	}

	s.debug("payload received", "endpoint", payload.Endpoint, "attempt", payload.Attempt, "bytes", len(payload.Body))
	return payload, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
