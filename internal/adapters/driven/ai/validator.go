package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-rec/internal/core/domain"
	"github.com/custodia-labs/sercha-rec/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// probeText is embedded once to check the provider's vector size.
const probeText = "sercha-rec configuration check"

// ConfigValidator validates AI provider configurations.
type ConfigValidator struct {
	timeout time.Duration
	create  func(*domain.EmbeddingSettings) (driven.EmbeddingService, error)
}

// NewConfigValidator creates a new AI config validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		timeout: pingTimeout,
		create:  CreateEmbeddingService,
	}
}

// ValidateEmbedding pings the provider and embeds a probe text, so a
// wrong model name or dimension setting is caught before an import.
// Unconfigured settings are not an error.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	if config == nil || !config.IsConfigured() {
		return nil
	}

	svc, err := v.create(config)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		return err
	}

	vec, err := svc.Embed(ctx, probeText)
	if err != nil {
		return fmt.Errorf("embedding probe with %s: %w", svc.ModelName(), err)
	}
	return domain.CheckDimensions(svc.Dimensions(), len(vec))
}
