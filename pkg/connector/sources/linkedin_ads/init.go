package linkedinads

import (
	"context"

	"github.com/ajitpratap0/linkedin-ads-tap/pkg/config"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/core"
	"github.com/ajitpratap0/linkedin-ads-tap/pkg/connector/registry"
)

func init() {
	// Register LinkedIn Ads source connector in the global registry
	registry.RegisterSource("linkedin_ads", func(ctx context.Context, cfg *config.Config, sink core.Sink) (core.Source, error) {
		return NewSource(ctx, cfg, Deps{Sink: sink})
	})
}
