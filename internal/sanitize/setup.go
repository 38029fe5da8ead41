package sanitize

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/bouncer/internal/config"
	"github.com/fyrsmithlabs/bouncer/internal/events"
	"github.com/fyrsmithlabs/bouncer/internal/logging"
	"github.com/fyrsmithlabs/bouncer/internal/provider"
	"github.com/fyrsmithlabs/bouncer/internal/secrets"
)

// FromConfig builds a Service from loaded configuration. Options in extra
// are applied last and override configured values.
func FromConfig(ctx context.Context, cfg *config.Config, logger *logging.Logger, extra ...Option) (*Service, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	sc := cfg.Service

	opts := []Option{
		WithLogger(logger),
		WithTimeout(sc.Timeout.Duration()),
		WithCompletion(sc.MaxTokens, sc.Temperature),
		WithRateLimit(sc.RateLimit, sc.Burst),
		WithMaxTextLength(cfg.Limits.MaxTextLength),
	}

	if cfg.ServiceConfigured() {
		p, err := provider.New(ctx, provider.Config{
			Name:    sc.Provider,
			APIKey:  sc.APIKey.Value(),
			Model:   sc.Model,
			BaseURL: sc.BaseURL,
			Timeout: sc.Timeout.Duration(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create provider: %w", err)
		}
		opts = append(opts, WithProvider(p))
		logger.Info(ctx, "text generation provider configured",
			zap.String("provider", p.Name()),
			logging.Secret("api_key", sc.APIKey),
		)
	} else {
		logger.Info(ctx, "no provider credential, using local rules only",
			zap.String("provider", sc.Provider),
			zap.String("key_env", config.ProviderKeyEnv(sc.Provider)),
		)
	}

	if cfg.Cache.Enabled {
		opts = append(opts, WithCache(cfg.Cache.Size, cfg.Cache.TTL.Duration()))
	}

	if cfg.Guard.Enabled {
		g, err := secrets.NewGuard(cfg.Guard.Allowlist...)
		if err != nil {
			return nil, fmt.Errorf("failed to create secrets guard: %w", err)
		}
		opts = append(opts, WithGuard(g))
	}

	var pub *events.NATSPublisher
	if cfg.Events.Enabled {
		var err error
		pub, err = events.Connect(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			return nil, fmt.Errorf("failed to create event publisher: %w", err)
		}
		opts = append(opts, WithPublisher(pub))
		logger.Info(ctx, "publishing completion events", zap.String("subject", pub.Subject()))
	}

	svc, err := NewService(append(opts, extra...)...)
	if err != nil {
		if pub != nil {
			_ = pub.Close()
		}
		return nil, err
	}
	return svc, nil
}
