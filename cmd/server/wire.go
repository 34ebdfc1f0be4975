package main

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/catalog"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/checkout"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/health"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/provider"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/retry"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/store"
)

func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	s, err := config.Load(path)
	if err != nil {
		return config.Settings{}, fmt.Errorf("load config: %w", err)
	}
	return s, nil
}

func catalogSource(s config.Settings) catalog.Source {
	if s.CatalogFile != "" {
		return catalog.FileSource{Path: s.CatalogFile}
	}
	return catalog.Defaults()
}

// buildRegistry binds the simulated adapters, each behind a circuit breaker when enabled.
func buildRegistry(s config.Settings) *provider.Registry {
	defaults := provider.DefaultRegistry()
	if !s.Breaker.Enabled {
		return defaults
	}

	r := provider.NewRegistry()
	for _, b := range defaults.Bindings() {
		r.Register(b.Method, provider.WithBreaker(b.Adapter, provider.BreakerConfig{
			ConsecutiveFailures: s.Breaker.ConsecutiveFailures,
			OpenTimeout:         s.Breaker.OpenTimeout,
		}))
	}
	return r
}

// buildService wires the checkout service. The returned cleanup closes the
// Redis client when one was opened.
func buildService(s config.Settings) (*checkout.Service, func()) {
	cleanup := func() {}

	var results checkout.ResultStore = store.NewMemory()
	if s.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		})
		results = store.NewRedis(client, s.Redis.TTL)
		cleanup = func() {
			if err := client.Close(); err != nil {
				slog.Warn("redis_close_failed", "error", err)
			}
		}
		slog.Info("result_store_selected", "backend", "redis", "addr", s.Redis.Addr)
	}

	svc := checkout.NewService(checkout.Options{
		Catalog:  catalog.NewLoader(catalogSource(s)),
		Registry: buildRegistry(s),
		Monitor:  health.NewMonitorWithConfig(s.Health.WindowSize, s.Health.WindowDuration),
		Store:    results,
		Policy: retry.Policy{
			MaxAttempts: s.Retry.MaxAttempts,
			BaseDelay:   s.Retry.BaseDelay,
			MaxDelay:    s.Retry.MaxDelay,
		},
		SubmitTimeout: s.SubmitTimeout,
	})
	return svc, cleanup
}
