// Command api-server runs the storefront HTTP API.
package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/partstore/storefront/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadConfig()
		if err != nil {
			return err
		}
		lg.Info("Configuration loaded",
			zap.String("client_url", cfg.ClientURL),
			zap.String("currency", cfg.Stripe.Currency),
			zap.String("minio_bucket", cfg.MinIO.Bucket),
			zap.Int("rate_limit", cfg.RateLimit.Max),
			zap.Duration("rate_window", cfg.RateLimit.Window),
		)
		return appkg.Run(ctx, lg, m, cfg)
	})
}
