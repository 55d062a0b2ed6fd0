// Package courtroom parses courtroom command flags and composes the
// service entrypoint: storage, session coordination, verdict
// generation, and the HTTP/WebSocket surface.
package courtroom

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/adjourn-app/courtroom/internal/courtroom/app"
	"github.com/adjourn-app/courtroom/internal/courtroom/coordinator"
	"github.com/adjourn-app/courtroom/internal/courtroom/domain/settlement"
	"github.com/adjourn-app/courtroom/internal/courtroom/notify"
	"github.com/adjourn-app/courtroom/internal/courtroom/storage/sqlite"
	"github.com/adjourn-app/courtroom/internal/courtroom/verdict"
	entrypoint "github.com/adjourn-app/courtroom/internal/platform/cmd"
)

// Config holds courtroom command configuration.
type Config struct {
	HTTPAddr          string        `env:"ADJOURN_COURTROOM_HTTP_ADDR"       envDefault:":8080"`
	DBPath            string        `env:"ADJOURN_COURTROOM_DB_PATH"         envDefault:"courtroom.db"`
	SettlementTimeout time.Duration `env:"ADJOURN_SETTLEMENT_TIMEOUT"        envDefault:"5m"`
	OpenAIAPIKey      string        `env:"ADJOURN_OPENAI_API_KEY"`
	OpenAIModel       string        `env:"ADJOURN_OPENAI_MODEL"              envDefault:"gpt-4o-mini"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "courtroom HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "sqlite database path")
	fs.DurationVar(&cfg.SettlementTimeout, "settlement-timeout", cfg.SettlementTimeout, "how long a settlement proposal stays open")
	fs.StringVar(&cfg.OpenAIModel, "openai-model", cfg.OpenAIModel, "model used for verdict generation")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run wires the courtroom service and serves until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCourtroom, func(ctx context.Context) error {
		tokenCfg, err := app.LoadTokenConfigFromEnv(nil)
		if err != nil {
			return fmt.Errorf("load token config: %w", err)
		}

		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close storage: %v", err)
			}
		}()

		var generator verdict.Generator
		if cfg.OpenAIAPIKey != "" {
			generator, err = verdict.NewOpenAIGenerator(verdict.OpenAIConfig{
				APIKey: cfg.OpenAIAPIKey,
				Model:  cfg.OpenAIModel,
			})
			if err != nil {
				return fmt.Errorf("init verdict generator: %w", err)
			}
		} else {
			log.Printf("ADJOURN_OPENAI_API_KEY not set, verdict generation disabled")
		}

		hub := notify.NewHub()
		coord, err := coordinator.New(coordinator.Config{
			Store:      store,
			Negotiator: settlement.NewNegotiator(cfg.SettlementTimeout, nil, nil),
			Publisher:  hub,
			Generator:  generator,
		})
		if err != nil {
			return fmt.Errorf("init coordinator: %w", err)
		}
		if err := coord.Restore(ctx); err != nil {
			return fmt.Errorf("restore sessions: %w", err)
		}

		if err := app.Run(ctx, app.Config{
			HTTPAddr: cfg.HTTPAddr,
			Token:    tokenCfg,
		}, coord, hub); err != nil {
			return fmt.Errorf("serve courtroom: %w", err)
		}
		return nil
	})
}
