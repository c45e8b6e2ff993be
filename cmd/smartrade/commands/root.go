package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/smartrade/internal/app"
	"github.com/florianilch/smartrade/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return rootCommand().Run(ctx, args)
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "smartrade",
		Usage: "SmartAPI trading session manager",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "storage--type",
				Usage: "token storage (auto|file|keyring|redis|memory)",
				Value: string(app.DefaultConfigStorageType),
			},
			&cli.StringFlag{
				Name:  "storage--dir",
				Usage: "directory for file token storage",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			loginCommand(),
			logoutCommand(),
			statusCommand(),
		},
	}
}

// setup loads the configuration and installs logging. The returned func
// flushes log export and must be called before exiting.
func setup(ctx context.Context, cmd *cli.Command) (*app.Config, func(), error) {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	shutdown, err := observability.Instrument(ctx, observability.Options{
		Level:    cfg.LogLevel,
		Format:   string(cfg.LogFormat),
		Exporter: string(cfg.OTel.Exporter),
		Endpoint: cfg.OTel.Endpoint,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up observability layer: %w", err)
	}

	flush := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Shutdown.Timeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "failed to flush logs:", err)
		}
	}

	return cfg, flush, nil
}

// openApp builds the application and restores the stored session.
func openApp(ctx context.Context, cfg *app.Config) (*app.App, error) {
	application, err := app.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create app: %w", err)
	}
	application.Session().Initialize(ctx)
	return application, nil
}
