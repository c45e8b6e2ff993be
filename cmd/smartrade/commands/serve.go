package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/common-nighthawk/go-figure"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/smartrade/internal/app"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the login and dashboard views on a local HTTP port",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: int(app.DefaultConfigServerPort),
			},
			&cli.StringFlag{
				Name:  "broker--base-url",
				Usage: "broker API base URL",
				Value: app.DefaultConfigBrokerBaseURL,
			},
			&cli.BoolFlag{
				Name:  "no-banner",
				Usage: "do not print the startup banner",
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, flush, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer flush()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	if !cmd.Bool("no-banner") {
		figure.NewFigure("smartrade", "cybermedium", true).Print()
		fmt.Fprintln(cmd.Root().Writer)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
