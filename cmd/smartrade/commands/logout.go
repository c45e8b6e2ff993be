package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "clear the stored session",
		Action: logoutAction,
	}
}

func logoutAction(ctx context.Context, cmd *cli.Command) error {
	cfg, flush, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer flush()

	application, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = application.Close() }()

	// Logout clears storage even without a live session
	if err := application.Session().Logout(ctx); err != nil {
		return fmt.Errorf("logout incomplete: %w", err)
	}

	fmt.Fprintln(cmd.Root().Writer, "Logged out")
	return nil
}
