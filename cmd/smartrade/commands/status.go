package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

const timeLayout = "2006-01-02 15:04:05 MST"

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "show the stored session",
		Action: statusAction,
	}
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
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

	out := cmd.Root().Writer
	st := application.Session().State()
	fmt.Fprintf(out, "Storage:  %s\n", application.StorageMedium())
	if !st.IsAuthenticated() {
		fmt.Fprintln(out, "Status:   not logged in")
		return nil
	}

	fmt.Fprintln(out, "Status:   logged in")
	fmt.Fprintf(out, "User:     %s\n", st.Tokens.UserID)
	fmt.Fprintf(out, "Session:  expires %s\n", st.ExpiresAt.Local().Format(timeLayout))
	if exp, ok := st.Tokens.JWTExpiry(); ok {
		fmt.Fprintf(out, "Token:    expires %s\n", exp.Local().Format(timeLayout))
	}
	return nil
}
