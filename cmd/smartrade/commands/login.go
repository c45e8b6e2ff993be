package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/smartrade/internal/broker"
	"github.com/florianilch/smartrade/internal/loginflow"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "log in with client code, password and TOTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "client-code",
				Usage: "broker client code (prompted if empty)",
			},
			&cli.StringFlag{
				Name:  "totp",
				Usage: "6-digit TOTP (prompted if empty)",
			},
			&cli.StringFlag{
				Name:  "broker--base-url",
				Usage: "broker API base URL",
			},
		},
		Action: loginAction,
	}
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
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
	if st := application.Session().State(); st.IsAuthenticated() {
		fmt.Fprintf(out, "Already logged in as %s (session expires %s)\n", st.Tokens.UserID, st.ExpiresAt.Local().Format("2006-01-02 15:04"))
		return nil
	}

	p := newPrompter(cmd.Root().Reader, out)
	creds := broker.Credentials{ClientCode: cmd.String("client-code"), TOTP: cmd.String("totp")}
	if creds.ClientCode == "" {
		if creds.ClientCode, err = p.line("Client code: "); err != nil {
			return err
		}
	}
	if creds.Password, err = p.secret("Password: "); err != nil {
		return err
	}
	if creds.TOTP == "" {
		if creds.TOTP, err = p.secret("TOTP: "); err != nil {
			return err
		}
	}

	if err := application.LoginFlow().Submit(ctx, creds); err != nil {
		slog.DebugContext(ctx, "login failed", "error", err)
		return errors.New(loginflow.UserMessage(err))
	}

	st := application.Session().State()
	fmt.Fprintf(out, "Logged in as %s (session expires %s)\n", st.Tokens.UserID, st.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

// prompter reads form values from the terminal, hiding secrets when the
// input is a TTY.
type prompter struct {
	in  io.Reader
	out io.Writer
	buf *bufio.Reader
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	if in == nil {
		in = os.Stdin
	}
	return &prompter{in: in, out: out, buf: bufio.NewReader(in)}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	s, err := p.buf.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(s), nil
}

func (p *prompter) secret(label string) (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.out, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return p.line(label)
}
