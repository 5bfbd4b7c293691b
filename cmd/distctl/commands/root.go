package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bbdist/internal/client"
	"bbdist/internal/config"
	"bbdist/internal/logger"
	"bbdist/internal/token"
)

type app struct {
	out io.Writer
	log *slog.Logger

	profilePath string
	profile     config.Profile

	endpoint string
	secret   string
	token    string
}

func Execute() error {
	root := newRootCmd(os.Stdout, logger.NewLogger("distctl"))
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

func newRootCmd(out io.Writer, log *slog.Logger) *cobra.Command {
	a := &app{out: out, log: log}

	root := &cobra.Command{
		Use:           "distctl",
		Short:         "Blood-bank distribution tooling: tokens, subscriptions, orders",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			explicit := cmd.Flags().Changed("config")
			if a.profilePath == "" {
				a.profilePath = config.DefaultProfilePath()
			}
			p, err := config.LoadProfile(a.profilePath, !explicit)
			if err != nil {
				return err
			}
			if a.endpoint != "" {
				p.Endpoint = a.endpoint
			}
			if a.secret != "" {
				p.Secret = a.secret
			}
			if a.token != "" {
				p.Token = a.token
			}
			a.profile = p
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.profilePath, "config", "", "profile file (default ~/.bbdist/profile.toml)")
	root.PersistentFlags().StringVar(&a.endpoint, "endpoint", "", "REST base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVar(&a.secret, "secret", "", "HS256 secret used to mint tokens")
	root.PersistentFlags().StringVar(&a.token, "token", "", "bearer token; minted from the secret when empty")

	root.AddCommand(
		tokenCmd(a),
		subscribeCmd(a),
		loginCmd(a),
		ordersCmd(a),
		shipmentsCmd(a),
		movementsCmd(a),
	)
	return root
}

// bearer returns the configured token or mints one from the profile.
func (a *app) bearer() (string, error) {
	if a.profile.Token != "" {
		return a.profile.Token, nil
	}
	iss, err := token.NewIssuer(a.profile.Secret, a.profile.TokenTTL.Duration)
	if err != nil {
		return "", err
	}
	tok, err := iss.Issue(a.profile.Subject, a.profile.Roles)
	if err != nil {
		return "", err
	}
	a.log.Debug("minted token", "sub", a.profile.Subject, "roles", a.profile.Roles)
	return tok, nil
}

func (a *app) api() (*client.HTTP, error) {
	tok, err := a.bearer()
	if err != nil {
		return nil, err
	}
	return client.NewHTTP(a.profile.Endpoint, tok), nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
