package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bbdist/internal/client"
)

func loginCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <login>",
		Short: "Exchange credentials for a bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				if !isTerminal(cmd.InOrStdin()) {
					return fmt.Errorf("password required (--password)")
				}
				fmt.Fprint(cmd.ErrOrStderr(), "password: ")
				b, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				password = string(b)
			}

			res, err := client.NewHTTP(a.profile.Endpoint, "").Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			a.log.Info("logged in", "user", res.User.Login, "roles", res.User.Roles)
			fmt.Fprintln(a.out, res.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when empty)")
	return cmd
}
