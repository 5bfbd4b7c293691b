package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bbdist/internal/token"
)

func tokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint and inspect bearer tokens",
	}
	cmd.AddCommand(tokenIssueCmd(a), tokenVerifyCmd(a), tokenDecodeCmd(a))
	return cmd
}

func tokenIssueCmd(a *app) *cobra.Command {
	var (
		subject string
		roles   []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Mint an HS256 token {sub, roles, iat, exp}",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				subject = a.profile.Subject
			}
			if !cmd.Flags().Changed("role") {
				roles = a.profile.Roles
			}
			if ttl <= 0 {
				ttl = a.profile.TokenTTL.Duration
			}

			iss, err := token.NewIssuer(a.profile.Secret, ttl)
			if err != nil {
				return err
			}
			tok, err := iss.Issue(subject, roles)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "token subject (default from profile)")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role claim, repeatable")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "lifetime (default from profile)")
	return cmd
}

func tokenVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Check signature and expiry against the profile secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iss, err := token.NewIssuer(a.profile.Secret, time.Hour)
			if err != nil {
				return err
			}
			claims, err := iss.Parse(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "valid: sub=%s roles=%v expires=%s\n",
				claims.Subject, claims.Roles, claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
			return nil
		},
	}
}

func tokenDecodeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <token>",
		Short: "Print header and claims without verifying the signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			header, claims, err := token.Inspect(args[0])
			if err != nil {
				return err
			}
			return a.printJSON(map[string]any{"header": header, "claims": claims})
		},
	}
}
