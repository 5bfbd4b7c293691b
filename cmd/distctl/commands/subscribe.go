package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"bbdist/internal/gqlws"
)

func subscribeCmd(a *app) *cobra.Command {
	var (
		url       string
		query     string
		field     string
		variables string
		protocol  string
		timeout   time.Duration
		once      bool
	)
	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Open a GraphQL subscription and print every event",
		Long: "Connects with a bearer token, sends connection_init, waits for connection_ack,\n" +
			"starts one subscription and pretty-prints each payload until the server\n" +
			"completes it, the timeout passes, or --once has seen an event.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == "" {
				if field == "" {
					return fmt.Errorf("one of --query or --field is required")
				}
				query = fmt.Sprintf("subscription { %s }", field)
			}
			if url == "" {
				url = a.profile.GraphQL
			}
			if protocol == "" {
				protocol = a.profile.Protocol
			}
			if timeout == 0 {
				timeout = a.profile.Timeout.Duration
			}

			req := gqlws.Request{Query: query}
			if variables != "" {
				if err := json.Unmarshal([]byte(variables), &req.Variables); err != nil {
					return fmt.Errorf("--variables: %w", err)
				}
			}

			tok, err := a.bearer()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			sub := gqlws.Subscription{ID: uuid.NewString(), Request: req, Once: once}
			a.log.Info("subscribing", "url", url, "protocol", protocol, "id", sub.ID, "timeout", timeout)

			received := 0
			err = gqlws.Watch(ctx, url, gqlws.Options{Token: tok, Protocol: protocol, Logger: a.log}, sub,
				func(ev gqlws.Event) error {
					received++
					a.log.Info("event received", "n", received, "type", ev.Type)
					return a.printRaw(ev.Payload)
				})

			switch {
			case err == nil:
				a.log.Info("subscription finished", "events", received)
				return nil
			case errors.Is(err, gqlws.ErrTimeout) && received > 0:
				a.log.Info("timeout reached, closing", "events", received)
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "subscription endpoint (default from profile)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "subscription document")
	cmd.Flags().StringVarP(&field, "field", "f", "", "shorthand: subscribe to this root field")
	cmd.Flags().StringVar(&variables, "variables", "", "JSON object of variables")
	cmd.Flags().StringVar(&protocol, "protocol", "", "graphql-ws or graphql-transport-ws")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "close after this long (default from profile)")
	cmd.Flags().BoolVar(&once, "once", false, "exit after the first event")
	return cmd
}

func (a *app) printRaw(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		_, err = fmt.Fprintln(a.out, string(raw))
		return err
	}
	return a.printJSON(v)
}
