package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/treadpick/infrastructure/relay"
)

func relayCmd(load configLoader) *cobra.Command {
	var text, webhook string
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Send one text message to the chat-ops webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("text") {
				return errors.New("--text is required")
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			if webhook != "" {
				cfg.Relay.WebhookURL = webhook
			}

			client := relay.NewClient(relay.Config{WebhookURL: cfg.Relay.WebhookURL, Timeout: cfg.Relay.Timeout})
			if err := client.Send(cmd.Context(), text); err != nil {
				return fmt.Errorf("relay: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "message text")
	cmd.Flags().StringVar(&webhook, "webhook", "", "override the configured webhook URL")
	return cmd
}
