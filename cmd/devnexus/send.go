package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var sendTimeout time.Duration

func init() {
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 15*time.Second, "how long to wait for the send to resolve")
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <conversation-id> <text>...",
	Short: "Send one message and wait for it to resolve",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, token, userID, err := loadSession()
		if err != nil {
			return err
		}

		engine, err := newEngine(cfg, token, userID, nil)
		if err != nil {
			return err
		}
		defer engine.Close()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		text := strings.Join(args[1:], " ")
		msg, err := engine.SendAndWait(ctx, args[0], text, nil)
		if err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		fmt.Printf("sent %s\n", msg.ID)
		return nil
	},
}
