package main

import (
	"github.com/spf13/cobra"

	"github.com/phyoewaiaung/devnexus-go/internal/cli"
	"github.com/phyoewaiaung/devnexus-go/internal/config"
	"github.com/phyoewaiaung/devnexus-go/pkg/logger"
)

func init() {
	rootCmd.AddCommand(authCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Link this device to your DevNexus account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if lvl, err := logger.ParseLevel(cfg.LogLevel); err == nil {
			logger.SetLevel(lvl)
		}
		return cli.AuthCommand(cfg)
	},
}
