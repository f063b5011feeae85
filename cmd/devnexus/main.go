package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phyoewaiaung/devnexus-go/internal/cli"
	"github.com/phyoewaiaung/devnexus-go/internal/config"
	"github.com/phyoewaiaung/devnexus-go/internal/storage"
	"github.com/phyoewaiaung/devnexus-go/internal/sync"
	"github.com/phyoewaiaung/devnexus-go/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "devnexus",
	Short: "DevNexus chat client",
	Long:  "Command-line client for DevNexus realtime chat.\nLink a device, tail conversations, and send messages.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadSession loads config, applies the log level, and returns a valid
// access token plus the local user id.
func loadSession() (*config.Config, string, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", "", err
	}
	if lvl, err := logger.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	token, err := cli.EnsureAccessToken(cfg)
	if err != nil {
		return nil, "", "", err
	}

	userID := ""
	if creds, ok, err := storage.LoadCredentials(cfg.Home); err == nil && ok {
		userID = creds.UserID
	}
	if userID == "" {
		userID, _ = cli.TokenUserID(token)
	}
	if userID == "" {
		return nil, "", "", fmt.Errorf("cannot determine user id; run `devnexus auth` again")
	}
	return cfg, token, userID, nil
}

// newEngine builds a connected engine for the current session.
func newEngine(cfg *config.Config, token, userID string, listener sync.Listener) (*sync.Engine, error) {
	engine, err := sync.New(sync.Options{
		ServerURL:  cfg.ServerURL,
		APIBaseURL: cfg.APIBaseURL,
		Token:      token,
		UserID:     userID,
		Listener:   listener,
	})
	if err != nil {
		return nil, err
	}
	if err := engine.Start(); err != nil {
		engine.Close()
		return nil, err
	}
	return engine, nil
}
