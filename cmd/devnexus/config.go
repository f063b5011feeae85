package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phyoewaiaung/devnexus-go/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage DevNexus configuration",
	Long:  "View or modify the configuration stored in ~/.devnexus/config.toml.",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(cfg.Path())
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("No configuration file found; defaults are in effect.")
				fmt.Printf("server_url = %q\napi_base_url = %q\nlog_level = %q\nhistory_page_size = %d\n",
					cfg.ServerURL, cfg.APIBaseURL, cfg.LogLevel, cfg.HistoryPageSize)
				return nil
			}
			return fmt.Errorf("cannot read config file: %w", err)
		}
		fmt.Print(string(data))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value.\nExample: devnexus config set server_url https://chat.example.com",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Set %s = %s\n", args[0], args[1])
		return nil
	},
}
