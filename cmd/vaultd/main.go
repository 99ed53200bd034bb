package main

import (
	"fmt"
	"os"

	"heirvault/config"
	"heirvault/logs"

	"github.com/spf13/cobra"
)

var (
	configPath string
	serverURL  string
	keyString  string
	insecure   bool
)

var rootCmd = &cobra.Command{
	Use:   "vaultd",
	Short: "Custodial vault with owner/heir succession after 30 days of inactivity",
	Long: `vaultd runs the vault service over HTTP/3 and provides client commands
to create vaults, deposit, withdraw (or heartbeat), rotate the heir and claim
ownership once the owner has been inactive for 30 days.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "https://localhost:6000", "vault service base URL")
	rootCmd.PersistentFlags().StringVarP(&keyString, "key", "k", os.Getenv("HEIRVAULT_KEY"), "signing key (hex or WIF), defaults to $HEIRVAULT_KEY")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", true, "skip TLS verification (self-signed server certificate)")

	rootCmd.AddCommand(serveCmd, keygenCmd)
	rootCmd.AddCommand(createCmd, depositCmd, withdrawCmd, heirCmd, claimCmd)
	rootCmd.AddCommand(statusCmd, eventsCmd, vaultsCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, err
	}
	logs.SetLevel(cfg.Log.Level)
	return cfg, nil
}

func main() {
	defer logs.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
