package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"heirvault/utils"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the vault service over HTTP/3",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.Server.ListenAddr = listen
		}
		if inMemory, _ := cmd.Flags().GetBool("in-memory"); inMemory {
			cfg.Database.InMemory = true
		}

		node, err := NewNode(cfg)
		if err != nil {
			return err
		}
		defer node.Stop()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("vaultd listening on %s (Ctrl+C to stop)\n", cfg.Server.ListenAddr)
		return node.Serve(ctx)
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new secp256k1 signing key",
	RunE: func(cmd *cobra.Command, args []string) error {
		priv, err := utils.GeneratePrivateKey()
		if err != nil {
			return err
		}
		km := utils.NewKeyManagerFromKey(priv)
		wif, err := utils.EncodeWIF(priv)
		if err != nil {
			return err
		}
		bech32, err := utils.DeriveBtcBech32Address(priv)
		if err != nil {
			return err
		}
		out := os.Stdout
		fmt.Fprintf(out, "address:     %s\n", km.GetAddress().Hex())
		fmt.Fprintf(out, "private key: %s\n", km.GetPrivateKeyHex())
		fmt.Fprintf(out, "wif:         %s\n", wif)
		fmt.Fprintf(out, "bech32:      %s\n", bech32)
		return nil
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "override server.listenAddr")
	serveCmd.Flags().Bool("in-memory", false, "keep all state in memory")
}
