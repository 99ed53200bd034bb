package main

import (
	"fmt"
	"strings"

	"heirvault/db"
	"heirvault/keys"

	"github.com/spf13/cobra"
)

// inspect 直接读本地 badger 目录，服务需先停掉
var inspectCmd = &cobra.Command{
	Use:   "inspect [prefix]",
	Short: "Dump raw keys of the local database (stop the server first)",
	Long: `inspect opens database.path directly and prints keys under the given
prefix without the version tag, e.g. "vault_", "vaultevent_<vault>_", "ledger_".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		withValues, _ := cmd.Flags().GetBool("values")

		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		if keys.KeyVersion != "" && !strings.HasPrefix(prefix, keys.KeyVersion+"_") {
			prefix = keys.KeyVersion + "_" + prefix
		}

		dbm, err := db.NewManager(cfg.Database.Path, nil)
		if err != nil {
			return fmt.Errorf("open %s: %w", cfg.Database.Path, err)
		}
		defer dbm.Close()

		fmt.Printf("Scanning prefix: %s\n", prefix)
		kvs, err := dbm.ScanOrdered(prefix, limit, false)
		if err != nil {
			return err
		}
		for _, kv := range kvs {
			tag := "state"
			switch keys.CategorizeKey(kv.Key) {
			case keys.CategoryLog:
				tag = "log"
			case keys.CategoryUnknown:
				tag = "?"
			}
			fmt.Printf("[%-5s] %s\n", tag, keys.StripVersion(kv.Key))
			if withValues {
				fmt.Printf("        %s\n", kv.Value)
			}
		}
		fmt.Printf("Total found in prefix: %d", len(kvs))
		if limit > 0 && len(kvs) == limit {
			fmt.Printf(" (stopped at %d)", limit)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	inspectCmd.Flags().Int("limit", 100, "max keys to print (0 = all)")
	inspectCmd.Flags().Bool("values", false, "print stored values as well")
	rootCmd.AddCommand(inspectCmd)
}
