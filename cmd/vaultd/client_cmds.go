package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"text/tabwriter"
	"time"

	"heirvault/client"
	"heirvault/config"
	"heirvault/types"
	"heirvault/utils"
	"heirvault/vault"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// newClient 按全局参数构造客户端；needKey 为 true 时要求提供签名私钥
func newClient(needKey bool) (*client.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	var km *utils.KeyManager
	if keyString != "" {
		km, err = utils.NewKeyManager(keyString)
		if err != nil {
			return nil, nil, fmt.Errorf("parse --key: %w", err)
		}
	} else if needKey {
		return nil, nil, errors.New("a signing key is required: pass --key or set HEIRVAULT_KEY")
	}
	return client.New(serverURL, client.NewHTTP3Client(cfg, insecure), km), cfg, nil
}

func commandContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	timeout := cfg.Server.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

func parseAddressArg(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

// parseAmountArg 默认按 ledger.decimals 解析人类可读金额，--raw 时按最小单位解析
func parseAmountArg(cmd *cobra.Command, cfg *config.Config, s string) (*big.Int, error) {
	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		return vault.ParseAmount(s)
	}
	return utils.ParseUnits(s, cfg.Ledger.Decimals)
}

// writeFailed 写请求结果不确定时提示先查询再重试
func writeFailed(err error, id common.Address) error {
	if !errors.Is(err, client.ErrOutcomeUnknown) {
		return err
	}
	if id == (common.Address{}) {
		return fmt.Errorf("%w\nthe request may have been applied; run `vaultd vaults` before retrying", err)
	}
	return fmt.Errorf("%w\nthe request may have been applied; run `vaultd status %s` before retrying", err, id.Hex())
}

var createCmd = &cobra.Command{
	Use:   "create <heir>",
	Short: "Create a vault owned by the signing key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		heir, err := parseAddressArg("heir", args[0])
		if err != nil {
			return err
		}
		c, cfg, err := newClient(true)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cfg)
		defer cancel()

		id, err := c.Create(ctx, heir)
		if err != nil {
			return writeFailed(err, common.Address{})
		}
		fmt.Printf("vault %s created (owner %s, heir %s)\n", id.Hex(), c.Address().Hex(), heir.Hex())
		return nil
	},
}

var depositCmd = &cobra.Command{
	Use:   "deposit <vault> <amount>",
	Short: "Deposit funds into a vault (anyone may deposit)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseAddressArg("vault", args[0])
		if err != nil {
			return err
		}
		c, cfg, err := newClient(true)
		if err != nil {
			return err
		}
		amount, err := parseAmountArg(cmd, cfg, args[1])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cfg)
		defer cancel()

		if err := c.Deposit(ctx, id, amount); err != nil {
			return writeFailed(err, id)
		}
		fmt.Printf("deposited %s into %s\n", utils.FormatUnits(amount, cfg.Ledger.Decimals), id.Hex())
		return nil
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <vault> [amount]",
	Short: "Withdraw funds as owner; without amount (or 0) only refreshes the heartbeat",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseAddressArg("vault", args[0])
		if err != nil {
			return err
		}
		c, cfg, err := newClient(true)
		if err != nil {
			return err
		}
		amount := big.NewInt(0)
		if len(args) == 2 {
			if amount, err = parseAmountArg(cmd, cfg, args[1]); err != nil {
				return err
			}
		}
		ctx, cancel := commandContext(cfg)
		defer cancel()

		if err := c.Withdraw(ctx, id, amount); err != nil {
			return writeFailed(err, id)
		}
		if amount.Sign() == 0 {
			fmt.Printf("heartbeat recorded for %s\n", id.Hex())
		} else {
			fmt.Printf("withdrew %s from %s\n", utils.FormatUnits(amount, cfg.Ledger.Decimals), id.Hex())
		}
		return nil
	},
}

var heirCmd = &cobra.Command{
	Use:   "heir <vault> <new-heir>",
	Short: "Replace the heir (owner only, does not refresh the heartbeat)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseAddressArg("vault", args[0])
		if err != nil {
			return err
		}
		heir, err := parseAddressArg("new-heir", args[1])
		if err != nil {
			return err
		}
		c, cfg, err := newClient(true)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cfg)
		defer cancel()

		if err := c.UpdateHeir(ctx, id, heir); err != nil {
			return writeFailed(err, id)
		}
		fmt.Printf("heir of %s is now %s\n", id.Hex(), heir.Hex())
		return nil
	},
}

var claimCmd = &cobra.Command{
	Use:   "claim <vault> <new-heir>",
	Short: "Claim ownership as heir after the inactivity period and name a new heir",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseAddressArg("vault", args[0])
		if err != nil {
			return err
		}
		heir, err := parseAddressArg("new-heir", args[1])
		if err != nil {
			return err
		}
		c, cfg, err := newClient(true)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cfg)
		defer cancel()

		if err := c.Claim(ctx, id, heir); err != nil {
			return writeFailed(err, id)
		}
		fmt.Printf("%s now owns %s, heir %s\n", c.Address().Hex(), id.Hex(), heir.Hex())
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <vault>",
	Short: "Show owner, heir, balance and claimability of a vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseAddressArg("vault", args[0])
		if err != nil {
			return err
		}
		c, cfg, err := newClient(false)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cfg)
		defer cancel()

		st, err := c.Status(ctx, id)
		if err != nil {
			return err
		}
		printStatuses([]types.VaultStatus{*st})
		return nil
	},
}

var vaultsCmd = &cobra.Command{
	Use:   "vaults",
	Short: "List all vaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cfg, err := newClient(false)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cfg)
		defer cancel()

		list, err := c.Vaults(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No vaults found.")
			return nil
		}
		printStatuses(list)
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events <vault>",
	Short: "Show the most recent events of a vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseAddressArg("vault", args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		c, cfg, err := newClient(false)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cfg)
		defer cancel()

		events, err := c.Events(ctx, id, limit)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	},
}

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Show service status and counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cfg, err := newClient(false)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cfg)
		defer cancel()

		st, err := c.NodeStatus(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

func printStatuses(list []types.VaultStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VAULT\tOWNER\tHEIR\tBALANCE\tLAST ACTIVITY\tCLAIMABLE IN")
	for _, st := range list {
		claimable := "now"
		if !st.CanHeirClaim {
			claimable = (time.Duration(st.TimeUntilClaimable) * time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			st.Vault, st.Owner, st.Heir, st.BalanceFormatted,
			time.Unix(st.LastActivity, 0).UTC().Format(time.RFC3339), claimable)
	}
	w.Flush()
}

func init() {
	for _, c := range []*cobra.Command{depositCmd, withdrawCmd} {
		c.Flags().Bool("raw", false, "amount is in base units instead of ledger.decimals")
	}
	eventsCmd.Flags().Int("limit", 0, "number of most recent events (server default when 0)")
	rootCmd.AddCommand(nodeCmd)
}
