package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ft-ledger/internal/domain"
	"ft-ledger/internal/events"
	"ft-ledger/internal/rpc"
)

const defaultEndpoint = "http://localhost:8080"

type cli struct {
	out      io.Writer
	endpoint string
	timeout  time.Duration
	caller   string
}

func (c *cli) client() *rpc.Client {
	return rpc.NewClient(c.endpoint, rpc.WithTimeout(c.timeout))
}

func (c *cli) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// decimals fetches the token decimals for human-readable amounts.
func (c *cli) decimals(ctx context.Context) (uint8, string, error) {
	meta, err := c.client().Metadata(ctx)
	if err != nil {
		return 0, "", err
	}
	return meta.Decimals, meta.Symbol, nil
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	endpoint := os.Getenv("FT_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	root := &cobra.Command{
		Use:           "ftcli",
		Short:         "Fungible token ledger client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.endpoint, "endpoint", endpoint, "ledger server base URL")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 30*time.Second, "request timeout")
	root.PersistentFlags().StringVar(&c.caller, "caller", os.Getenv("FT_CALLER"), "account invoking mutating operations")

	root.AddCommand(
		c.initCmd(),
		c.supplyCmd(),
		c.balanceCmd(),
		c.metadataCmd(),
		c.boundsCmd(),
		c.depositCmd(),
		c.transferCmd(),
		c.historyCmd(),
		c.watchCmd(),
		c.methodsCmd(),
	)
	return root
}

func (c *cli) requireCaller() (domain.AccountID, error) {
	if c.caller == "" {
		return "", fmt.Errorf("--caller is required")
	}
	return domain.AccountID(c.caller), nil
}

func (c *cli) initCmd() *cobra.Command {
	var owner, supply string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Mint the total supply to an owner (once)",
		RunE: func(*cobra.Command, []string) error {
			caller, err := c.requireCaller()
			if err != nil {
				return err
			}
			amount, err := domain.ParseAmount(supply)
			if err != nil {
				return err
			}
			if owner == "" {
				owner = string(caller)
			}

			ctx, cancel := c.ctx()
			defer cancel()
			if err := c.client().Initialize(ctx, caller, domain.AccountID(owner), amount); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "initialized: %s holds %s\n", owner, amount)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner account (defaults to --caller)")
	cmd.Flags().StringVar(&supply, "supply", "", "total supply in base units")
	_ = cmd.MarkFlagRequired("supply")
	return cmd
}

func (c *cli) supplyCmd() *cobra.Command {
	var human bool
	cmd := &cobra.Command{
		Use:   "supply",
		Short: "Print the total supply",
		RunE: func(*cobra.Command, []string) error {
			ctx, cancel := c.ctx()
			defer cancel()
			supply, err := c.client().TotalSupply(ctx)
			if err != nil {
				return err
			}
			return c.printAmount(ctx, supply, human)
		},
	}
	cmd.Flags().BoolVar(&human, "human", false, "print in token units using metadata decimals")
	return cmd
}

func (c *cli) balanceCmd() *cobra.Command {
	var human bool
	cmd := &cobra.Command{
		Use:   "balance <account>",
		Short: "Print the balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := c.ctx()
			defer cancel()
			bal, err := c.client().BalanceOf(ctx, domain.AccountID(args[0]))
			if err != nil {
				return err
			}
			return c.printAmount(ctx, bal, human)
		},
	}
	cmd.Flags().BoolVar(&human, "human", false, "print in token units using metadata decimals")
	return cmd
}

func (c *cli) printAmount(ctx context.Context, v *big.Int, human bool) error {
	if !human {
		fmt.Fprintln(c.out, v.String())
		return nil
	}
	decimals, symbol, err := c.decimals(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s %s\n", formatUnits(v, decimals), symbol)
	return nil
}

func (c *cli) metadataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metadata",
		Short: "Print the token metadata as JSON",
		RunE: func(*cobra.Command, []string) error {
			ctx, cancel := c.ctx()
			defer cancel()
			meta, err := c.client().Metadata(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.out)
			enc.SetIndent("", "  ")
			return enc.Encode(meta)
		},
	}
}

func (c *cli) boundsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bounds",
		Short: "Print the storage deposit bounds",
		RunE: func(*cobra.Command, []string) error {
			ctx, cancel := c.ctx()
			defer cancel()
			b, err := c.client().StorageBalanceBounds(ctx)
			if err != nil {
				return err
			}
			upper := "none"
			if b.Max != nil {
				upper = *b.Max
			}
			fmt.Fprintf(c.out, "min: %s\nmax: %s\n", b.Min, upper)
			return nil
		},
	}
}

func (c *cli) methodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "List the operations served by the ledger",
		RunE: func(*cobra.Command, []string) error {
			ctx, cancel := c.ctx()
			defer cancel()
			methods, err := c.client().Methods(ctx)
			if err != nil {
				return err
			}
			for _, m := range methods {
				line := fmt.Sprintf("%-24s %s", m.Name, m.Capability)
				if len(m.Aliases) > 0 {
					line += " (" + strings.Join(m.Aliases, ", ") + ")"
				}
				fmt.Fprintln(c.out, line)
			}
			return nil
		},
	}
}

func (c *cli) depositCmd() *cobra.Command {
	var amount string
	var yocto bool
	cmd := &cobra.Command{
		Use:   "deposit [account]",
		Short: "Register an account by attaching a storage deposit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			caller, err := c.requireCaller()
			if err != nil {
				return err
			}
			var account domain.AccountID
			if len(args) == 1 {
				account = domain.AccountID(args[0])
			}

			var deposit *big.Int
			if yocto {
				deposit, err = domain.ParseAmount(amount)
			} else {
				deposit, err = parseUnits(amount, nearDecimals)
			}
			if err != nil {
				return err
			}

			ctx, cancel := c.ctx()
			defer cancel()
			sb, err := c.client().StorageDeposit(ctx, caller, account, deposit)
			if err != nil {
				return err
			}
			if account == "" {
				account = caller
			}
			fmt.Fprintf(c.out, "registered %s: total %s, available %s\n", account, sb.Total, sb.Available)
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "0.0013", "deposit in NEAR")
	cmd.Flags().BoolVar(&yocto, "yocto", false, "interpret --amount in yocto units")
	return cmd
}

func (c *cli) transferCmd() *cobra.Command {
	var memo string
	var human bool
	cmd := &cobra.Command{
		Use:   "transfer <receiver> <amount>",
		Short: "Transfer tokens from --caller to receiver",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := c.requireCaller()
			if err != nil {
				return err
			}

			ctx, cancel := c.ctx()
			defer cancel()

			var amount *big.Int
			if human {
				decimals, _, err := c.decimals(ctx)
				if err != nil {
					return err
				}
				amount, err = parseUnits(args[1], decimals)
				if err != nil {
					return err
				}
			} else {
				amount, err = domain.ParseAmount(args[1])
				if err != nil {
					return err
				}
			}

			var memoPtr *string
			if cmd.Flags().Changed("memo") {
				memoPtr = &memo
			}
			receipt, err := c.client().Transfer(ctx, caller, domain.AccountID(args[0]), amount, memoPtr)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "transferred %s to %s (receipt %s)\n", amount, args[0], receipt)
			return nil
		},
	}
	cmd.Flags().StringVar(&memo, "memo", "", "optional transfer memo")
	cmd.Flags().BoolVar(&human, "human", false, "amount is in token units using metadata decimals")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <account>",
		Short: "List archived events touching an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := c.ctx()
			defer cancel()
			records, err := c.client().History(ctx, domain.AccountID(args[0]))
			if err != nil {
				return err
			}
			for _, r := range records {
				switch r.Kind {
				case domain.EventMint:
					fmt.Fprintf(c.out, "#%d mint %s -> %s\n", r.Nonce, r.Amount, r.OwnerID)
				default:
					fmt.Fprintf(c.out, "#%d transfer %s %s -> %s\n", r.Nonce, r.Amount, r.OwnerID, r.ReceiverID)
				}
			}
			return nil
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream token events until interrupted",
		RunE: func(*cobra.Command, []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			url := "ws" + strings.TrimPrefix(strings.TrimSuffix(c.endpoint, "/"), "http") + "/events"
			if account != "" {
				url += "?account=" + account
			}
			return events.Subscribe(ctx, url, func(e domain.Event) error {
				line, err := events.Encode(e)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.out, line)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "only events touching this account")
	return cmd
}
