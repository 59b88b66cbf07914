package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ligun0805/wallet-rotator/internal/chain"
	"github.com/ligun0805/wallet-rotator/internal/custody"
	"github.com/ligun0805/wallet-rotator/internal/wallet"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "rotatecli",
		Short:         "Rotate, drain, fund and trade a fleet of hot wallets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "config/config.toml", "TOML config file")
	root.PersistentFlags().BoolVar(&a.dev, "dev", false, "use the testnet RPC endpoint")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "trace|debug|info|warn|error")

	root.AddCommand(
		newGenerateCmd(a),
		newRotateCmd(a),
		newDrainCmd(a),
		newFundCmd(a),
		newTradeCmd(a),
		newPriceCmd(a),
		newRunCmd(a),
	)
	return root
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		count int
		out   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate fresh wallets into a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("count") {
				count = a.settings.Wallets.Count
			}
			recs, err := wallet.Generate(count)
			if err != nil {
				return err
			}
			if err := wallet.Persist(out, recs); err != nil {
				return err
			}
			for i, r := range recs {
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s\n", i, r.Address)
			}
			a.log.Info().Int("count", count).Str("file", out).Msg("wallets generated")
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of wallets (default wallets.count)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "CSV file to write")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newRotateCmd(a *app) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Archive old, promote new, write a fresh generation (no transfers)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("count") {
				count = a.settings.Wallets.Count
			}
			fresh, err := wallet.Generate(count)
			if err != nil {
				return err
			}
			p := a.cyclePaths()
			res, err := wallet.Rotate(p.New, p.Old, p.Backup, fresh)
			if err != nil {
				return err
			}
			a.log.Info().Int("count", count).Str("archived", res.ArchivedTo).Bool("promoted", res.Promoted).Msg("rotation complete")
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of fresh wallets (default wallets.count)")
	return cmd
}

func newDrainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Move native and token balances from the old generation to the new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := a.cyclePaths()
			old, err := wallet.Load(p.Old)
			if err != nil {
				return err
			}
			cur, err := wallet.Load(p.New)
			if err != nil {
				return err
			}
			gw, err := a.gateway(cmd.Context())
			if err != nil {
				return err
			}
			out, err := a.transfers(gw).DrainAll(cmd.Context(), old, cur)
			printTransfers(cmd.OutOrStdout(), out)
			if err != nil {
				return err
			}
			return failuresErr(custody.SummarizeTransfers(out))
		},
	}
}

func newFundCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fund",
		Short: "Send amount.eth and amount.erc20 from the funding account to every new wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wallets, err := wallet.Load(a.settings.Wallets.New)
			if err != nil {
				return err
			}
			funder, err := a.funder()
			if err != nil {
				return err
			}
			gw, err := a.gateway(cmd.Context())
			if err != nil {
				return err
			}
			amt := a.settings.Amount
			out, err := a.transfers(gw).FundAll(cmd.Context(), funder, wallets,
				amt.ETH.Wei(chain.EtherDecimals), amt.ERC20.Wei(chain.EtherDecimals))
			printTransfers(cmd.OutOrStdout(), out)
			if err != nil {
				return err
			}
			return failuresErr(custody.SummarizeTransfers(out))
		},
	}
}

func newTradeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trade",
		Short: "Buy contract.erc20 with trade.amount of contract.usdt per wallet, then sell it back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tokenA, err := requireAddr("contract.usdt", a.settings.Contract.USDT)
			if err != nil {
				return err
			}
			tokenB, err := requireAddr("contract.erc20", a.settings.Contract.ERC20)
			if err != nil {
				return err
			}
			wallets, err := wallet.Load(a.settings.Wallets.New)
			if err != nil {
				return err
			}
			gw, err := a.gateway(cmd.Context())
			if err != nil {
				return err
			}
			swaps, err := a.swaps(gw)
			if err != nil {
				return err
			}
			out, err := swaps.Rebalance(cmd.Context(), wallets, tokenA, tokenB, a.settings.Trade.Amount.Wei(chain.EtherDecimals))
			printSwaps(cmd.OutOrStdout(), out)
			if err != nil {
				return err
			}
			return failuresErr(custody.SummarizeSwaps(out))
		},
	}
}

func newPriceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "price",
		Short: "Print the contract.erc20 price from the contract.pair reserves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pair, err := requireAddr("contract.pair", a.settings.Contract.Pair)
			if err != nil {
				return err
			}
			token, err := requireAddr("contract.erc20", a.settings.Contract.ERC20)
			if err != nil {
				return err
			}
			gw, err := a.gateway(cmd.Context())
			if err != nil {
				return err
			}
			q, err := custody.PairPrice(cmd.Context(), gw, pair, token)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "pair          : %s\n", q.Pair.Hex())
			fmt.Fprintf(w, "token         : %s\n", q.Token.Hex())
			fmt.Fprintf(w, "reserve token : %s\n", q.ReserveToken)
			fmt.Fprintf(w, "reserve other : %s\n", q.ReserveOther)
			fmt.Fprintf(w, "price         : %s\n", q.Price.String())
			if q.KLast != nil {
				fmt.Fprintf(w, "kLast         : %s\n", q.KLast)
			}
			return nil
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	var (
		count int
		force bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drain old into new, then rotate in a fresh generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("count") {
				count = a.settings.Wallets.Count
			}
			var transfers *custody.Transfers
			p := a.cyclePaths()
			if wallet.Exists(p.Old) && wallet.Exists(p.New) {
				gw, err := a.gateway(cmd.Context())
				if err != nil {
					return err
				}
				transfers = a.transfers(gw)
			}
			rep, err := custody.NewCycle(transfers, p, a.log).Run(cmd.Context(), count, force)
			if len(rep.Drained) > 0 {
				printTransfers(cmd.OutOrStdout(), rep.Drained)
			}
			if err != nil {
				return err
			}
			if force {
				return failuresErr(custody.SummarizeTransfers(rep.Drained))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of fresh wallets (default wallets.count)")
	cmd.Flags().BoolVar(&force, "force", false, "rotate even when some drain legs failed")
	return cmd
}
