package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ligun0805/wallet-rotator/internal/chain"
	"github.com/ligun0805/wallet-rotator/internal/config"
	"github.com/ligun0805/wallet-rotator/internal/custody"
	"github.com/ligun0805/wallet-rotator/internal/wallet"
)

// app carries what every subcommand needs after flags are parsed.
type app struct {
	cfgPath  string
	dev      bool
	logLevel string

	runID    string
	settings config.Settings
	log      zerolog.Logger
	logFile  io.Closer

	client *ethclient.Client
}

func (a *app) setup(cmd *cobra.Command) error {
	config.LoadEnvFiles()
	path := a.cfgPath
	if !cmd.Flags().Changed("config") && !fileExists(path) {
		path = ""
	}
	st, err := config.Load(path)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("dev") {
		st.Dev = a.dev
	}
	a.settings = st

	a.runID = uuid.NewString()
	log, f, err := newLogger(a.logLevel, a.runID)
	if err != nil {
		return err
	}
	a.log, a.logFile = log, f
	a.log.Debug().Object("config", st).Str("command", cmd.Name()).Msg("settings loaded")
	return nil
}

func (a *app) close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// gateway dials the configured RPC endpoint once per run.
func (a *app) gateway(ctx context.Context) (chain.Gateway, error) {
	if a.client == nil {
		url := a.settings.RPCURL()
		c, err := chain.Dial(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", url, err)
		}
		a.client = c
	}
	t := a.settings.Tuning
	return chain.NewEthGateway(a.client, chain.Options{
		ReceiptTimeout: t.ReceiptTimeout,
		PollInterval:   t.PollInterval,
		RPCRate:        t.RPCRate,
		Logger:         a.log,
	}), nil
}

func (a *app) transfers(gw chain.Gateway) *custody.Transfers {
	t := a.settings.Tuning
	return custody.NewTransfers(gw, custody.TransferConfig{
		Token:          addrOrZero(a.settings.Contract.USDT),
		Reserve:        t.Reserve.Wei(chain.EtherDecimals),
		GasPrice:       a.settings.GasPrice(),
		NativeGasLimit: t.NativeGasLimit,
		TokenGasLimit:  t.TokenGasLimit,
		Parallelism:    t.Parallelism,
		Logger:         a.log,
	})
}

func (a *app) swaps(gw chain.Gateway) (*custody.Swaps, error) {
	router, err := requireAddr("contract.router", a.settings.Contract.Router)
	if err != nil {
		return nil, err
	}
	t := a.settings.Tuning
	return custody.NewSwaps(gw, custody.SwapConfig{
		Router:       router,
		SlippageBps:  t.SlippageBps,
		Deadline:     a.settings.Deadline(),
		GasPrice:     a.settings.GasPrice(),
		SwapGasLimit: t.SwapGasLimit,
		Logger:       a.log,
	}), nil
}

// funder returns the funding account, prompting for its key when unset.
func (a *app) funder() (wallet.Record, error) {
	pk := strings.TrimSpace(a.settings.Account.PK)
	if pk == "" {
		var err error
		if pk, err = readPassword("funding account private key: "); err != nil {
			return wallet.Record{}, err
		}
	}
	prv, err := (wallet.Record{PrivateKey: pk}).Key()
	if err != nil {
		return wallet.Record{}, fmt.Errorf("account.pk: %w", err)
	}
	addr := gethcrypto.PubkeyToAddress(prv.PublicKey)
	if s := a.settings.Account.Sender; s != "" && common.HexToAddress(s) != addr {
		return wallet.Record{}, fmt.Errorf("account.sender %s does not match account.pk (%s)", s, addr.Hex())
	}
	return wallet.Record{Address: addr.Hex(), PrivateKey: pk}, nil
}

func (a *app) cyclePaths() custody.CyclePaths {
	w := a.settings.Wallets
	return custody.CyclePaths{New: w.New, Old: w.Old, Backup: w.Backup}
}

var errFailures = errors.New("some wallets failed")

func failuresErr(s custody.Summary) error {
	if s.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d failed", errFailures, s.Failed)
}

func requireAddr(name, v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%s is not set", name)
	}
	return common.HexToAddress(v), nil
}

func addrOrZero(v string) common.Address {
	if !common.IsHexAddress(v) {
		return common.Address{}
	}
	return common.HexToAddress(v)
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
