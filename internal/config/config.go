package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Settings keeps all configuration options.
// The toml layout follows config/config.toml; env keys override it.
type Settings struct {
	Dev      bool     `toml:"dev"`
	RPC      RPC      `toml:"rpc"`
	Contract Contract `toml:"contract"`
	Account  Account  `toml:"account"`
	Amount   Amounts  `toml:"amount"`
	Wallets  Wallets  `toml:"wallets"`
	Tuning   Tuning   `toml:"tuning"`
	Trade    Trade    `toml:"trade"`
}

type RPC struct {
	BSCTestnet string `toml:"bsc_testnet"`
	BSCMainnet string `toml:"bsc_mainnet"`
}

type Contract struct {
	Router string `toml:"router"`
	Pair   string `toml:"pair"`
	USDT   string `toml:"usdt"`
	ERC20  string `toml:"erc20"`
}

// Account is the funding wallet. Sender may be empty; it is derived from PK.
type Account struct {
	Sender string `toml:"sender"`
	PK     string `toml:"pk"`
}

// Amounts are what FundAll sends to every wallet, in whole units.
type Amounts struct {
	ETH   Amount `toml:"eth"`
	ERC20 Amount `toml:"erc20"`
}

type Wallets struct {
	Count  int    `toml:"count"`
	New    string `toml:"new"`
	Old    string `toml:"old"`
	Backup string `toml:"backup"`
}

type Tuning struct {
	Reserve         Amount        `toml:"reserve"`
	SlippageBps     int64         `toml:"slippage_bps"`
	DeadlineSeconds int64         `toml:"deadline_seconds"`
	NativeGasLimit  uint64        `toml:"native_gas_limit"`
	TokenGasLimit   uint64        `toml:"token_gas_limit"`
	SwapGasLimit    uint64        `toml:"swap_gas_limit"`
	GasPriceGwei    Amount        `toml:"gas_price_gwei"`
	ReceiptTimeout  time.Duration `toml:"receipt_timeout"`
	PollInterval    time.Duration `toml:"poll_interval"`
	RPCRate         int           `toml:"rpc_rate"`
	Parallelism     int           `toml:"parallelism"`
}

// Trade is the per-wallet tokenA amount of a rebalance.
type Trade struct {
	Amount Amount `toml:"amount"`
}

// Defaults returns the settings used when neither file nor env set a key.
func Defaults() Settings {
	return Settings{
		RPC: RPC{
			BSCTestnet: "https://data-seed-prebsc-1-s1.binance.org:8545",
			BSCMainnet: "https://bsc-dataseed.binance.org",
		},
		Wallets: Wallets{
			Count:  10,
			New:    "wallets/wallets_new.csv",
			Old:    "wallets/wallets_old.csv",
			Backup: "wallets/backup",
		},
		Tuning: Tuning{
			Reserve:         MustAmount("0.005"),
			DeadlineSeconds: 10,
			NativeGasLimit:  21_000,
			TokenGasLimit:   100_000,
			SwapGasLimit:    300_000,
			ReceiptTimeout:  2 * time.Minute,
			PollInterval:    2 * time.Second,
			Parallelism:     1,
		},
	}
}

// LoadEnvFiles loads .env and lets .env.local override it. Missing files are fine.
func LoadEnvFiles() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")
}

// Load reads path (skipped when empty) over the defaults, then applies
// environment overrides supporting both UPPER_CASE and lower_case keys.
func Load(path string) (Settings, error) {
	st := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &st); err != nil {
			return st, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := applyEnv(&st); err != nil {
		return st, err
	}
	return st, st.Validate()
}

func applyEnv(st *Settings) error {
	get := func(keys []string, def string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				return v
			}
		}
		return def
	}
	getInt := func(keys []string, def int) int {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return def
	}
	getInt64 := func(keys []string, def int64) int64 {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		return def
	}
	getBool := func(keys []string, def bool) bool {
		s := strings.ToLower(get(keys, ""))
		if s == "" {
			return def
		}
		return s == "1" || s == "true" || s == "yes" || s == "on"
	}
	var errs []error
	getAmount := func(keys []string, def Amount) Amount {
		s := get(keys, "")
		if s == "" {
			return def
		}
		a, err := ParseAmount(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", keys[len(keys)-1], err))
			return def
		}
		return a
	}

	st.Dev = getBool([]string{"dev", "DEV"}, st.Dev)
	st.RPC.BSCTestnet = get([]string{"bsc_testnet", "BSC_TESTNET"}, st.RPC.BSCTestnet)
	st.RPC.BSCMainnet = get([]string{"bsc_mainnet", "BSC_MAINNET"}, st.RPC.BSCMainnet)

	st.Contract.Router = get([]string{"router", "ROUTER"}, st.Contract.Router)
	st.Contract.Pair = get([]string{"pair", "PAIR"}, st.Contract.Pair)
	st.Contract.USDT = get([]string{"usdt", "USDT"}, st.Contract.USDT)
	st.Contract.ERC20 = get([]string{"erc20", "ERC20"}, st.Contract.ERC20)

	st.Account.Sender = get([]string{"sender", "SENDER"}, st.Account.Sender)
	st.Account.PK = get([]string{"pk", "PK", "PRIVATE_KEY"}, st.Account.PK)

	st.Amount.ETH = getAmount([]string{"amount_eth", "AMOUNT_ETH"}, st.Amount.ETH)
	st.Amount.ERC20 = getAmount([]string{"amount_erc20", "AMOUNT_ERC20"}, st.Amount.ERC20)

	st.Wallets.Count = getInt([]string{"wallet_count", "WALLET_COUNT"}, st.Wallets.Count)
	st.Wallets.New = get([]string{"wallets_new", "WALLETS_NEW"}, st.Wallets.New)
	st.Wallets.Old = get([]string{"wallets_old", "WALLETS_OLD"}, st.Wallets.Old)
	st.Wallets.Backup = get([]string{"wallets_backup", "WALLETS_BACKUP"}, st.Wallets.Backup)

	st.Tuning.Reserve = getAmount([]string{"reserve", "RESERVE"}, st.Tuning.Reserve)
	st.Tuning.SlippageBps = getInt64([]string{"slippage_bps", "SLIPPAGE_BPS"}, st.Tuning.SlippageBps)
	st.Tuning.DeadlineSeconds = getInt64([]string{"deadline_seconds", "DEADLINE_SECONDS"}, st.Tuning.DeadlineSeconds)
	st.Tuning.GasPriceGwei = getAmount([]string{"gas_price_gwei", "GAS_PRICE_GWEI"}, st.Tuning.GasPriceGwei)
	st.Tuning.RPCRate = getInt([]string{"rpc_rate", "RPC_RATE"}, st.Tuning.RPCRate)
	st.Tuning.Parallelism = getInt([]string{"parallelism", "PARALLELISM"}, st.Tuning.Parallelism)

	st.Trade.Amount = getAmount([]string{"trade_amount", "TRADE_AMOUNT"}, st.Trade.Amount)
	return errors.Join(errs...)
}

// Validate rejects settings no command could run with.
func (s Settings) Validate() error {
	var errs []error
	for name, v := range map[string]string{
		"contract.router": s.Contract.Router,
		"contract.pair":   s.Contract.Pair,
		"contract.usdt":   s.Contract.USDT,
		"contract.erc20":  s.Contract.ERC20,
		"account.sender":  s.Account.Sender,
	} {
		if v != "" && !common.IsHexAddress(v) {
			errs = append(errs, fmt.Errorf("%s: bad address %q", name, v))
		}
	}
	if s.Wallets.New == "" || s.Wallets.Old == "" || s.Wallets.Backup == "" {
		errs = append(errs, errors.New("wallets: new, old and backup paths are required"))
	}
	if s.Tuning.SlippageBps < 0 || s.Tuning.SlippageBps > 10_000 {
		errs = append(errs, fmt.Errorf("tuning.slippage_bps: %d not in [0,10000]", s.Tuning.SlippageBps))
	}
	if s.Tuning.Reserve.IsNegative() {
		errs = append(errs, errors.New("tuning.reserve: must not be negative"))
	}
	if s.Tuning.Parallelism < 1 {
		errs = append(errs, errors.New("tuning.parallelism: must be >= 1"))
	}
	return errors.Join(errs...)
}

// RPCURL picks the testnet endpoint in dev mode.
func (s Settings) RPCURL() string {
	if s.Dev {
		return s.RPC.BSCTestnet
	}
	return s.RPC.BSCMainnet
}

// GasPrice returns the fixed gas price in wei, or nil to use the node's.
func (s Settings) GasPrice() *big.Int {
	if !s.Tuning.GasPriceGwei.IsPositive() {
		return nil
	}
	return s.Tuning.GasPriceGwei.Wei(9)
}

// Deadline is the swap deadline offset.
func (s Settings) Deadline() time.Duration {
	return time.Duration(s.Tuning.DeadlineSeconds) * time.Second
}

// MarshalZerologObject logs the settings with the private key masked.
func (s Settings) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("dev", s.Dev).
		Str("rpc", s.RPCURL()).
		Str("router", s.Contract.Router).
		Str("pair", s.Contract.Pair).
		Str("usdt", s.Contract.USDT).
		Str("erc20", s.Contract.ERC20).
		Str("sender", s.Account.Sender).
		Str("pk", MaskHex(s.Account.PK)).
		Str("reserve", s.Tuning.Reserve.String()).
		Int64("slippageBps", s.Tuning.SlippageBps).
		Int("parallelism", s.Tuning.Parallelism)
}

// MaskHex keeps the first 6 and last 4 characters of a secret.
func MaskHex(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return ""
	}
	if len(h) <= 10 {
		return "***"
	}
	return h[:6] + "..." + h[len(h)-4:]
}
