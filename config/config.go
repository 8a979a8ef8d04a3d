// config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration. It is parsed once in main and passed down explicitly.
type Config struct {
	HTTPAddr       string   `env:"HTTP_ADDR" envDefault:":5200"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	Verbose        bool     `env:"VERBOSE" envDefault:"false"`
	Testing        bool     `env:"TESTING" envDefault:"false"`
	ServiceToken   string   `env:"SERVICE_TOKEN"`

	DatabaseURL  string `env:"DATABASE_URL"`
	LedgerDriver string `env:"LEDGER_DRIVER" envDefault:"postgres"`

	// AuthorityFID is the distribution authority; it always sees the claim as available.
	AuthorityFID string `env:"FID,required"`

	FollowProvider     string        `env:"FOLLOW_PROVIDER" envDefault:"hub"`
	HubURL             string        `env:"HUB_URL" envDefault:"https://hub.pinata.cloud"`
	AirstackHub        string        `env:"AIRSTACK_HUB" envDefault:"https://hubs.airstack.xyz"`
	AirstackAPIURL     string        `env:"AIRSTACK_API_URL" envDefault:"https://api.airstack.xyz/gql"`
	AirstackAPIKey     string        `env:"AIRSTACK_API_KEY"`
	FollowTimeout      time.Duration `env:"FOLLOW_TIMEOUT" envDefault:"2s"`
	EndorseTimeout     time.Duration `env:"ENDORSE_TIMEOUT" envDefault:"1s"`
	WalletTimeout      time.Duration `env:"WALLET_TIMEOUT" envDefault:"1s"`
	SkipCustodyAddress bool          `env:"SKIP_CUSTODY_ADDRESS" envDefault:"true"`

	MainnetRPC       string `env:"BASE_MAINNET_RPC"`
	SepoliaRPC       string `env:"BASE_SEPOLIA_RPC"`
	TokenAddress     string `env:"TOKEN_ADDRESS"`
	TestTokenAddress string `env:"TEST_TOKEN_ADDRESS"`
	TokenSymbol      string `env:"TOKEN_SYMBOL" envDefault:"DEGEN"`
	TokenDecimals    int32  `env:"TOKEN_DECIMALS" envDefault:"18"`
	VaultPrivateKey  string `env:"VAULT_PRIVATE_KEY"`
	AllocationAmount string `env:"ALLOCATION_AMOUNT,required"`
	// MaxFeePerGasGwei is the fee ceiling paid per unit of gas.
	MaxFeePerGasGwei    string `env:"MAX_FEE_PER_GAS" envDefault:"1"`
	MinRecipientBalance string `env:"MIN_RECIPIENT_BALANCE_WEI" envDefault:"0"`

	MaxClaimsPerWindow int64  `env:"MAX_CLAIM_PER_DAY,required"`
	CooldownMode       string `env:"COOLDOWN_MODE" envDefault:"calendar"`
	CooldownDays       int    `env:"COOLDOWN_DAYS" envDefault:"1"`
	CapMode            string `env:"CAP_MODE" envDefault:"calendar"`
	CapDays            int    `env:"CAP_DAYS" envDefault:"1"`

	MainnetExplorer string `env:"BASE_MAINNET_EXPLORER" envDefault:"https://basescan.org"`
	SepoliaExplorer string `env:"BASE_SEPOLIA_EXPLORER" envDefault:"https://sepolia.basescan.org"`
	CDN             string `env:"CDN"`
	ProfileURL      string `env:"PROFILE"`
	InfoURL         string `env:"INFO_URL" envDefault:"https://docs.deribet.io/"`

	ReservationTTL    time.Duration `env:"RESERVATION_TTL" envDefault:"15m"`
	TransferTimeout   time.Duration `env:"TRANSFER_TIMEOUT" envDefault:"2m"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1m"`
	ClaimRateLimit    int           `env:"CLAIM_RATE_LIMIT" envDefault:"5"`

	CloudflareAccountID string `env:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID       string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret   string `env:"R2_ACCESS_KEY_SECRET"`
	R2Bucket            string `env:"R2_BUCKET_NAME"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("⚠️  No .env file found, reading environment variables directly")
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	switch c.FollowProvider {
	case "hub", "airstack":
	default:
		errs = append(errs, fmt.Errorf("FOLLOW_PROVIDER must be hub or airstack, got %q", c.FollowProvider))
	}
	switch c.LedgerDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres ledger"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("LEDGER_DRIVER must be postgres or memory, got %q", c.LedgerDriver))
	}
	for name, mode := range map[string]string{"COOLDOWN_MODE": c.CooldownMode, "CAP_MODE": c.CapMode} {
		if mode != "calendar" && mode != "rolling" {
			errs = append(errs, fmt.Errorf("%s must be calendar or rolling, got %q", name, mode))
		}
	}
	if c.CooldownDays < 1 || c.CapDays < 1 {
		errs = append(errs, errors.New("COOLDOWN_DAYS and CAP_DAYS must be at least 1"))
	}
	// A pending reservation must outlive the transfer that holds it.
	if c.TransferTimeout <= 0 || c.TransferTimeout >= c.ReservationTTL {
		errs = append(errs, fmt.Errorf("TRANSFER_TIMEOUT (%s) must be positive and below RESERVATION_TTL (%s)", c.TransferTimeout, c.ReservationTTL))
	}
	if c.MaxClaimsPerWindow < 0 {
		errs = append(errs, errors.New("MAX_CLAIM_PER_DAY must not be negative"))
	}
	return errors.Join(errs...)
}

// RPCURL returns the chain endpoint for the active network.
func (c Config) RPCURL() string {
	if c.Testing {
		return c.SepoliaRPC
	}
	return c.MainnetRPC
}

// Token returns the distributed token address for the active network.
func (c Config) Token() string {
	if c.Testing {
		return c.TestTokenAddress
	}
	return c.TokenAddress
}

// Explorer returns the block explorer base URL for the active network, always ending in "/".
func (c Config) Explorer() string {
	addr := c.MainnetExplorer
	if c.Testing {
		addr = c.SepoliaExplorer
	}
	if !strings.HasSuffix(addr, "/") {
		addr += "/"
	}
	return addr
}

// ArchiveEnabled reports whether R2 credentials for the ledger archive are present.
func (c Config) ArchiveEnabled() bool {
	return c.CloudflareAccountID != "" && c.R2AccessKeyID != "" && c.R2AccessKeySecret != "" && c.R2Bucket != ""
}
