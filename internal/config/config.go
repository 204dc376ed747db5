// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        // e.g. "8080"
	BackofficePort       string        // e.g. "8081"
	Env                  string        // "development" | "production"
	ReadTimeout          time.Duration // default 10s
	WriteTimeout         time.Duration // default 10s
	BackofficeAllowedIPs string        // comma-separated IPs; "" = allow all
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// JWTConfig holds JWT signing settings.
type JWTConfig struct {
	AccessSecret  string        // must be set
	RefreshSecret string        // must be set
	AccessTTL     time.Duration // default 15m
	RefreshTTL    time.Duration // default 720h (30 days)
}

// MarketConfig holds trading and market-creation settings.
type MarketConfig struct {
	FeeRate            float64       // flat fee on buys and sells, e.g. 0.01 = 1%
	SlippageTolerance  float64       // max relative avg-price deviation, e.g. 0.02 = 2%
	MinTradeAmount     float64       // smallest buy accepted
	MinLiquidity       float64       // smallest initial subsidy a creator may seed
	MaxLiquidity       float64       // largest initial subsidy
	RegistrationBonus  float64       // starting balance credited on signup
	OddsBroadcastEvery time.Duration // WS odds push interval
}

// SettlementConfig holds the dispute-protocol parameters.
type SettlementConfig struct {
	CreatorBond    float64       // escrowed when proposing an outcome
	ContestBond    float64       // escrowed when disputing a proposal
	VoteBond       float64       // escrowed per verification vote
	ContestWindow  time.Duration // default 1h
	VoteWindow     time.Duration // default 1h
	ReconcileEvery time.Duration // scheduler poll interval, default 15s
	ActionLimit    int           // settlement actions per user per window
	ActionWindow   time.Duration // sliding window for the action limit
}

// RateLimitConfig holds HTTP request throttling settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 // per-client sustained rate
	Burst             int     // per-client burst size
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	JWT        JWTConfig
	Market     MarketConfig
	Settlement SettlementConfig
	RateLimit  RateLimitConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// Returns the first validation error encountered.
func (c *Config) Validate() error {
	var errs []error

	// JWT secrets are mandatory
	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET must be set"))
	}

	// In production, DB DSN must be explicit
	if c.IsProd() && c.DB.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
	}

	// Fee sanity check: 0 is allowed, 1 is not
	if c.Market.FeeRate < 0 || c.Market.FeeRate >= 1 {
		errs = append(errs, fmt.Errorf(
			"MARKET_FEE_RATE must be in [0,1), got %.4f", c.Market.FeeRate))
	}
	if c.Market.SlippageTolerance <= 0 || c.Market.SlippageTolerance >= 1 {
		errs = append(errs, fmt.Errorf(
			"MARKET_SLIPPAGE_TOLERANCE must be between 0 and 1 (exclusive), got %.4f",
			c.Market.SlippageTolerance))
	}
	if c.Market.MinLiquidity <= 0 || c.Market.MaxLiquidity < c.Market.MinLiquidity {
		errs = append(errs, fmt.Errorf(
			"liquidity bounds invalid: min=%.2f max=%.2f",
			c.Market.MinLiquidity, c.Market.MaxLiquidity))
	}

	// Bonds must be positive or nobody has skin in the game
	if c.Settlement.CreatorBond <= 0 || c.Settlement.ContestBond <= 0 || c.Settlement.VoteBond <= 0 {
		errs = append(errs, fmt.Errorf(
			"settlement bonds must be positive: creator=%.2f contest=%.2f vote=%.2f",
			c.Settlement.CreatorBond, c.Settlement.ContestBond, c.Settlement.VoteBond))
	}
	if c.Settlement.ContestWindow <= 0 || c.Settlement.VoteWindow <= 0 {
		errs = append(errs, errors.New("settlement windows must be positive durations"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:                 getEnv("SERVER_PORT", "8080"),
		BackofficePort:       getEnv("BACKOFFICE_PORT", "8081"),
		Env:                  getEnv("ENVIRONMENT", "development"),
		ReadTimeout:          getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:         getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		BackofficeAllowedIPs: getEnv("BACKOFFICE_ALLOWED_IPS", ""),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		// Build DSN from individual components for convenience in dev
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "peerbet"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}

	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT = JWTConfig{
		AccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		RefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
		AccessTTL:     getDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:    getDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
	}

	// ── Market ────────────────────────────────────────────────────────────────
	feeRate, err := getFloat("MARKET_FEE_RATE", 0.01)
	if err != nil {
		return nil, fmt.Errorf("MARKET_FEE_RATE: %w", err)
	}
	slippage, err := getFloat("MARKET_SLIPPAGE_TOLERANCE", 0.02)
	if err != nil {
		return nil, fmt.Errorf("MARKET_SLIPPAGE_TOLERANCE: %w", err)
	}
	minTrade, err := getFloat("MARKET_MIN_TRADE", 1)
	if err != nil {
		return nil, fmt.Errorf("MARKET_MIN_TRADE: %w", err)
	}
	minLiq, err := getFloat("MARKET_MIN_LIQUIDITY", 10)
	if err != nil {
		return nil, fmt.Errorf("MARKET_MIN_LIQUIDITY: %w", err)
	}
	maxLiq, err := getFloat("MARKET_MAX_LIQUIDITY", 10000)
	if err != nil {
		return nil, fmt.Errorf("MARKET_MAX_LIQUIDITY: %w", err)
	}
	bonus, err := getFloat("MARKET_REGISTRATION_BONUS", 1000)
	if err != nil {
		return nil, fmt.Errorf("MARKET_REGISTRATION_BONUS: %w", err)
	}

	cfg.Market = MarketConfig{
		FeeRate:            feeRate,
		SlippageTolerance:  slippage,
		MinTradeAmount:     minTrade,
		MinLiquidity:       minLiq,
		MaxLiquidity:       maxLiq,
		RegistrationBonus:  bonus,
		OddsBroadcastEvery: getDuration("MARKET_ODDS_BROADCAST_EVERY", 2*time.Second),
	}

	// ── Settlement ────────────────────────────────────────────────────────────
	creatorBond, err := getFloat("SETTLEMENT_CREATOR_BOND", 10)
	if err != nil {
		return nil, fmt.Errorf("SETTLEMENT_CREATOR_BOND: %w", err)
	}
	contestBond, err := getFloat("SETTLEMENT_CONTEST_BOND", 50)
	if err != nil {
		return nil, fmt.Errorf("SETTLEMENT_CONTEST_BOND: %w", err)
	}
	voteBond, err := getFloat("SETTLEMENT_VOTE_BOND", 25)
	if err != nil {
		return nil, fmt.Errorf("SETTLEMENT_VOTE_BOND: %w", err)
	}
	actionLimit, err := getInt("SETTLEMENT_ACTION_LIMIT", 5)
	if err != nil {
		return nil, fmt.Errorf("SETTLEMENT_ACTION_LIMIT: %w", err)
	}

	cfg.Settlement = SettlementConfig{
		CreatorBond:    creatorBond,
		ContestBond:    contestBond,
		VoteBond:       voteBond,
		ContestWindow:  getDuration("SETTLEMENT_CONTEST_WINDOW", time.Hour),
		VoteWindow:     getDuration("SETTLEMENT_VOTE_WINDOW", time.Hour),
		ReconcileEvery: getDuration("SETTLEMENT_RECONCILE_EVERY", 15*time.Second),
		ActionLimit:    actionLimit,
		ActionWindow:   getDuration("SETTLEMENT_ACTION_WINDOW", 10*time.Minute),
	}

	// ── Rate limiting ─────────────────────────────────────────────────────────
	rps, err := getFloat("RATE_LIMIT_RPS", 10)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
	}
	burst, err := getInt("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_BURST: %w", err)
	}
	cfg.RateLimit = RateLimitConfig{
		RequestsPerSecond: rps,
		Burst:             burst,
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Log warning and fall back to default; do not crash on parse error
		return defaultVal
	}
	return d
}
