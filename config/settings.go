package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Fingerprint generation modes
const (
	FingerprintModeLocal  = "local"
	FingerprintModeRemote = "remote"
)

// Settings holds all configuration for the verifier
type Settings struct {
	// Ledger RPC Configuration
	RPCNodes       []string // Tried in order until one answers
	ChainID        int64    // 0 disables the chain id check
	RecordContract string   // Record store contract address
	RecordABIFile  string   // Optional ABI override (raw ABI or Hardhat artifact)

	// Record query window
	QueryOffset uint64
	QueryLimit  uint64

	// Run timing
	StageTimeout     time.Duration
	LocalStepDelay   time.Duration
	OnChainStepDelay time.Duration
	CompareStepDelay time.Duration
	PrefetchOnChain  bool

	// Fingerprint generation
	FingerprintMode   string
	FingerprintAPIURL string

	// Record cache
	CacheEnabled bool
	CacheSize    int
	CacheTTL     time.Duration

	// Redis Configuration (optional second cache tier)
	RedisHost     string
	RedisPort     string
	RedisDB       int
	RedisPassword string

	// API Configuration
	APIHost           string
	APIPort           int
	APIRateLimit      float64 // requests per second per client, 0 disables
	APIRateBurst      int
	APICORSOrigins    []string
	APIRequestTimeout time.Duration
	APITrustProxy     bool // honour X-Forwarded-For / X-Real-IP

	// Monitoring & Debugging
	LogLevel  string
	DebugMode bool
}

var (
	// SettingsObj is the global settings instance
	SettingsObj *Settings

	addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
)

// LoadConfig loads configuration from the environment (and an optional .env file)
// into SettingsObj and configures logging.
func LoadConfig() error {
	settings, err := Load()
	if err != nil {
		return err
	}
	SettingsObj = settings

	ConfigureLogging(SettingsObj)

	if err := SettingsObj.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logConfigSummary(SettingsObj)
	return nil
}

// Load reads settings without touching global state.
func Load() (*Settings, error) {
	// .env is optional; real environment variables take precedence
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Failed to parse .env file")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	s := &Settings{
		ChainID:        v.GetInt64("CHAIN_ID"),
		RecordContract: strings.TrimSpace(v.GetString("RECORD_CONTRACT")),
		RecordABIFile:  v.GetString("RECORD_ABI_FILE"),

		QueryOffset: v.GetUint64("QUERY_OFFSET"),
		QueryLimit:  v.GetUint64("QUERY_LIMIT"),

		StageTimeout:     time.Duration(v.GetInt("STAGE_TIMEOUT_SECONDS")) * time.Second,
		LocalStepDelay:   time.Duration(v.GetInt("LOCAL_STEP_DELAY_MS")) * time.Millisecond,
		OnChainStepDelay: time.Duration(v.GetInt("ONCHAIN_STEP_DELAY_MS")) * time.Millisecond,
		CompareStepDelay: time.Duration(v.GetInt("COMPARE_STEP_DELAY_MS")) * time.Millisecond,
		PrefetchOnChain:  v.GetBool("PREFETCH_ONCHAIN"),

		FingerprintMode:   strings.ToLower(strings.TrimSpace(v.GetString("FINGERPRINT_MODE"))),
		FingerprintAPIURL: strings.TrimRight(v.GetString("FINGERPRINT_API_URL"), "/"),

		CacheEnabled: v.GetBool("CACHE_ENABLED"),
		CacheSize:    v.GetInt("CACHE_SIZE"),
		CacheTTL:     time.Duration(v.GetInt("CACHE_TTL_SECONDS")) * time.Second,

		RedisHost:     v.GetString("REDIS_HOST"),
		RedisPort:     v.GetString("REDIS_PORT"),
		RedisDB:       v.GetInt("REDIS_DB"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),

		APIHost:           v.GetString("API_HOST"),
		APIPort:           v.GetInt("API_PORT"),
		APIRateLimit:      v.GetFloat64("API_RATE_LIMIT"),
		APIRateBurst:      v.GetInt("API_RATE_BURST"),
		APIRequestTimeout: time.Duration(v.GetInt("API_REQUEST_TIMEOUT_SECONDS")) * time.Second,
		APITrustProxy:     v.GetBool("API_TRUST_PROXY_HEADERS"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		DebugMode: v.GetBool("DEBUG_MODE"),
	}

	nodes, err := parseList(v.GetString("RPC_NODES"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse RPC_NODES: %w", err)
	}
	s.RPCNodes = nodes

	origins, err := parseList(v.GetString("API_CORS_ORIGINS"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse API_CORS_ORIGINS: %w", err)
	}
	s.APICORSOrigins = origins

	return s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CHAIN_ID", 0)
	v.SetDefault("QUERY_OFFSET", 0)
	v.SetDefault("QUERY_LIMIT", 100)
	v.SetDefault("STAGE_TIMEOUT_SECONDS", 30)
	v.SetDefault("LOCAL_STEP_DELAY_MS", 300)
	v.SetDefault("ONCHAIN_STEP_DELAY_MS", 500)
	v.SetDefault("COMPARE_STEP_DELAY_MS", 500)
	v.SetDefault("PREFETCH_ONCHAIN", false)
	v.SetDefault("FINGERPRINT_MODE", FingerprintModeLocal)
	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_SIZE", 1024)
	v.SetDefault("CACHE_TTL_SECONDS", 600)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("API_HOST", "0.0.0.0")
	v.SetDefault("API_PORT", 8080)
	v.SetDefault("API_RATE_LIMIT", 5)
	v.SetDefault("API_RATE_BURST", 10)
	v.SetDefault("API_CORS_ORIGINS", "*")
	v.SetDefault("API_REQUEST_TIMEOUT_SECONDS", 90)
	v.SetDefault("API_TRUST_PROXY_HEADERS", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEBUG_MODE", false)
}

// parseList accepts either a comma-separated list or a JSON array of strings.
func parseList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" {
		return nil, nil
	}

	var items []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, err
		}
	} else {
		items = strings.Split(raw, ",")
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.Trim(item, "\" ")
		if item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

// Validate checks that the settings can drive a verification run
func (s *Settings) Validate() error {
	if len(s.RPCNodes) == 0 {
		return errors.New("RPC_NODES is required")
	}
	if s.RecordContract == "" {
		return errors.New("RECORD_CONTRACT is required")
	}
	if !addressPattern.MatchString(s.RecordContract) {
		return fmt.Errorf("invalid RECORD_CONTRACT address: %s", s.RecordContract)
	}
	if s.QueryLimit == 0 {
		return errors.New("QUERY_LIMIT must be positive")
	}
	if s.StageTimeout <= 0 {
		return errors.New("STAGE_TIMEOUT_SECONDS must be positive")
	}

	switch s.FingerprintMode {
	case FingerprintModeLocal:
	case FingerprintModeRemote:
		if s.FingerprintAPIURL == "" {
			return errors.New("FINGERPRINT_API_URL required when FINGERPRINT_MODE=remote")
		}
	default:
		return fmt.Errorf("unknown FINGERPRINT_MODE %q", s.FingerprintMode)
	}

	if s.CacheEnabled && s.CacheSize <= 0 {
		return errors.New("CACHE_SIZE must be positive when the cache is enabled")
	}

	return nil
}

// RecordContractAddress returns the parsed record store address
func (s *Settings) RecordContractAddress() common.Address {
	return common.HexToAddress(s.RecordContract)
}

// RedisAddr returns host:port, or "" when Redis is not configured
func (s *Settings) RedisAddr() string {
	if s.RedisHost == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", s.RedisHost, s.RedisPort)
}

// ConfigureLogging sets up the logger based on configuration
func ConfigureLogging(s *Settings) {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn", "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}

	// Override with debug mode
	if s.DebugMode {
		log.SetLevel(log.DebugLevel)
	}

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
}

func logConfigSummary(s *Settings) {
	log.Info("=== Configuration Loaded ===")
	log.Infof("RPC Nodes: %d configured", len(s.RPCNodes))
	log.Infof("Record Contract: %s (chain %d)", s.RecordContract, s.ChainID)
	log.Infof("Query window: offset=%d limit=%d", s.QueryOffset, s.QueryLimit)
	log.Infof("Fingerprint mode: %s", s.FingerprintMode)
	log.Infof("Stage timeout: %v", s.StageTimeout)

	if s.CacheEnabled {
		log.Infof("Record cache: Enabled (TTL: %v, Size: %d, Redis: %v)", s.CacheTTL, s.CacheSize, s.RedisAddr() != "")
	}

	log.Info("============================")
}
