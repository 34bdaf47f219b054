package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tycoon/internal/game"

	"gopkg.in/yaml.v3"
)

type APIConfig struct {
	Addr           string
	DatabaseURL    string
	SQLitePath     string
	GameConfigPath string
	SessionTTL     time.Duration
	RateLimit      float64
	RateBurst      int
	MaxSessions    int
}

type CLIConfig struct {
	DataDir        string
	SQLitePath     string
	DatabaseURL    string
	GameConfigPath string
	APIBaseURL     string
	LogLevel       string
	Color          bool
}

type BenchConfig struct {
	Games          int
	BaseSeed       int64
	Workers        int
	RunOnce        bool
	Every          time.Duration
	SaveGames      bool
	DatabaseURL    string
	SQLitePath     string
	GameConfigPath string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("TYCOON_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:           addr,
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath:     envDefault("TYCOON_SQLITE_PATH", "tycoon.db"),
		GameConfigPath: strings.TrimSpace(os.Getenv("TYCOON_GAME_CONFIG")),
		SessionTTL:     envDurationDefault("TYCOON_SESSION_TTL", 2*time.Hour),
		RateLimit:      envFloatDefault("TYCOON_RATE_LIMIT", 20),
		RateBurst:      envIntDefault("TYCOON_RATE_BURST", 40),
		MaxSessions:    envIntDefault("TYCOON_MAX_SESSIONS", 256),
	}
	if cfg.SessionTTL <= 0 {
		return cfg, fmt.Errorf("TYCOON_SESSION_TTL must be positive")
	}
	if cfg.RateLimit <= 0 || cfg.RateBurst <= 0 {
		return cfg, fmt.Errorf("TYCOON_RATE_LIMIT and TYCOON_RATE_BURST must be positive")
	}
	if cfg.DatabaseURL == "" && cfg.SQLitePath == "" {
		return cfg, fmt.Errorf("DATABASE_URL or TYCOON_SQLITE_PATH is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	dataDir := strings.TrimSpace(os.Getenv("TYCOON_HOME"))
	if dataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataDir = filepath.Join(home, ".tycoon")
		} else {
			dataDir = ".tycoon"
		}
	}
	return CLIConfig{
		DataDir:        dataDir,
		SQLitePath:     envDefault("TYCOON_SQLITE_PATH", filepath.Join(dataDir, "saves.db")),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		GameConfigPath: strings.TrimSpace(os.Getenv("TYCOON_GAME_CONFIG")),
		APIBaseURL:     strings.TrimRight(envDefault("TYCOON_API_BASE_URL", "http://localhost:8080"), "/"),
		LogLevel:       strings.ToLower(envDefault("TYCOON_LOG_LEVEL", "warn")),
		Color:          envBoolDefault("TYCOON_COLOR", true),
	}
}

func LoadBenchFromEnv() (BenchConfig, error) {
	cfg := BenchConfig{
		Games:          envIntDefault("TYCOON_BENCH_GAMES", 50),
		BaseSeed:       int64(envIntDefault("TYCOON_BENCH_SEED", 1)),
		Workers:        envIntDefault("TYCOON_BENCH_WORKERS", 0),
		RunOnce:        envBoolDefault("TYCOON_BENCH_RUN_ONCE", true),
		Every:          envDurationDefault("TYCOON_BENCH_EVERY", 10*time.Minute),
		SaveGames:      envBoolDefault("TYCOON_BENCH_SAVE", false),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath:     envDefault("TYCOON_SQLITE_PATH", "tycoon-bench.db"),
		GameConfigPath: strings.TrimSpace(os.Getenv("TYCOON_GAME_CONFIG")),
	}
	if cfg.Games <= 0 {
		return cfg, fmt.Errorf("TYCOON_BENCH_GAMES must be positive")
	}
	if !cfg.RunOnce && cfg.Every <= 0 {
		return cfg, fmt.Errorf("TYCOON_BENCH_EVERY must be positive")
	}
	return cfg, nil
}

// LoadGame builds the game tuning from defaults, then the optional YAML file,
// then TYCOON_* environment overrides.
func LoadGame(path string) (game.Config, error) {
	cfg := game.DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read game config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse game config %s: %w", path, err)
		}
	}
	applyGameEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyGameEnv(cfg *game.Config) {
	cfg.InitialMoney = envFloatDefault("TYCOON_INITIAL_MONEY", cfg.InitialMoney)
	cfg.TargetNetWorth = envFloatDefault("TYCOON_TARGET_NET_WORTH", cfg.TargetNetWorth)
	cfg.MaxTurns = envIntDefault("TYCOON_MAX_TURNS", cfg.MaxTurns)
	cfg.NumCompetitors = envIntDefault("TYCOON_NUM_COMPETITORS", cfg.NumCompetitors)

	cfg.BaseDemand = envFloatDefault("TYCOON_BASE_DEMAND", cfg.BaseDemand)
	cfg.DemandPriceSensitivity = envFloatDefault("TYCOON_DEMAND_PRICE_SENSITIVITY", cfg.DemandPriceSensitivity)
	cfg.DemandQualitySensitivity = envFloatDefault("TYCOON_DEMAND_QUALITY_SENSITIVITY", cfg.DemandQualitySensitivity)
	cfg.DemandMarketingSensitivity = envFloatDefault("TYCOON_DEMAND_MARKETING_SENSITIVITY", cfg.DemandMarketingSensitivity)
	cfg.CompetitionSensitivity = envFloatDefault("TYCOON_COMPETITION_SENSITIVITY", cfg.CompetitionSensitivity)
	cfg.DemandReferencePrice = envFloatDefault("TYCOON_DEMAND_REFERENCE_PRICE", cfg.DemandReferencePrice)

	cfg.InitialProdCost = envFloatDefault("TYCOON_INITIAL_PROD_COST", cfg.InitialProdCost)
	cfg.InitialQuality = envIntDefault("TYCOON_INITIAL_QUALITY", cfg.InitialQuality)
	cfg.InitialMarketingLvl = envIntDefault("TYCOON_INITIAL_MARKETING_LVL", cfg.InitialMarketingLvl)
	cfg.InitialWorkers = envIntDefault("TYCOON_INITIAL_WORKERS", cfg.InitialWorkers)
	cfg.InitialPriceMarkup = envFloatDefault("TYCOON_INITIAL_PRICE_MARKUP", cfg.InitialPriceMarkup)

	cfg.WorkerSalary = envFloatDefault("TYCOON_WORKER_SALARY", cfg.WorkerSalary)
	cfg.MaxProdPerWorker = envIntDefault("TYCOON_MAX_PROD_PER_WORKER", cfg.MaxProdPerWorker)
	cfg.HiringCostPerWorker = envFloatDefault("TYCOON_HIRING_COST_PER_WORKER", cfg.HiringCostPerWorker)
	cfg.FiringCostPerWorker = envFloatDefault("TYCOON_FIRING_COST_PER_WORKER", cfg.FiringCostPerWorker)

	cfg.RndCostFactor = envFloatDefault("TYCOON_RND_COST_FACTOR", cfg.RndCostFactor)
	cfg.RndPointsPerUpgrade = envIntDefault("TYCOON_RND_POINTS_PER_UPGRADE", cfg.RndPointsPerUpgrade)
	cfg.MarketingCostFactor = envFloatDefault("TYCOON_MARKETING_COST_FACTOR", cfg.MarketingCostFactor)
	cfg.CostReductionFraction = envFloatDefault("TYCOON_COST_REDUCTION_FRACTION", cfg.CostReductionFraction)
	cfg.MinProdCost = envFloatDefault("TYCOON_MIN_PROD_COST", cfg.MinProdCost)

	cfg.InterestRate = envFloatDefault("TYCOON_INTEREST_RATE", cfg.InterestRate)
	cfg.LoanInterestRate = envFloatDefault("TYCOON_LOAN_INTEREST_RATE", cfg.LoanInterestRate)
	cfg.MaxLoanRatio = envFloatDefault("TYCOON_MAX_LOAN_RATIO", cfg.MaxLoanRatio)

	cfg.EventProbability = envFloatDefault("TYCOON_EVENT_PROBABILITY", cfg.EventProbability)
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
