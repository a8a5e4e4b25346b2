package config

import (
	"log"
	"time"

	"github.com/KotFed0t/blu_rebalancer/internal/money"
	"github.com/KotFed0t/blu_rebalancer/internal/rebalance"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	Postgres          Postgres
	Telegram          Telegram
	Redis             Redis
	HTTP              HTTP
	API               API
	Cache             Cache
	Jobs              Jobs
	GoogleDrive       GoogleDrive
	Rebalance         Rebalance
	SessionExpiration time.Duration `env:"SESSION_EXPIRATION" envDefault:"1h"`
}

type Postgres struct {
	Host            string `env:"PG_HOST"`
	Port            int    `env:"PG_PORT"`
	DbName          string `env:"PG_DB_NAME"`
	Password        string `env:"PG_PASSWORD"`
	User            string `env:"PG_USER"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME"`
	MigrationDir    string `env:"PG_MIGRATION_DIR"`
}

type Telegram struct {
	Token      string        `env:"TELEGRAM_TOKEN"`
	UpdTimeout time.Duration `env:"TELEGRAM_UPD_TIMEOUT"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
}

type HTTP struct {
	Addr           string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	AllowedOrigins []string      `env:"HTTP_ALLOWED_ORIGINS" envDefault:"*"`
}

type API struct {
	Debug    bool          `env:"API_DEBUG"`
	Timeout  time.Duration `env:"API_TIMEOUT"`
	PriceApi PriceApi
}

type PriceApi struct {
	Url string `env:"PRICE_API_URL"`
}

type Cache struct {
	PricesExpiration time.Duration `env:"CACHE_PRICES_EXPIRATION"`
}

type Jobs struct {
	FillPriceCacheInterval time.Duration `env:"FILL_PRICE_CACHE_JOB_INTERVAL"`
	CleanupReportsInterval time.Duration `env:"CLEANUP_REPORTS_JOB_INTERVAL" envDefault:"24h"`
}

type GoogleDrive struct {
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE"`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL" envDefault:"24h"`
}

type Rebalance struct {
	MinTradeAmountIrr        int64         `env:"MIN_TRADE_AMOUNT_IRR" envDefault:"1000000"`
	SpreadFoundationBps      int64         `env:"SPREAD_FOUNDATION_BPS" envDefault:"15"`
	SpreadGrowthBps          int64         `env:"SPREAD_GROWTH_BPS" envDefault:"30"`
	SpreadUpsideBps          int64         `env:"SPREAD_UPSIDE_BPS" envDefault:"60"`
	Cooldown                 time.Duration `env:"REBALANCE_COOLDOWN" envDefault:"24h"`
	DiversificationCapPct    int64         `env:"DIVERSIFICATION_CAP_PCT" envDefault:"80"`
	MinKeepIrr               int64         `env:"MIN_KEEP_IRR" envDefault:"5000000"`
	IntraLayerEnabled        bool          `env:"INTRA_LAYER_ENABLED" envDefault:"true"`
	IntraLayerOverweightPct  int64         `env:"INTRA_LAYER_OVERWEIGHT_PCT" envDefault:"15"`
	IntraLayerUnderweightPct int64         `env:"INTRA_LAYER_UNDERWEIGHT_PCT" envDefault:"10"`
	IntraLayerBandPct        int64         `env:"INTRA_LAYER_BAND_PCT" envDefault:"5"`
	IntraLayerTolerancePct   int64         `env:"INTRA_LAYER_TOLERANCE_PCT" envDefault:"5"`
	OverweightGuardPct       int64         `env:"OVERWEIGHT_GUARD_PCT" envDefault:"-5"`
	MinDriftPct              int64         `env:"MIN_DRIFT_PCT" envDefault:"1"`
	FullRebalanceDriftPct    int64         `env:"FULL_REBALANCE_DRIFT_PCT" envDefault:"2"`
	MinDepositIrr            int64         `env:"MIN_DEPOSIT_IRR" envDefault:"1000000"`
	WeightStrategy           string        `env:"WEIGHT_STRATEGY" envDefault:"STATIC"`
	DefaultTargetPreset      string        `env:"DEFAULT_TARGET_PRESET" envDefault:"BALANCED"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}

// EngineConfig builds the immutable engine tunables from the env values.
func (c *Config) EngineConfig() rebalance.Config {
	r := c.Rebalance
	res := rebalance.DefaultConfig()

	res.MinTradeAmountIrr = money.Irr(r.MinTradeAmountIrr)
	res.SpreadFoundation = money.FromBps(r.SpreadFoundationBps)
	res.SpreadGrowth = money.FromBps(r.SpreadGrowthBps)
	res.SpreadUpside = money.FromBps(r.SpreadUpsideBps)
	res.CooldownWindow = r.Cooldown
	res.DiversificationCap = decimal.NewFromInt(r.DiversificationCapPct).Div(money.Hundred)
	res.MinKeepIrr = money.Irr(r.MinKeepIrr)
	res.IntraLayerEnabled = r.IntraLayerEnabled
	res.IntraLayerOverweightPct = decimal.NewFromInt(r.IntraLayerOverweightPct)
	res.IntraLayerUnderweightPct = decimal.NewFromInt(r.IntraLayerUnderweightPct)
	res.IntraLayerBandPct = decimal.NewFromInt(r.IntraLayerBandPct)
	res.IntraLayerTolerancePct = decimal.NewFromInt(r.IntraLayerTolerancePct)
	res.OverweightGuardPct = decimal.NewFromInt(r.OverweightGuardPct)
	res.MinDriftPct = decimal.NewFromInt(r.MinDriftPct)
	res.FullRebalanceDriftPct = decimal.NewFromInt(r.FullRebalanceDriftPct)

	return res
}
