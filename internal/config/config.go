// internal/config/config.go
package config

import (
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Snapshot SnapshotConfig
	Engine   EngineConfig
}

type ServerConfig struct {
	Port           string
	OpsPort        string
	Mode           string
	LogFormat      string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled         bool
	RedisURL        string
	RedisHost       string
	RedisPort       string
	RedisPassword   string
	RedisDB         int
	CurveTTLSeconds int
	BaselineKey     string
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

// SnapshotConfig selects where catalog and ledger snapshots are read from.
type SnapshotConfig struct {
	Source string // "file" or "postgres"
	Path   string
}

// EngineConfig carries the tunable thresholds of the decision engine. The
// engine packages never read it directly; commands translate it into the
// explicit parameter structs of each package.
type EngineConfig struct {
	SpikeThreshold        float64
	SpikeInterval         time.Duration
	BaselineSmoothing     float64
	RiskAversion          float64
	DutyRate              float64
	BestValueEpsilon      float64
	RushSurchargePct      float64
	ExpediteFactor        float64
	MinExpediteHours      float64
	CoverWindowHours      float64
	LostSalesHorizonHours float64

	ServiceLevel          float64
	SafetyStockBufferPct  float64
	HoldingCostRate       float64
	AutoTransferThreshold float64
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_OPS_PORT", "9090")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_LOG_FORMAT", "console")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 15)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "supplyengine")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_CURVE_TTL_SECONDS", 60)
		viper.SetDefault("CACHE_BASELINE_KEY", "spike:baseline")
		viper.SetDefault("STORAGE_ENABLED", false)
		viper.SetDefault("STORAGE_REGION", "us-east-1")
		viper.SetDefault("STORAGE_USE_SSL", true)
		viper.SetDefault("STORAGE_PREFIX", "reports")
		viper.SetDefault("SNAPSHOT_SOURCE", "file")
		viper.SetDefault("SNAPSHOT_PATH", "./fixtures/demo.yaml")

		viper.SetDefault("ENGINE_SPIKE_THRESHOLD", 2.0)
		viper.SetDefault("ENGINE_SPIKE_INTERVAL", "5s")
		viper.SetDefault("ENGINE_BASELINE_SMOOTHING", 0.2)
		viper.SetDefault("ENGINE_RISK_AVERSION", 0.5)
		viper.SetDefault("ENGINE_DUTY_RATE", 0.08)
		viper.SetDefault("ENGINE_BEST_VALUE_EPSILON", 0.01)
		viper.SetDefault("ENGINE_RUSH_SURCHARGE_PCT", 25.0)
		viper.SetDefault("ENGINE_EXPEDITE_FACTOR", 0.5)
		viper.SetDefault("ENGINE_MIN_EXPEDITE_HOURS", 4.0)
		viper.SetDefault("ENGINE_COVER_WINDOW_HOURS", 24.0)
		viper.SetDefault("ENGINE_LOST_SALES_HORIZON_HOURS", 24.0)
		viper.SetDefault("POLICY_SERVICE_LEVEL", 0.95)
		viper.SetDefault("POLICY_SAFETY_STOCK_BUFFER_PCT", 0.0)
		viper.SetDefault("POLICY_HOLDING_COST_RATE", 0.25)
		viper.SetDefault("POLICY_AUTO_TRANSFER_THRESHOLD", 0.2)

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				OpsPort:        viper.GetString("SERVER_OPS_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				LogFormat:      viper.GetString("SERVER_LOG_FORMAT"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			Cache: CacheConfig{
				Enabled:         viper.GetBool("CACHE_ENABLED"),
				RedisURL:        viper.GetString("REDIS_URL"),
				RedisHost:       viper.GetString("REDIS_HOST"),
				RedisPort:       viper.GetString("REDIS_PORT"),
				RedisPassword:   viper.GetString("REDIS_PASSWORD"),
				RedisDB:         viper.GetInt("REDIS_DB"),
				CurveTTLSeconds: viper.GetInt("CACHE_CURVE_TTL_SECONDS"),
				BaselineKey:     viper.GetString("CACHE_BASELINE_KEY"),
			},
			Storage: StorageConfig{
				Enabled:   viper.GetBool("STORAGE_ENABLED"),
				Endpoint:  viper.GetString("STORAGE_ENDPOINT"),
				AccessKey: viper.GetString("STORAGE_ACCESS_KEY"),
				SecretKey: viper.GetString("STORAGE_SECRET_KEY"),
				Bucket:    viper.GetString("STORAGE_BUCKET"),
				Region:    viper.GetString("STORAGE_REGION"),
				UseSSL:    viper.GetBool("STORAGE_USE_SSL"),
				Prefix:    strings.Trim(viper.GetString("STORAGE_PREFIX"), "/"),
			},
			Snapshot: SnapshotConfig{
				Source: strings.ToLower(viper.GetString("SNAPSHOT_SOURCE")),
				Path:   viper.GetString("SNAPSHOT_PATH"),
			},
			Engine: EngineConfig{
				SpikeThreshold:        viper.GetFloat64("ENGINE_SPIKE_THRESHOLD"),
				SpikeInterval:         viper.GetDuration("ENGINE_SPIKE_INTERVAL"),
				BaselineSmoothing:     viper.GetFloat64("ENGINE_BASELINE_SMOOTHING"),
				RiskAversion:          viper.GetFloat64("ENGINE_RISK_AVERSION"),
				DutyRate:              viper.GetFloat64("ENGINE_DUTY_RATE"),
				BestValueEpsilon:      viper.GetFloat64("ENGINE_BEST_VALUE_EPSILON"),
				RushSurchargePct:      viper.GetFloat64("ENGINE_RUSH_SURCHARGE_PCT"),
				ExpediteFactor:        viper.GetFloat64("ENGINE_EXPEDITE_FACTOR"),
				MinExpediteHours:      viper.GetFloat64("ENGINE_MIN_EXPEDITE_HOURS"),
				CoverWindowHours:      viper.GetFloat64("ENGINE_COVER_WINDOW_HOURS"),
				LostSalesHorizonHours: viper.GetFloat64("ENGINE_LOST_SALES_HORIZON_HOURS"),
				ServiceLevel:          viper.GetFloat64("POLICY_SERVICE_LEVEL"),
				SafetyStockBufferPct:  viper.GetFloat64("POLICY_SAFETY_STOCK_BUFFER_PCT"),
				HoldingCostRate:       viper.GetFloat64("POLICY_HOLDING_COST_RATE"),
				AutoTransferThreshold: viper.GetFloat64("POLICY_AUTO_TRANSFER_THRESHOLD"),
			},
		}
	})

	return instance
}
