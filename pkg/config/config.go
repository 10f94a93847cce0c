package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Capacity ledger backends.
const (
	CapacityBackendPostgres = "postgres"
	CapacityBackendMemory   = "memory"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Advising AdvisingConfig
	Exports  ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the shared secret used to verify tokens minted by the identity provider.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AdvisingConfig tunes eligibility, quota and caching behaviour of the allocation engine.
type AdvisingConfig struct {
	DefaultMaxRegular   int
	DefaultMaxIrregular int
	PassingGrade        float64
	CapacityBackend     string
	// CourseEquivalences maps a canonical program code to its accepted aliases.
	CourseEquivalences map[string][]string
	CacheEnabled       bool
	CacheTTL           time.Duration
	// Failed seat releases are retried in the background with these limits.
	ReleaseWorkers    int
	ReleaseMaxRetries int
	ReleaseRetryDelay time.Duration
}

// ExportsConfig toggles study-load document rendering.
type ExportsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET"), Issuer: v.GetString("JWT_ISSUER")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"), ",")}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Advising = AdvisingConfig{
		DefaultMaxRegular:   positiveOr(v.GetInt("ADVISING_DEFAULT_MAX_REGULAR"), 35),
		DefaultMaxIrregular: positiveOr(v.GetInt("ADVISING_DEFAULT_MAX_IRREGULAR"), 5),
		PassingGrade:        v.GetFloat64("ADVISING_PASSING_GRADE"),
		CapacityBackend:     strings.ToLower(v.GetString("ADVISING_CAPACITY_BACKEND")),
		CourseEquivalences:  ParseCourseEquivalences(v.GetString("ADVISING_COURSE_EQUIVALENCES")),
		CacheEnabled:        v.GetBool("ADVISING_CACHE_ENABLED"),
		CacheTTL:            parseDuration(v.GetString("ADVISING_CACHE_TTL"), 5*time.Minute),
		ReleaseWorkers:      positiveOr(v.GetInt("ADVISING_RELEASE_WORKERS"), 2),
		ReleaseMaxRetries:   positiveOr(v.GetInt("ADVISING_RELEASE_MAX_RETRIES"), 5),
		ReleaseRetryDelay:   parseDuration(v.GetString("ADVISING_RELEASE_RETRY_DELAY"), time.Second),
	}
	if cfg.Advising.PassingGrade <= 0 {
		cfg.Advising.PassingGrade = 3.0
	}
	if cfg.Advising.CapacityBackend != CapacityBackendMemory {
		cfg.Advising.CapacityBackend = CapacityBackendPostgres
	}

	cfg.Exports = ExportsConfig{Enabled: v.GetBool("ENABLE_EXPORTS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "college_records")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ADVISING_DEFAULT_MAX_REGULAR", 35)
	v.SetDefault("ADVISING_DEFAULT_MAX_IRREGULAR", 5)
	v.SetDefault("ADVISING_PASSING_GRADE", 3.0)
	v.SetDefault("ADVISING_CAPACITY_BACKEND", CapacityBackendPostgres)
	v.SetDefault("ADVISING_COURSE_EQUIVALENCES", "")
	v.SetDefault("ADVISING_CACHE_ENABLED", true)
	v.SetDefault("ADVISING_CACHE_TTL", "5m")
	v.SetDefault("ADVISING_RELEASE_WORKERS", 2)
	v.SetDefault("ADVISING_RELEASE_MAX_RETRIES", 5)
	v.SetDefault("ADVISING_RELEASE_RETRY_DELAY", "1s")

	v.SetDefault("ENABLE_EXPORTS", true)
}

// ParseCourseEquivalences reads "BSIT=BS-IT|BS INFORMATION TECHNOLOGY;BSCS=BS-CS".
// Groups are separated by ';', the canonical code precedes '=', aliases are separated by '|'.
func ParseCourseEquivalences(raw string) map[string][]string {
	result := make(map[string][]string)
	for _, group := range splitAndTrim(raw, ";") {
		canonical, aliases, _ := strings.Cut(group, "=")
		canonical = strings.TrimSpace(canonical)
		if canonical == "" {
			continue
		}
		result[canonical] = append(result[canonical], splitAndTrim(aliases, "|")...)
	}
	return result
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw, sep string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
