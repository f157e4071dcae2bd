package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers understood by Load.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Geolocation providers understood by Load.
const (
	GeoProviderIPAPI   = "ipapi"
	GeoProviderMaxMind = "maxmind"
)

// Event backends understood by Load.
const (
	EventsLog   = "log"
	EventsKafka = "kafka"
	EventsAMQP  = "amqp"
)

// Config holds runtime configuration sourced from an optional YAML file and env vars.
type Config struct {
	Port          string
	StorageDriver string
	DatabaseURL   string

	JWTSecret  string
	JWTIssuer  string
	JWTTTL     time.Duration
	BcryptCost int

	CORSOrigins       []string
	ProtectTracking   bool
	TrustProxyHeaders bool

	GeoProvider        string
	GeoEndpoint        string
	GeoTimeout         time.Duration
	MaxMindCityDB      string
	MaxMindASNDB       string
	MaxMindAnonymousDB string
	RedisURL           string
	GeoCacheTTL        time.Duration

	EventsBackend string
	EventsTopic   string
	KafkaBrokers  []string
	AMQPURL       string

	LogLevel  string
	LogFormat string
}

// fileConfig mirrors the YAML layout accepted through CONFIG_FILE.
type fileConfig struct {
	Server struct {
		Port              string   `yaml:"port"`
		CORSOrigins       []string `yaml:"cors_allowed_origins"`
		ProtectTracking   *bool    `yaml:"protect_tracking"`
		TrustProxyHeaders *bool    `yaml:"trust_proxy_headers"`
	} `yaml:"server"`
	Storage struct {
		Driver      string `yaml:"driver"`
		DatabaseURL string `yaml:"database_url"`
	} `yaml:"storage"`
	Auth struct {
		JWTIssuer  string `yaml:"jwt_issuer"`
		TTLMinutes int    `yaml:"jwt_ttl_minutes"`
		BcryptCost int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	Geo struct {
		Provider        string `yaml:"provider"`
		Endpoint        string `yaml:"endpoint"`
		TimeoutSeconds  int    `yaml:"timeout_seconds"`
		CityDB          string `yaml:"maxmind_city_db"`
		ASNDB           string `yaml:"maxmind_asn_db"`
		AnonymousDB     string `yaml:"maxmind_anonymous_db"`
		RedisURL        string `yaml:"redis_url"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"geo"`
	Events struct {
		Backend      string   `yaml:"backend"`
		Topic        string   `yaml:"topic"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		AMQPURL      string   `yaml:"amqp_url"`
	} `yaml:"events"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Defaults returns the configuration used before any file or env overrides apply.
func Defaults() Config {
	return Config{
		Port:          "8080",
		StorageDriver: StoragePostgres,
		JWTIssuer:     "iptrack-backend",
		JWTTTL:        24 * time.Hour,
		BcryptCost:    10,
		CORSOrigins:   []string{"*"},
		GeoProvider:   GeoProviderIPAPI,
		GeoEndpoint:   "https://ipapi.co/{ip}/json/",
		GeoTimeout:    5 * time.Second,
		GeoCacheTTL:   time.Hour,
		EventsBackend: EventsLog,
		EventsTopic:   "ip.tracked",
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// Load resolves configuration in priority order: defaults, then the YAML file at path
// (skipped when path is empty or missing), then environment variables.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := applyFile(&cfg, raw); err != nil {
				return Config{}, err
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	cfg.Port = fallback(f.Server.Port, cfg.Port)
	if len(f.Server.CORSOrigins) > 0 {
		cfg.CORSOrigins = f.Server.CORSOrigins
	}
	if f.Server.ProtectTracking != nil {
		cfg.ProtectTracking = *f.Server.ProtectTracking
	}
	if f.Server.TrustProxyHeaders != nil {
		cfg.TrustProxyHeaders = *f.Server.TrustProxyHeaders
	}

	cfg.StorageDriver = fallback(f.Storage.Driver, cfg.StorageDriver)
	cfg.DatabaseURL = fallback(f.Storage.DatabaseURL, cfg.DatabaseURL)

	cfg.JWTIssuer = fallback(f.Auth.JWTIssuer, cfg.JWTIssuer)
	if f.Auth.TTLMinutes > 0 {
		cfg.JWTTTL = time.Duration(f.Auth.TTLMinutes) * time.Minute
	}
	if f.Auth.BcryptCost > 0 {
		cfg.BcryptCost = f.Auth.BcryptCost
	}

	cfg.GeoProvider = fallback(f.Geo.Provider, cfg.GeoProvider)
	cfg.GeoEndpoint = fallback(f.Geo.Endpoint, cfg.GeoEndpoint)
	if f.Geo.TimeoutSeconds > 0 {
		cfg.GeoTimeout = time.Duration(f.Geo.TimeoutSeconds) * time.Second
	}
	cfg.MaxMindCityDB = fallback(f.Geo.CityDB, cfg.MaxMindCityDB)
	cfg.MaxMindASNDB = fallback(f.Geo.ASNDB, cfg.MaxMindASNDB)
	cfg.MaxMindAnonymousDB = fallback(f.Geo.AnonymousDB, cfg.MaxMindAnonymousDB)
	cfg.RedisURL = fallback(f.Geo.RedisURL, cfg.RedisURL)
	if f.Geo.CacheTTLSeconds > 0 {
		cfg.GeoCacheTTL = time.Duration(f.Geo.CacheTTLSeconds) * time.Second
	}

	cfg.EventsBackend = fallback(f.Events.Backend, cfg.EventsBackend)
	cfg.EventsTopic = fallback(f.Events.Topic, cfg.EventsTopic)
	if len(f.Events.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Events.KafkaBrokers
	}
	cfg.AMQPURL = fallback(f.Events.AMQPURL, cfg.AMQPURL)

	cfg.LogLevel = fallback(f.Log.Level, cfg.LogLevel)
	cfg.LogFormat = fallback(f.Log.Format, cfg.LogFormat)
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = fallback(os.Getenv("PORT"), cfg.Port)
	cfg.StorageDriver = strings.ToLower(fallback(os.Getenv("STORAGE_DRIVER"), cfg.StorageDriver))
	cfg.DatabaseURL = fallback(os.Getenv("DATABASE_URL"), cfg.DatabaseURL)

	cfg.JWTSecret = fallback(os.Getenv("JWT_SECRET"), cfg.JWTSecret)
	cfg.JWTIssuer = fallback(os.Getenv("JWT_ISSUER"), cfg.JWTIssuer)
	if minutes := envInt("JWT_TTL_MINUTES", 0); minutes > 0 {
		cfg.JWTTTL = time.Duration(minutes) * time.Minute
	}
	if cost := envInt("BCRYPT_COST", 0); cost > 0 {
		cfg.BcryptCost = cost
	}

	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); raw != "" {
		cfg.CORSOrigins = parseCSV(raw)
	}
	cfg.ProtectTracking = envBool("PROTECT_TRACKING", cfg.ProtectTracking)
	cfg.TrustProxyHeaders = envBool("TRUST_PROXY_HEADERS", cfg.TrustProxyHeaders)

	cfg.GeoProvider = strings.ToLower(fallback(os.Getenv("GEO_PROVIDER"), cfg.GeoProvider))
	cfg.GeoEndpoint = fallback(os.Getenv("GEO_ENDPOINT"), cfg.GeoEndpoint)
	if secs := envInt("GEO_TIMEOUT_SECONDS", 0); secs > 0 {
		cfg.GeoTimeout = time.Duration(secs) * time.Second
	}
	cfg.MaxMindCityDB = fallback(os.Getenv("MAXMIND_CITY_DB"), cfg.MaxMindCityDB)
	cfg.MaxMindASNDB = fallback(os.Getenv("MAXMIND_ASN_DB"), cfg.MaxMindASNDB)
	cfg.MaxMindAnonymousDB = fallback(os.Getenv("MAXMIND_ANONYMOUS_DB"), cfg.MaxMindAnonymousDB)
	cfg.RedisURL = fallback(os.Getenv("REDIS_URL"), cfg.RedisURL)
	if secs := envInt("GEO_CACHE_TTL_SECONDS", 0); secs > 0 {
		cfg.GeoCacheTTL = time.Duration(secs) * time.Second
	}

	cfg.EventsBackend = strings.ToLower(fallback(os.Getenv("EVENTS_BACKEND"), cfg.EventsBackend))
	cfg.EventsTopic = fallback(os.Getenv("EVENTS_TOPIC"), cfg.EventsTopic)
	if raw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); raw != "" {
		cfg.KafkaBrokers = parseCSV(raw)
	}
	cfg.AMQPURL = fallback(os.Getenv("AMQP_URL"), cfg.AMQPURL)

	cfg.LogLevel = strings.ToLower(fallback(os.Getenv("LOG_LEVEL"), cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(fallback(os.Getenv("LOG_FORMAT"), cfg.LogFormat))
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.GeoProvider {
	case GeoProviderIPAPI:
		if !strings.Contains(c.GeoEndpoint, "{ip}") {
			return errors.New("GEO_ENDPOINT must contain an {ip} placeholder")
		}
	case GeoProviderMaxMind:
		if c.MaxMindCityDB == "" {
			return errors.New("MAXMIND_CITY_DB is required for the maxmind provider")
		}
	default:
		return fmt.Errorf("unknown GEO_PROVIDER %q", c.GeoProvider)
	}
	switch c.EventsBackend {
	case EventsLog:
	case EventsKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required for the kafka events backend")
		}
	case EventsAMQP:
		if c.AMQPURL == "" {
			return errors.New("AMQP_URL is required for the amqp events backend")
		}
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.EventsBackend)
	}
	return nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
