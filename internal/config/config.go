package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // For trimming and lowercasing values

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort     string // Application port
	DBDriver    string // Database driver: mysql or postgres
	DBUser      string // Database user
	DBPassword  string // Database password
	DBHost      string // Database host
	DBPort      string // Database port
	DBName      string // Database name
	DatabaseURL string // Full postgres DSN, overrides the split DB_* values
	JWTSecret   string // JWT secret key
	RedisAddr   string // Redis server address
	RedisPass   string // Redis password
	RedisDB     int    // Redis database number
	IsProd      bool   // Is production environment

	StorageDir    string // Root directory of the blob buckets
	PublicBaseURL string // Base URL used to build public object URLs

	PokemonTCGAPIKey string // Pokémon TCG API key (optional)
	JustTCGAPIKey    string // JustTCG API key
	VisionAPIURL     string // OpenAI-compatible chat completions endpoint
	VisionAPIKey     string // Vision endpoint bearer key
	VisionModel      string // Multimodal model name

	LookupRatePerSec int    // Lookup requests per second per user
	LookupBurst      int    // Lookup burst size per user
	OfferSweepSpec   string // Cron spec of the offer expiry sweeper
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		AppPort:     envString("APP_PORT", "8080"),
		DBDriver:    strings.ToLower(envString("DB_DRIVER", "mysql")),
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBHost:      envString("DB_HOST", "127.0.0.1"),
		DBPort:      os.Getenv("DB_PORT"),
		DBName:      os.Getenv("DB_NAME"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		RedisAddr:   envString("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPass:   os.Getenv("REDIS_PASS"),
		RedisDB:     envInt("REDIS_DB", 0),
		IsProd:      envBool("IS_PROD", false),

		StorageDir:    envString("STORAGE_DIR", "./data/storage"),
		PublicBaseURL: strings.TrimRight(envString("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		PokemonTCGAPIKey: os.Getenv("POKEMON_TCG_API_KEY"),
		JustTCGAPIKey:    os.Getenv("JUSTTCG_API_KEY"),
		VisionAPIURL:     envString("VISION_API_URL", "https://api.openai.com/v1/chat/completions"),
		VisionAPIKey:     os.Getenv("VISION_API_KEY"),
		VisionModel:      envString("VISION_MODEL", "gpt-4o-mini"),

		LookupRatePerSec: envInt("LOOKUP_RATE_PER_SEC", 2),
		LookupBurst:      envInt("LOOKUP_BURST", 5),
		OfferSweepSpec:   envString("OFFER_SWEEP_SPEC", "@every 1m"),
	}
}

// DSN builds the driver specific data source name
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		if c.DatabaseURL != "" {
			return c.DatabaseURL // Explicit DSN wins
		}
		port := c.DBPort
		if port == "" {
			port = "5432"
		}
		return "host=" + c.DBHost + " user=" + c.DBUser + " password=" + c.DBPassword +
			" dbname=" + c.DBName + " port=" + port + " sslmode=disable TimeZone=UTC"
	}
	port := c.DBPort
	if port == "" {
		port = "3306"
	}
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + port + ")/" + c.DBName + "?parseTime=true"
}

func envString(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(name)))
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
