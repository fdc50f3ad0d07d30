package config

import (
	"fmt"     // Error formatting
	"os"      // For environment variables
	"strconv" // For string to int conversion

	"github.com/joho/godotenv" // For loading .env files

	"account_manager/internal/ledger"  // Default program id
	"account_manager/internal/pubkey"  // Address parsing
	"account_manager/internal/runtime" // Default rent parameters
)

// Storage backends
const (
	BackendMemory = "memory" // In-process maps
	BackendMySQL  = "mysql"  // GORM over MySQL
	BackendPebble = "pebble" // Local pebble database
)

// Config holds the application configuration
type Config struct {
	AppPort              string        // Application port
	DBUser               string        // Database user
	DBPassword           string        // Database password
	DBHost               string        // Database host
	DBPort               string        // Database port
	DBName               string        // Database name
	JWTSecret            string        // JWT secret key
	RedisAddr            string        // Redis server address, empty disables caching
	RedisPass            string        // Redis password
	RedisDB              int           // Redis database number
	IsProd               bool          // Is production environment
	StoreBackend         string        // memory, mysql or pebble
	PebblePath           string        // Directory of the pebble database
	ProgramID            pubkey.Pubkey // Program the records are derived under
	Rent                 runtime.Rent  // Rent-exempt reserve parameters
	OperatorUser         string        // Operator login name
	OperatorPasswordHash string        // Bcrypt hash of the operator password
}

// DSN returns the MySQL Data Source Name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	cfg := &Config{
		AppPort:              getEnv("APP_PORT", "8080"),             // Application port
		DBUser:               os.Getenv("DB_USER"),                   // Database user
		DBPassword:           os.Getenv("DB_PASSWORD"),               // Database password
		DBHost:               os.Getenv("DB_HOST"),                   // Database host
		DBPort:               os.Getenv("DB_PORT"),                   // Database port
		DBName:               os.Getenv("DB_NAME"),                   // Database name
		JWTSecret:            os.Getenv("JWT_SECRET"),                // JWT secret key
		RedisAddr:            os.Getenv("REDIS_ADDR"),                // Redis server address
		RedisPass:            os.Getenv("REDIS_PASS"),                // Redis password
		RedisDB:              redisDB,                                // Redis database number
		IsProd:               os.Getenv("IS_PROD") == "true",         // Is production environment
		StoreBackend:         getEnv("STORE_BACKEND", BackendMemory), // Storage backend
		PebblePath:           getEnv("PEBBLE_PATH", "data/ledger"),   // Pebble directory
		ProgramID:            ledger.DefaultProgramID,                // Program id
		Rent:                 runtime.DefaultRent(),                  // Rent parameters
		OperatorUser:         getEnv("OPERATOR_USER", "operator"),    // Operator login name
		OperatorPasswordHash: os.Getenv("OPERATOR_PASSWORD_HASH"),    // Operator password hash
	}
	// Override the program id if configured
	if v := os.Getenv("PROGRAM_ID"); v != "" {
		id, err := pubkey.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("PROGRAM_ID: %w", err)
		}
		cfg.ProgramID = id
	}
	// Override rent parameters if configured
	if v := os.Getenv("RENT_LAMPORTS_PER_BYTE_YEAR"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("RENT_LAMPORTS_PER_BYTE_YEAR: %w", err)
		}
		cfg.Rent.LamportsPerByteYear = n
	}
	if v := os.Getenv("RENT_EXEMPTION_YEARS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("RENT_EXEMPTION_YEARS: %w", err)
		}
		cfg.Rent.ExemptionYears = n
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the server cannot run with
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendMySQL, BackendPebble:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if err := c.Rent.Validate(); err != nil {
		return fmt.Errorf("RENT_LAMPORTS_PER_BYTE_YEAR and RENT_EXEMPTION_YEARS: %w", err)
	}
	return nil
}

// getEnv returns the variable or a fallback when unset
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
