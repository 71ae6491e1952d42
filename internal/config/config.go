package config // package config loads application configuration from environment variables

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // containers often ship without a zoneinfo database

	"github.com/rs/zerolog/log"
)

// Config holds the runtime configuration of the API server.  Each field
// corresponds to an environment variable.
type Config struct {
	Env            string   // application environment (e.g. "dev", "prod")
	Port           string   // HTTP port to listen on
	LogLevel       string   // zerolog level name
	DBUser         string   // database username
	DBPass         string   // database password (optional)
	DBHost         string   // database host address
	DBPort         string   // database port number
	DBName         string   // database name
	AutoMigrate    bool     // create tables on boot
	JWTSecret      string   // secret used to sign JWTs
	AccessTTLMin   int      // access token time-to-live in minutes
	RefreshTTLDays int      // refresh token time-to-live in days
	BcryptCost     int      // bcrypt cost for password hashing
	PlansFile      string   // optional YAML plan catalog overriding the embedded one
	ReceiptMaxMB   int      // upper bound for uploaded receipt images
	CORSOrigins    []string // allowed browser origins
	Timezone       string   // IANA zone the slot dates are local to
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must() and missing values end the process.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		AutoMigrate:    envBool("DB_AUTO_MIGRATE", true),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		PlansFile:      os.Getenv("PLANS_FILE"),
		ReceiptMaxMB:   envInt("RECEIPT_MAX_MB", 5),
		CORSOrigins:    splitList(getenv("CORS_ORIGINS", "*")),
		Timezone:       getenv("APP_TIMEZONE", "America/Sao_Paulo"),
	}
}

// IsDev reports whether the server runs in a development environment.
func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "development" || c.Env == "local"
}

// Location resolves Timezone.  An unknown zone ends the process.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("key", "APP_TIMEZONE").Msg("invalid time zone")
	}
	return loc
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatal().Str("key", key).Msg("missing required env var")
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatal().Str("key", key).Str("value", s).Msg("invalid int env var")
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
