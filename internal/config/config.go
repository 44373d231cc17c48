package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations,
// counters and costs.
type Config struct {
	Env              string // application environment (e.g. "dev", "prod")
	Port             string // HTTP port to listen on
	DBUser           string // database username
	DBPass           string // database password (optional)
	DBHost           string // database host address
	DBPort           string // database port number
	DBName           string // database name
	SessionTTLMin    int    // session lifetime in minutes
	SessionRotateMin int    // idle minutes after which the session id is rotated
	LockoutThreshold int    // consecutive failed logins before the account locks
	LockoutMinutes   int    // lockout duration in minutes
	RememberTTLDays  int    // remember-me token lifetime in days
	BcryptCost       int    // bcrypt cost for password hashing
	ResetSecret      string // secret used to sign password reset tokens
	ResetTTLMin      int    // password reset token lifetime in minutes
	CookieSecure     bool   // mark the session cookie Secure (behind TLS)
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:              must("APP_ENV"),      // environment (dev/test/prod)
		Port:             must("APP_PORT"),     // port to bind the HTTP server
		DBUser:           must("DB_USER"),      // database user
		DBPass:           os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:           must("DB_HOST"),      // database host
		DBPort:           must("DB_PORT"),      // database port
		DBName:           must("DB_NAME"),      // database name
		SessionTTLMin:    intOr("SESSION_TTL_MIN", 720),
		SessionRotateMin: intOr("SESSION_ROTATE_MIN", 5),
		LockoutThreshold: intOr("LOCKOUT_THRESHOLD", 5),
		LockoutMinutes:   intOr("LOCKOUT_MINUTES", 15),
		RememberTTLDays:  intOr("REMEMBER_TTL_DAYS", 30),
		BcryptCost:       mustInt("BCRYPT_COST"), // bcrypt cost factor
		ResetSecret:      must("RESET_SECRET"),   // secret for password reset tokens
		ResetTTLMin:      intOr("RESET_TTL_MIN", 30),
		CookieSecure:     os.Getenv("APP_ENV") == "prod",
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// intOr reads an optional integer variable, falling back to a default when
// unset.  A present but malformed value is still fatal.
func intOr(key string, def int) int {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
