package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	DBPath      string
	ContentPath string
	LogLevel    string

	RelayURL      string
	RelayCode     string
	RelayNextURL  string
	FallbackEmail string
	// RelayTimeout bounds a single relay request. Zero leaves the transport default.
	RelayTimeout time.Duration

	ContactDecay   time.Duration
	InterviewDecay time.Duration
	PageTTL        time.Duration
}

// Load reads .env (if present) and then the process environment. A .env
// that exists but does not parse is an error.
// Values already set in the environment win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Port:          getenv("PORT", "8080"),
		GinMode:       os.Getenv("GIN_MODE"),
		DBPath:        getenv("DB_PATH", "portfolio.sqlite"),
		ContentPath:   os.Getenv("CONTENT_PATH"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		RelayURL:      strings.TrimRight(getenv("RELAY_URL", "https://formsubmit.co"), "/"),
		RelayCode:     getenv("RELAY_CODE", "2c2fbf23f8d790dc32674b62e3b5128c"),
		RelayNextURL:  getenv("RELAY_NEXT_URL", "https://formsubmit.co/thankyou"),
		FallbackEmail: getenv("FALLBACK_EMAIL", "dilipbca99@gmail.com"),
	}

	var err error
	if cfg.RelayTimeout, err = duration("RELAY_TIMEOUT", 15*time.Second); err != nil {
		return cfg, err
	}
	if cfg.ContactDecay, err = duration("CONTACT_STATUS_DECAY", 8*time.Second); err != nil {
		return cfg, err
	}
	if cfg.InterviewDecay, err = duration("INTERVIEW_STATUS_DECAY", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.PageTTL, err = duration("PAGE_TTL", 30*time.Minute); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func (cfg Config) Validate() error {
	if cfg.RelayCode == "" {
		return fmt.Errorf("RELAY_CODE must not be empty")
	}
	if cfg.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if cfg.ContactDecay <= 0 || cfg.InterviewDecay <= 0 {
		return fmt.Errorf("status decay must be positive")
	}
	if cfg.PageTTL <= 0 {
		return fmt.Errorf("PAGE_TTL must be positive")
	}
	return nil
}

func (cfg Config) Addr() string {
	return net.JoinHostPort("", cfg.Port)
}

// RelayEndpoint is the full URL submissions are posted to.
func (cfg Config) RelayEndpoint() string {
	return cfg.RelayURL + "/" + cfg.RelayCode
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
