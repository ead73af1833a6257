package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAppName         = "CongoPay Multisig"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultEventsChannel   = "multisig:events"
	defaultLoginRateLimit  = 5
	devJWTSecret           = "dev-secret-change-me"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration.
type Config struct {
	AppName        string
	Env            string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
	JWTSecret      string
	AccessTokenTTL time.Duration
	ReservePending bool
	EventsChannel  string
	LoginRateLimit int
}

// Load reads configuration from the environment, optionally layered over the
// YAML file named by CONFIG_FILE.
func Load() (Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	v.AutomaticEnv()
	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault(shutdownDurationEnvVar, defaultShutdownDelay.String())
	v.SetDefault(idemTTLDurEnvVar, defaultIdempotencyTTL.String())
	v.SetDefault("ACCESS_TOKEN_TTL", defaultAccessTokenTTL.String())
	v.SetDefault("RESERVE_PENDING", false)
	v.SetDefault("EVENTS_CHANNEL", defaultEventsChannel)
	v.SetDefault("LOGIN_RATE_LIMIT", defaultLoginRateLimit)
	// Bind keys that have no default so file values and env values resolve the same way.
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "JWT_SECRET", idemTTLSecondsEnvVar, shutdownSecondsEnvVar} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, err
		}
	}

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", file, err)
		}
	}

	cfg := Config{
		AppName:        v.GetString("APP_NAME"),
		Env:            v.GetString("APP_ENV"),
		Port:           v.GetString("PORT"),
		LogLevel:       strings.ToLower(v.GetString("LOG_LEVEL")),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		RedisURL:       v.GetString("REDIS_URL"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		ReservePending: v.GetBool("RESERVE_PENDING"),
		EventsChannel:  v.GetString("EVENTS_CHANNEL"),
		LoginRateLimit: v.GetInt("LOGIN_RATE_LIMIT"),
	}

	var err error
	if cfg.ShutdownPeriod, err = duration(v, shutdownSecondsEnvVar, shutdownDurationEnvVar); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = duration(v, idemTTLSecondsEnvVar, idemTTLDurEnvVar); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL, err = duration(v, "", "ACCESS_TOKEN_TTL"); err != nil {
		return Config{}, err
	}

	if cfg.IsDev() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = devJWTSecret
		}
		return cfg, nil
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}
	return cfg, nil
}

// duration resolves a period given either as whole seconds or as a Go duration string.
// The seconds form wins when both are set.
func duration(v *viper.Viper, secondsKey, durationKey string) (time.Duration, error) {
	if secondsKey != "" {
		if raw := v.GetString(secondsKey); raw != "" {
			seconds := v.GetInt(secondsKey)
			if seconds <= 0 {
				return 0, fmt.Errorf("invalid %s: %q", secondsKey, raw)
			}
			return time.Duration(seconds) * time.Second, nil
		}
	}
	raw := v.GetString(durationKey)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
	}
	return d, nil
}

// IsDev reports whether the service may fall back to in-memory backends.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
