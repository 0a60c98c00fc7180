package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Port            int
		DebugHost       string
		ReadTimeout     time.Duration
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string // "postgres" | "memory"
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
	}

	// StoreConfig is the document store retry policy.
	StoreConfig struct {
		MaxRetries int
		RetryDelay time.Duration
	}

	AIConfig struct {
		Endpoint string
		Timeout  time.Duration
	}

	Config struct {
		Env      string
		Debug    bool
		TestMode bool
		AppName  string
		Build    string

		SecretKey          []byte
		GoogleClientID     string
		JWTExpirationDelta time.Duration

		FrontendBaseURL    string
		StudentPageSize    int
		StudentLoadTimeout time.Duration
		SessionCacheTTL    time.Duration

		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Store    StoreConfig
		AI       AIConfig
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewConfig loads the app configuration from the environment,
// falling back to sane development defaults.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("appName", "Ubao")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "w3=l0ve-t34ch1ng&sh4r1ng!b0ards(dev-only)")
	v.SetDefault("googleClientId", "")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("frontendBaseUrl", "http://localhost:3000")
	v.SetDefault("studentPageSize", 20)
	v.SetDefault("studentLoadTimeout", 10*time.Second)
	v.SetDefault("sessionCacheTtl", 30*time.Second)

	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("serverHost", "0.0.0.0")
	v.SetDefault("serverPort", 8080)
	v.SetDefault("serverDebugHost", "0.0.0.0:8081")
	v.SetDefault("serverReadTimeout", 5*time.Second)
	v.SetDefault("serverShutdownTimeout", 20*time.Second)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbName", "ubao")
	v.SetDefault("dbUser", "ubao")
	v.SetDefault("dbPassword", "ubao")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("redisEnabled", false)
	v.SetDefault("redisAddr", "localhost:6379")
	v.SetDefault("redisPassword", "")
	v.SetDefault("redisDb", 0)

	v.SetDefault("storeMaxRetries", 3)
	v.SetDefault("storeRetryDelay", 100*time.Millisecond)

	v.SetDefault("aiEndpoint", "")
	v.SetDefault("aiTimeout", 30*time.Second)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:      env,
		Debug:    v.GetBool("debug"),
		TestMode: env == "TEST",
		AppName:  v.GetString("appName"),
		Build:    v.GetString("build"),

		SecretKey:          []byte(v.GetString("secretKey")),
		GoogleClientID:     v.GetString("googleClientId"),
		JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),

		FrontendBaseURL:    v.GetString("frontendBaseUrl"),
		StudentPageSize:    v.GetInt("studentPageSize"),
		StudentLoadTimeout: v.GetDuration("studentLoadTimeout"),
		SessionCacheTTL:    v.GetDuration("sessionCacheTtl"),

		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),

		Server: ServerConfig{
			Host:            v.GetString("serverHost"),
			Port:            v.GetInt("serverPort"),
			DebugHost:       v.GetString("serverDebugHost"),
			ReadTimeout:     v.GetDuration("serverReadTimeout"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetInt("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redisEnabled"),
			Addr:     v.GetString("redisAddr"),
			Password: v.GetString("redisPassword"),
			DB:       v.GetInt("redisDb"),
		},
		Store: StoreConfig{
			MaxRetries: v.GetInt("storeMaxRetries"),
			RetryDelay: v.GetDuration("storeRetryDelay"),
		},
		AI: AIConfig{
			Endpoint: v.GetString("aiEndpoint"),
			Timeout:  v.GetDuration("aiTimeout"),
		},
	}
	return conf
}
