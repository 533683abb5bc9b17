package configuration

import (
	"fmt"
	"os"
	"strconv"

	"insight-hub/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App         `json:"app"`
	Database    Database    `json:"database"`
	RedisClient RedisClient `json:"redisClient"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	OAuth       OAuth       `json:"oauth"`
	Analytics   Analytics   `json:"analytics"`
}

type App struct {
	Port        int    `json:"port"`
	SecretKey   string `json:"secretKey"`
	TokenSecret string `json:"tokenSecret"` // encryption secret for stored OAuth tokens
	BaseURL     string `json:"baseURL"`
}

type Database struct {
	Psql  Db `json:"psql"`
	Mssql Db `json:"mssql"`
	Mongo Db `json:"mongo"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisClient struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type Pubsub struct {
	ProjectID string `json:"projectID"`
	Topic     string `json:"topic"`
}

type ServiceBus struct {
	Namespace  string `json:"namespace"`
	AlertQueue string `json:"alertQueue"`
}

// OAuth holds per-provider OAuth client credentials.
type OAuth struct {
	Google   OAuthClient `json:"google"`
	LinkedIn OAuthClient `json:"linkedin"`
}

type OAuthClient struct {
	ClientID     string   `json:"clientId"`
	ClientSecret string   `json:"clientSecret"`
	RedirectURI  string   `json:"redirectURI"`
	Scopes       []string `json:"scopes"`
}

// Analytics tunes the cache tiers and fan-out.
type Analytics struct {
	OnDemandTTLMinutes  int `json:"onDemandTTLMinutes"`  // on-demand "all" entry TTL
	OnDemandStaleSecs   int `json:"onDemandStaleSecs"`   // staleness bound shorter than the TTL
	SnapshotTTLHours    int `json:"snapshotTTLHours"`    // daily_snapshot entry TTL
	CacheLookbackDays   int `json:"cacheLookbackDays"`   // lookback for per-platform backfill
	FetchTimeoutSeconds int `json:"fetchTimeoutSeconds"` // per-request live fan-out deadline
	FailureAlertMin     int `json:"failureAlertMin"`     // consecutive failures before alerting
}

// LoadConfig reads config[-ENV].json via viper with environment fallbacks and
// returns the assembled configuration. The caller owns the value; nothing is
// kept in package state.
func LoadConfig() (*Config, error) {
	name := "config"
	if env := os.Getenv("ENV"); env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	applyEnv(&c)
	applyDefaults(&c)
	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	return &c, nil
}

func applyEnv(c *Config) {
	setIfEmpty(&c.Database.Psql.Name, "DB_NAME")
	setIfEmpty(&c.Database.Psql.Host, "DB_HOST")
	setIfEmpty(&c.Database.Psql.Port, "DB_PORT")
	setIfEmpty(&c.Database.Psql.User, "DB_USER")
	setIfEmpty(&c.Database.Psql.Password, "DB_PASSWORD")

	setIfEmpty(&c.Database.Mssql.Name, "MSSQL_DB_NAME")
	setIfEmpty(&c.Database.Mssql.Host, "MSSQL_HOST")
	setIfEmpty(&c.Database.Mssql.Port, "MSSQL_PORT")
	setIfEmpty(&c.Database.Mssql.User, "MSSQL_USER")
	setIfEmpty(&c.Database.Mssql.Password, "MSSQL_PASSWORD")

	setIfEmpty(&c.RedisClient.Host, "REDIS_HOST")
	setIfEmpty(&c.RedisClient.Port, "REDIS_PORT")
	setIfEmpty(&c.RedisClient.Password, "REDIS_PASSWORD")

	if v := os.Getenv("SECRET_KEY"); v != "" {
		c.App.SecretKey = v
	}
	if v := os.Getenv("TOKEN_SECRET"); v != "" {
		c.App.TokenSecret = v
	}
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.App.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.App.Port = p
		}
	}

	setIfEmpty(&c.OAuth.Google.ClientID, "GOOGLE_CLIENT_ID")
	setIfEmpty(&c.OAuth.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setIfEmpty(&c.OAuth.Google.RedirectURI, "GOOGLE_REDIRECT_URI")
	setIfEmpty(&c.OAuth.LinkedIn.ClientID, "LINKEDIN_CLIENT_ID")
	setIfEmpty(&c.OAuth.LinkedIn.ClientSecret, "LINKEDIN_CLIENT_SECRET")
	setIfEmpty(&c.OAuth.LinkedIn.RedirectURI, "LINKEDIN_REDIRECT_URI")
}

func applyDefaults(c *Config) {
	if c.App.Port == 0 {
		c.App.Port = 10001
	}
	if c.Database.Psql.Port == "" {
		c.Database.Psql.Port = "5432"
	}
	if c.Database.Mssql.Port == "" {
		c.Database.Mssql.Port = "1433"
	}
	if c.Pubsub.Topic == "" {
		c.Pubsub.Topic = "analytics.fetched"
	}
	if c.ServiceBus.AlertQueue == "" {
		c.ServiceBus.AlertQueue = "sync-alerts"
	}
	if c.Analytics.OnDemandTTLMinutes == 0 {
		c.Analytics.OnDemandTTLMinutes = 60
	}
	if c.Analytics.OnDemandStaleSecs == 0 {
		c.Analytics.OnDemandStaleSecs = 30 * 60
	}
	if c.Analytics.SnapshotTTLHours == 0 {
		c.Analytics.SnapshotTTLHours = 24
	}
	if c.Analytics.CacheLookbackDays == 0 {
		c.Analytics.CacheLookbackDays = 30
	}
	if c.Analytics.FetchTimeoutSeconds == 0 {
		c.Analytics.FetchTimeoutSeconds = 45
	}
	if c.Analytics.FailureAlertMin == 0 {
		c.Analytics.FailureAlertMin = 5
	}
	if c.App.SecretKey == "" {
		logger.GetLogger().Warn("App.SecretKey not set; JWT authentication will fail. Provide SECRET_KEY via environment.")
	}
}

func setIfEmpty(dst *string, env string) {
	if *dst == "" {
		*dst = os.Getenv(env)
	}
}
