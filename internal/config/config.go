// Package config loads the process configuration from the environment.
package config

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	lc "github.com/os2mo/loracache"
)

// DefaultEnvFiles are loaded, when present, before the environment is parsed.
var DefaultEnvFiles = []string{".env", ".env.local"}

type AuthOptions struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Server       string `env:"AUTH_SERVER" envDefault:"http://keycloak:8080/auth" validate:"omitempty,url"`
	Realm        string `env:"AUTH_REALM" envDefault:"mo"`
}

// TokenURL is the client credentials endpoint of the realm.
func (a AuthOptions) TokenURL() string {
	return strings.TrimRight(a.Server, "/") + "/realms/" + a.Realm + "/protocol/openid-connect/token"
}

type RetryOptions struct {
	Multiplier float64       `env:"RETRY_MULTIPLIER" envDefault:"1" validate:"gt=0"`
	MinWait    time.Duration `env:"RETRY_MIN_WAIT" envDefault:"4s"`
	MaxWait    time.Duration `env:"RETRY_MAX_WAIT" envDefault:"10s" validate:"gtefield=MinWait"`
	Deadline   time.Duration `env:"RETRY_DEADLINE" envDefault:"120s"`
}

type CacheOptions struct {
	WorkDir  string        `env:"CACHE_WORK_DIR" envDefault:"tmp"`
	RedisURL string        `env:"CACHE_REDIS_URL"`
	TTL      time.Duration `env:"CACHE_TTL" envDefault:"24h"`
}

type Config struct {
	Auth  AuthOptions
	Retry RetryOptions
	Cache CacheOptions

	RegistryURL string `env:"MOX_BASE" envDefault:"http://mo:5000/lora" validate:"required,url"`
	GraphQLURL  string `env:"MO_GRAPHQL_URL" envDefault:"http://mo:5000/graphql/v22" validate:"required,url"`
	DARURL      string `env:"DAR_URL" envDefault:"https://api.dataforsyningen.dk" validate:"omitempty,url"`
	PushURL     string `env:"PUSHGATEWAY_URL" validate:"omitempty,url"`

	PageSize    int           `env:"GRAPHQL_PAGE_SIZE" envDefault:"300" validate:"min=1"`
	BatchSize   int           `env:"LORA_BATCH_SIZE" envDefault:"96" validate:"min=1"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"5m"`
	UseNewCache bool          `env:"USE_NEW_CACHE" envDefault:"false"`

	PrimaryManagerResponsibility string   `env:"PRIMARY_MANAGER_RESPONSIBILITY" validate:"omitempty,uuid"`
	PrimaryEngagementClasses     []string `env:"PRIMARY_ENGAGEMENT_CLASSES" envSeparator:"," validate:"dive,uuid"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
}

// Load reads the env files that exist, parses the environment and validates it.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = DefaultEnvFiles
	}

	var existing []string
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return nil, errors.Wrap(err, "load env files")
		}
	}

	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}

	if err := validator.New().Struct(c); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return c, nil
}

// Settings builds the value object threaded through one populate call.
func (c *Config) Settings() lc.Settings {
	return lc.Settings{
		RegistryURL:                  c.RegistryURL,
		GraphQLURL:                   c.GraphQLURL,
		PageSize:                     c.PageSize,
		BatchSize:                    c.BatchSize,
		UseNewCache:                  c.UseNewCache,
		PrimaryManagerResponsibility: c.PrimaryManagerResponsibility,
		PrimaryEngagementClasses:     append([]string(nil), c.PrimaryEngagementClasses...),
		Retry: lc.RetryPolicy{
			Multiplier: c.Retry.Multiplier,
			MinWait:    c.Retry.MinWait,
			MaxWait:    c.Retry.MaxWait,
			Deadline:   c.Retry.Deadline,
		},
		HTTPTimeout: c.HTTPTimeout,
	}.WithDefaults()
}

// HTTPClient returns a client authenticating with client credentials when a
// client id is configured, and a plain client otherwise.
func (c *Config) HTTPClient(ctx context.Context) *http.Client {
	if c.Auth.ClientID == "" {
		return &http.Client{Timeout: c.HTTPTimeout}
	}

	cc := clientcredentials.Config{
		ClientID:     c.Auth.ClientID,
		ClientSecret: c.Auth.ClientSecret,
		TokenURL:     c.Auth.TokenURL(),
	}
	client := cc.Client(ctx)
	client.Timeout = c.HTTPTimeout

	return client
}

// RedisClient returns nil when no redis url is configured.
func (c *Config) RedisClient() (redis.UniversalClient, error) {
	if c.Cache.RedisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(c.Cache.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "redis url")
	}

	return redis.NewClient(opts), nil
}

// Persistence chains the work dir and, when configured, redis.
func (c *Config) Persistence() (*lc.Persistence[lc.Blob, lc.BlobID], error) {
	providers := []lc.Provider[lc.Blob, lc.BlobID]{lc.NewFileProvider(c.Cache.WorkDir)}

	rdb, err := c.RedisClient()
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		providers = append(providers, lc.NewRedisProvider(rdb, ""))
	}

	return lc.NewPersistenceBuilder[lc.Blob, lc.BlobID](lc.ModelVersion, providers...).
		WithTtl(c.Cache.TTL).
		Build(), nil
}
