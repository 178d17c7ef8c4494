package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
	PayFast    PayFastConfig    `mapstructure:"payfast" validate:"required"`
	Email      EmailConfig      `mapstructure:"email"`
	S3         S3Config         `mapstructure:"s3"`
	Webhook    Webhook          `mapstructure:"webhook"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Auth       AuthConfig       `mapstructure:"auth"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	Cache      CacheConfig      `mapstructure:"cache"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
	// ITNRateLimit caps inbound gateway notifications per second.
	ITNRateLimit float64 `mapstructure:"itn_rate_limit"`
	ITNBurst     int     `mapstructure:"itn_burst"`
	// TrustedProxies may set X-Forwarded-For. Empty trusts no proxy and the
	// peer address is the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	DBName                 string
	SSLMode                string
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `mapstructure:"conn_max_lifetime_minutes"`
	// SerializationRetries bounds how often a transaction is replayed after a 40001.
	SerializationRetries uint64 `mapstructure:"serialization_retries"`
}

// BillingConfig drives the subscription billing engine
type BillingConfig struct {
	// Timezone is the business location every calendar decision is made in.
	Timezone           string           `validate:"required"`
	PrebillWindowDays  int              `mapstructure:"prebill_window_days" validate:"min=1,max=27"`
	CutoffRule         types.CutoffRule `mapstructure:"cutoff_rule"`
	SchedulerWorkers   int              `mapstructure:"scheduler_workers"`
	EmailRetryDelay    time.Duration    `mapstructure:"email_retry_delay"`
	InvoiceEmailPDF    bool             `mapstructure:"invoice_email_pdf"`
	InvoiceNumberStart int64            `mapstructure:"invoice_number_start"`
}

// Location loads the business timezone
func (c BillingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// PayFastConfig holds the hosted gateway credentials and trust settings
type PayFastConfig struct {
	MerchantID  string `mapstructure:"merchant_id" validate:"required"`
	MerchantKey string `mapstructure:"merchant_key" validate:"required"`
	// Passphrase is only ever used locally to salt signatures.
	Passphrase string `mapstructure:"passphrase"`
	Sandbox    bool   `mapstructure:"sandbox"`
	ReturnURL  string `mapstructure:"return_url"`
	CancelURL  string `mapstructure:"cancel_url"`
	NotifyURL  string `mapstructure:"notify_url"`
	// ValidHosts are resolved to build the source-IP allow-list.
	ValidHosts      []string      `mapstructure:"valid_hosts"`
	DNSCacheTTL     time.Duration `mapstructure:"dns_cache_ttl"`
	ValidateTimeout time.Duration `mapstructure:"validate_timeout"`
	// SkipSourceIPCheck is for local development behind tunnels only.
	SkipSourceIPCheck bool `mapstructure:"skip_source_ip_check"`
}

// ProcessURL returns the checkout form action for the configured mode
func (c PayFastConfig) ProcessURL() string {
	return c.baseURL() + "/eng/process"
}

// ValidateURL returns the server-to-server confirmation endpoint
func (c PayFastConfig) ValidateURL() string {
	return c.baseURL() + "/eng/query/validate"
}

func (c PayFastConfig) baseURL() string {
	if c.Sandbox {
		return "https://sandbox.payfast.co.za"
	}
	return "https://www.payfast.co.za"
}

// Mode returns the gateway mode stored on every payment session
func (c PayFastConfig) Mode() types.GatewayMode {
	if c.Sandbox {
		return types.GatewayModeSandbox
	}
	return types.GatewayModeLive
}

type EmailConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	APIKey      string `mapstructure:"api_key"`
	FromAddress string `mapstructure:"from_address"`
	ReplyTo     string `mapstructure:"reply_to"`
	// PaymentLinkBase is the storefront page that starts a checkout for an invoice.
	PaymentLinkBase string `mapstructure:"payment_link_base"`
}

type S3Config struct {
	Enabled   bool          `mapstructure:"enabled"`
	Region    string        `mapstructure:"region"`
	Bucket    string        `mapstructure:"bucket"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	URLExpiry time.Duration `mapstructure:"url_expiry"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type AuthConfig struct {
	Secret string `mapstructure:"secret"`
	// AdminRole is the role claim required on admin console calls.
	AdminRole string `mapstructure:"admin_role"`
	// CronKey authorises the daily scheduler trigger.
	CronKey string `mapstructure:"cron_key"`
}

// CacheConfig selects where gateway host resolutions are kept. Replicas
// behind a load balancer share them through redis.
type CacheConfig struct {
	Type  types.CacheType `mapstructure:"type"`
	Redis RedisConfig     `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type HTTPClientConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryMax     int           `mapstructure:"retry_max"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional; real deployments inject env vars directly
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/petalpost")

	v.SetEnvPrefix("PETALPOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.itn_rate_limit", 20)
	v.SetDefault("server.itn_burst", 40)
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 30)
	v.SetDefault("postgres.serialization_retries", 5)
	v.SetDefault("billing.timezone", "Africa/Johannesburg")
	v.SetDefault("billing.prebill_window_days", 5)
	v.SetDefault("billing.cutoff_rule", types.CutoffRuleNextMondayOnly)
	v.SetDefault("billing.scheduler_workers", 4)
	v.SetDefault("billing.email_retry_delay", 5*time.Second)
	v.SetDefault("billing.invoice_number_start", 1000)
	v.SetDefault("payfast.valid_hosts", []string{
		"www.payfast.co.za",
		"sandbox.payfast.co.za",
		"w1w.payfast.co.za",
		"w2w.payfast.co.za",
	})
	v.SetDefault("payfast.dns_cache_ttl", 15*time.Minute)
	v.SetDefault("payfast.validate_timeout", 10*time.Second)
	v.SetDefault("s3.url_expiry", 7*24*time.Hour)
	v.SetDefault("webhook.topic", "webhooks")
	v.SetDefault("webhook.pubsub", types.MemoryPubSub)
	v.SetDefault("webhook.max_retries", 3)
	v.SetDefault("webhook.initial_interval", time.Second)
	v.SetDefault("webhook.max_interval", 10*time.Second)
	v.SetDefault("webhook.multiplier", 2.0)
	v.SetDefault("webhook.max_elapsed_time", 2*time.Minute)
	v.SetDefault("auth.admin_role", "admin")
	v.SetDefault("http_client.timeout", 15*time.Second)
	v.SetDefault("http_client.retry_max", 2)
	v.SetDefault("http_client.retry_wait_min", 500*time.Millisecond)
	v.SetDefault("http_client.retry_wait_max", 3*time.Second)
	v.SetDefault("cache.type", types.CacheTypeMemory)
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("cache.redis.prefix", "petalpost:")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Billing.CutoffRule != "" {
		if err := c.Billing.CutoffRule.Validate(); err != nil {
			return err
		}
	}
	if c.Cache.Type != "" {
		if err := c.Cache.Type.Validate(); err != nil {
			return err
		}
	}
	if c.Cache.Type == types.CacheTypeRedis && c.Cache.Redis.Address == "" {
		return errors.New("cache.redis.address is required for the redis cache")
	}
	if _, err := c.Billing.Location(); err != nil {
		return fmt.Errorf("invalid billing timezone %q: %w", c.Billing.Timezone, err)
	}
	return nil
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts and tests
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080", ITNRateLimit: 20, ITNBurst: 40},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Billing: BillingConfig{
			Timezone:           "Africa/Johannesburg",
			PrebillWindowDays:  5,
			CutoffRule:         types.CutoffRuleNextMondayOnly,
			SchedulerWorkers:   4,
			EmailRetryDelay:    5 * time.Second,
			InvoiceNumberStart: 1000,
		},
		PayFast: PayFastConfig{
			MerchantID:      "10000100",
			MerchantKey:     "46f0cd694581a",
			Sandbox:         true,
			ValidHosts:      []string{"www.payfast.co.za", "sandbox.payfast.co.za", "w1w.payfast.co.za", "w2w.payfast.co.za"},
			DNSCacheTTL:     15 * time.Minute,
			ValidateTimeout: 10 * time.Second,
		},
		Webhook: Webhook{
			Topic:  "webhooks",
			PubSub: types.MemoryPubSub,
		},
		Auth:  AuthConfig{AdminRole: "admin"},
		Cache: CacheConfig{Type: types.CacheTypeMemory},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
