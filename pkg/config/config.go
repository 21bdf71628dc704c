package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Razorpay     RazorpayConfig
	Twilio       TwilioConfig
	Geocoder     GeocoderConfig
	Delivery     DeliveryConfig
	Orders       OrdersConfig
	Settlement   SettlementConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if cfg.App.IsProd() {
		if err := cfg.Razorpay.requireKeys(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AGRICONNECT_APP_ENV" required:"true"`
	Port         string `envconfig:"AGRICONNECT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"AGRICONNECT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AGRICONNECT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"AGRICONNECT_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	out := []string{}
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind string `envconfig:"AGRICONNECT_SERVICE_KIND" default:"api"`
	// MetricsAddr is where background workers expose /metrics; blank disables it.
	MetricsAddr string `envconfig:"AGRICONNECT_SERVICE_METRICS_ADDR" default:":9091"`
}

type DBConfig struct {
	DSN    string `envconfig:"AGRICONNECT_DB_DSN"`
	Driver string `envconfig:"AGRICONNECT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"AGRICONNECT_DB_HOST"`
	Port     int    `envconfig:"AGRICONNECT_DB_PORT" default:"5432"`
	User     string `envconfig:"AGRICONNECT_DB_USER"`
	Password string `envconfig:"AGRICONNECT_DB_PASSWORD"`
	Name     string `envconfig:"AGRICONNECT_DB_NAME"`
	SSLMode  string `envconfig:"AGRICONNECT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AGRICONNECT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AGRICONNECT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AGRICONNECT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AGRICONNECT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"AGRICONNECT_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AGRICONNECT_REDIS_URL"`
	Address      string        `envconfig:"AGRICONNECT_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"AGRICONNECT_REDIS_PASSWORD"`
	DB           int           `envconfig:"AGRICONNECT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AGRICONNECT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AGRICONNECT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AGRICONNECT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AGRICONNECT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AGRICONNECT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AGRICONNECT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AGRICONNECT_JWT_ISSUER" default:"agriconnect"`
	ExpirationMinutes int    `envconfig:"AGRICONNECT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AGRICONNECT_AUTO_MIGRATE" default:"false"`
}

type RazorpayConfig struct {
	KeyID     string        `envconfig:"AGRICONNECT_RAZORPAY_KEY_ID"`
	KeySecret string        `envconfig:"AGRICONNECT_RAZORPAY_KEY_SECRET"`
	BaseURL   string        `envconfig:"AGRICONNECT_RAZORPAY_BASE_URL" default:"https://api.razorpay.com/v1"`
	Currency  string        `envconfig:"AGRICONNECT_RAZORPAY_CURRENCY" default:"INR"`
	Timeout   time.Duration `envconfig:"AGRICONNECT_RAZORPAY_TIMEOUT" default:"10s"`
}

// requireKeys fails when gateway credentials are absent. Dev runs may leave
// them blank and get a 503 from the payment routes instead.
func (r RazorpayConfig) requireKeys() error {
	missing := []string{}
	if r.KeyID == "" {
		missing = append(missing, EnvRzpKey)
	}
	if r.KeySecret == "" {
		missing = append(missing, EnvRzpSec)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s required in production", strings.Join(missing, ", "))
	}
	return nil
}

type TwilioConfig struct {
	AccountSID       string        `envconfig:"AGRICONNECT_TWILIO_ACCOUNT_SID"`
	AuthToken        string        `envconfig:"AGRICONNECT_TWILIO_AUTH_TOKEN"`
	VerifyServiceSID string        `envconfig:"AGRICONNECT_TWILIO_VERIFY_SERVICE_SID"`
	BaseURL          string        `envconfig:"AGRICONNECT_TWILIO_VERIFY_BASE_URL" default:"https://verify.twilio.com/v2"`
	CountryPrefix    string        `envconfig:"AGRICONNECT_TWILIO_COUNTRY_PREFIX" default:"+91"`
	Timeout          time.Duration `envconfig:"AGRICONNECT_TWILIO_TIMEOUT" default:"10s"`
}

type GeocoderConfig struct {
	BaseURL   string        `envconfig:"AGRICONNECT_GEOCODER_BASE_URL" default:"https://nominatim.openstreetmap.org"`
	UserAgent string        `envconfig:"AGRICONNECT_GEOCODER_USER_AGENT" default:"AgriConnect/1.0"`
	Timeout   time.Duration `envconfig:"AGRICONNECT_GEOCODER_TIMEOUT" default:"10s"`
	CacheTTL  time.Duration `envconfig:"AGRICONNECT_GEOCODER_CACHE_TTL" default:"168h"`
}

// DeliveryConfig holds the distance fee formula in rupees.
type DeliveryConfig struct {
	BaseFee  string `envconfig:"AGRICONNECT_DELIVERY_BASE_FEE" default:"10"`
	PerKmFee string `envconfig:"AGRICONNECT_DELIVERY_PER_KM_FEE" default:"4"`
}

type OrdersConfig struct {
	PaymentWindow     time.Duration `envconfig:"AGRICONNECT_ORDERS_PAYMENT_WINDOW" default:"24h"`
	OTPResendCooldown time.Duration `envconfig:"AGRICONNECT_ORDERS_OTP_RESEND_COOLDOWN" default:"30s"`
	// OTPVerifyLimit caps verification attempts per order inside OTPVerifyWindow.
	OTPVerifyLimit    int64         `envconfig:"AGRICONNECT_ORDERS_OTP_VERIFY_LIMIT" default:"5"`
	OTPVerifyWindow   time.Duration `envconfig:"AGRICONNECT_ORDERS_OTP_VERIFY_WINDOW" default:"10m"`
}

type SettlementConfig struct {
	// ReconcileListing applies the second floor-at-zero listing decrement on driver completion.
	ReconcileListing bool `envconfig:"AGRICONNECT_SETTLEMENT_RECONCILE_LISTING" default:"true"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"AGRICONNECT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"AGRICONNECT_PUBSUB_DOMAIN_TOPIC" default:"agriconnect-domain-events"`
	DomainSubscription string `envconfig:"AGRICONNECT_PUBSUB_DOMAIN_SUBSCRIPTION"`
	// CreateMissing provisions the topic and subscription on boot. Meant for
	// the emulator and dev projects; production resources come from terraform.
	CreateMissing bool `envconfig:"AGRICONNECT_PUBSUB_CREATE_MISSING" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"AGRICONNECT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"AGRICONNECT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"AGRICONNECT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"AGRICONNECT_OUTBOX_RETENTION" default:"720h"`
	DLQRetention   time.Duration `envconfig:"AGRICONNECT_OUTBOX_DLQ_RETENTION" default:"2160h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"AGRICONNECT_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"AGRICONNECT_CRON_LOCK_TTL" default:"4m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range composedDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
