package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,https://chetna-97.github.io"`
	BcryptCost  int      `env:"BCRYPT_COST" envDefault:"12"`
	// CIDRs of reverse proxies whose X-Forwarded-For is trusted; empty means
	// the client IP is the connection's remote address.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	Database    Database    `envPrefix:"DATABASE_"`
	Auth        Auth        `envPrefix:"JWT_"`
	RateLimit   RateLimit   `envPrefix:"RATE_LIMIT_"`
	Catalog     Catalog     `envPrefix:"CATALOG_"`
	Cart        Cart        `envPrefix:"CART_"`
	Idempotency Idempotency `envPrefix:"IDEMPOTENCY_"`
	Razorpay    Razorpay    `envPrefix:"RAZORPAY_"`
	Mail        Mail        `envPrefix:"MAIL_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"5000"`
}

type Database struct {
	Driver         string        `env:"DRIVER" envDefault:"mysql"` // mysql | sqlite
	URL            string        `env:"URL,required,notEmpty"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
	MaxIdleConns   int           `env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns   int           `env:"MAX_OPEN_CONNS" envDefault:"50"`
}

type Auth struct {
	Secret string        `env:"SECRET,required,notEmpty"`
	TTL    time.Duration `env:"TTL" envDefault:"168h"`
}

// RateLimit windows are fixed, not sliding.
type RateLimit struct {
	AuthMax    int           `env:"AUTH_MAX" envDefault:"15"`
	AuthWindow time.Duration `env:"AUTH_WINDOW" envDefault:"15m"`
	APIMax     int           `env:"API_MAX" envDefault:"100"`
	APIWindow  time.Duration `env:"API_WINDOW" envDefault:"1m"`
}

type Catalog struct {
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`
}

type Cart struct {
	TTL           time.Duration `env:"TTL" envDefault:"720h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
}

type Idempotency struct {
	TTL time.Duration `env:"TTL" envDefault:"24h"`
}

type Razorpay struct {
	BaseApiURL    string `env:"BASE_API_URL" envDefault:"https://api.razorpay.com"`
	KeyID         string `env:"KEY_ID"`
	KeySecret     string `env:"KEY_SECRET"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	Currency      string `env:"CURRENCY" envDefault:"INR"`
}

func (r Razorpay) Configured() bool {
	return r.KeyID != "" && r.KeySecret != ""
}

type Mail struct {
	Host         string        `env:"HOST"`
	Port         int           `env:"PORT" envDefault:"587"`
	Username     string        `env:"USERNAME"`
	Password     string        `env:"PASSWORD"`
	From         string        `env:"FROM"`
	OwnerAddress string        `env:"OWNER_ADDRESS"`
	QueueSize    int           `env:"QUEUE_SIZE" envDefault:"64"`
	SendTimeout  time.Duration `env:"SEND_TIMEOUT" envDefault:"15s"`
}

func (m Mail) Configured() bool {
	return m.Host != "" && m.OwnerAddress != ""
}

func (c *Config) IsProduction() bool {
	return c.Environment.Name == "production"
}

func (c *Config) ServerAddr() string {
	return c.HTTP.Host + ":" + c.HTTP.Port
}

// Load reads .env (if any) into the environment and parses it into a Config.
func Load() (*Config, error) {
	// load .env into os.Environ; a missing file is fine in prod
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
