package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type AppConfig struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`

	DatabaseURL string        `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret   string        `envconfig:"JWT_SECRET" required:"true"`
	JWTExpire   time.Duration `envconfig:"JWT_EXPIRE" default:"72h"`

	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
	AdminFullName string `envconfig:"ADMIN_FULL_NAME" default:"Front Desk Admin"`

	EasebuzzKey     string        `envconfig:"EASEBUZZ_KEY"`
	EasebuzzSalt    string        `envconfig:"EASEBUZZ_SALT"`
	EasebuzzEnv     string        `envconfig:"EASEBUZZ_ENV" default:"test"`
	GatewayTimeout  time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`
	Currency        string        `envconfig:"CURRENCY" default:"INR"`
	FrontendURL     string        `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	WebhookBaseURL  string        `envconfig:"WEBHOOK_BASE_URL" default:"http://localhost:8080"`
	SnowflakeNodeID int64         `envconfig:"SNOWFLAKE_NODE_ID" default:"1"`

	HoldWindow    time.Duration `envconfig:"HOLD_WINDOW" default:"30m"`
	SweepSchedule string        `envconfig:"SWEEP_SCHEDULE" default:"@every 5m"`

	RedisURL     string `envconfig:"REDIS_URL"`
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"hotel.events"`

	BrevoAPIKey     string `envconfig:"BREVO_API_KEY"`
	EmailSender     string `envconfig:"EMAIL_SENDER"`
	EmailSenderName string `envconfig:"EMAIL_SENDER_NAME"`

	CloudinaryURL   string `envconfig:"CLOUDINARY_URL"`
	ChromeRemoteURL string `envconfig:"CHROME_REMOTE_URL"`

	OTelEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads .env when present and then the process environment.
func Load() (AppConfig, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("Warning: .env file not found, reading from system environment variables")
	}

	var c AppConfig
	err := envconfig.Process("", &c)
	return c, err
}
