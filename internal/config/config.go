package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`

	RedisEnabled bool   `env:"REDIS_ENABLED" envDefault:"true"`
	RedisHost    string `env:"REDIS_HOST"    envDefault:"localhost"`
	RedisPort    uint16 `env:"REDIS_PORT"    envDefault:"6379" validate:"min=1000,max=65535"`

	// Without auth every connection is a guest and Postgres is never opened.
	AuthEnabled      bool   `env:"AUTH_ENABLED"      envDefault:"false"`
	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"chat_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"chat_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"chat_db"`
	PostgresMaxConns int    `env:"POSTGRES_MAX_CONNS" envDefault:"20" validate:"min=1,max=500"`

	ChatHistorySize      int    `env:"CHAT_HISTORY_SIZE"       envDefault:"500"   validate:"min=1,max=100000"`
	ChatSendBuffer       int    `env:"CHAT_SEND_BUFFER"        envDefault:"64"    validate:"min=1,max=65536"`
	ChatOverflowPolicy   string `env:"CHAT_OVERFLOW_POLICY"    envDefault:"close" validate:"oneof=close drop_oldest"`
	ChatMaxMessageLength int    `env:"CHAT_MAX_MESSAGE_LENGTH" envDefault:"2000"  validate:"min=0"`
	ChatReadLimit        int64  `env:"CHAT_READ_LIMIT"         envDefault:"65536" validate:"min=512"`
	ChatGuestPrefix      string `env:"CHAT_GUEST_PREFIX"       envDefault:"guest" validate:"required,max=32"`
	ChatGuestsCanPost    bool   `env:"CHAT_GUESTS_CAN_POST"    envDefault:"true"`

	WsWriteWait time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s" validate:"min=1s"`
	WsPongWait  time.Duration `env:"WS_PONG_WAIT"  envDefault:"60s" validate:"min=1s"`

	StatsSyncInterval time.Duration `env:"STATS_SYNC_INTERVAL" envDefault:"10s" validate:"min=1s"`
	StatsKeyTTL       time.Duration `env:"STATS_KEY_TTL"       envDefault:"30s" validate:"gtfield=StatsSyncInterval"`
	PresenceBuffer    int           `env:"PRESENCE_BUFFER"     envDefault:"256" validate:"min=1"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
