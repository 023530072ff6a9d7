package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Incentives struct {
	HTTP             string  `mapstructure:"http"`
	HealthPort       int     `mapstructure:"health_port"`
	HotThreshold     int64   `mapstructure:"hot_threshold"`
	SimpleAmount     float64 `mapstructure:"simple_amount"`
	QuestAmount      float64 `mapstructure:"quest_amount"`
	Currency         string  `mapstructure:"currency"`
	IncentiveType    string  `mapstructure:"incentive_type"`
	LimitAbortsEvent bool    `mapstructure:"limit_aborts_event"`
	GateColdQuests   bool    `mapstructure:"gate_cold_quests"`
	APIRateLimit     string  `mapstructure:"api_rate_limit"`
	SystemKey        string  `mapstructure:"system_key"`
}

type Database struct {
	DBUsername string `mapstructure:"db_username"`
	DBPassword string `mapstructure:"db_password"`
	DBHost     string `mapstructure:"db_host"`
	DBPort     int    `mapstructure:"db_port"`
	DBName     string `mapstructure:"db_name"`
	MaxConns   int32  `mapstructure:"max_conns"`
}

type Postgresql struct {
	PrimaryDB Database `mapstructure:"primary_db"`
}

type RabbitMQ struct {
	Protocol    string   `mapstructure:"protocol"`
	Host        string   `mapstructure:"host"`
	Port        string   `mapstructure:"port"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	VirtualHost string   `mapstructure:"virtual_host"`
	Exchange    string   `mapstructure:"exchange"`
	Prefetch    int      `mapstructure:"prefetch"`
	Queues      []string `yaml:"queues"`
	RoutingKeys []string `yaml:"routingKeys"`
}

type Cors struct {
	AllowedOriginExp string `mapstructure:"allowed_origin_regexp"`
	UseTempCors      bool   `mapstructure:"use_temp_cors"`
}

type Redis struct {
	Host     string `mapstructure:"host"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

type Config struct {
	Incentives Incentives `mapstructure:"incentives"`
	Postgresql Postgresql `mapstructure:"postgresql"`
	RabbitMQ   RabbitMQ   `mapstructure:"rabbitMQ"`
	Cors       Cors       `mapstructure:"cors"`
	Redis      Redis      `mapstructure:"redis"`
	AppEnv     string     `mapstructure:"app_env"`
}

func GetConfig() (*Config, error) {
	log := zap.S()
	if err := godotenv.Load(".env"); err != nil {
		log.Warnf("No .env file found or error loading .env file: %v", err)
	} else {
		log.Debug("Successfully loaded .env file")
	}

	viper.SetEnvPrefix("")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()
	bindEnvVars()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Errorf("Unable to decode into struct, %v", err)
		return config, err
	}

	handleArrayEnvVars(config)

	log.Debug("Configuration loaded from environment variables only")
	return config, nil
}

func setDefaults() {
	viper.SetDefault("incentives.http", "0.0.0.0:8080")
	viper.SetDefault("incentives.health_port", 50061)
	viper.SetDefault("incentives.hot_threshold", 50)
	viper.SetDefault("incentives.simple_amount", 10.0)
	viper.SetDefault("incentives.quest_amount", 50.0)
	viper.SetDefault("incentives.currency", "USD")
	viper.SetDefault("incentives.incentive_type", "CASHBACK")
	viper.SetDefault("incentives.limit_aborts_event", false)
	viper.SetDefault("incentives.gate_cold_quests", true)
	viper.SetDefault("incentives.api_rate_limit", "100-S")

	viper.SetDefault("postgresql.primary_db.db_port", 5432)
	viper.SetDefault("postgresql.primary_db.max_conns", 10)

	viper.SetDefault("redis.host", "localhost:6379")
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.max_idle", 2)

	viper.SetDefault("rabbitMQ.exchange", "incentives_exchange")
	viper.SetDefault("rabbitMQ.prefetch", 32)
	viper.SetDefault("app_env", "development")
}

// bindEnvVars manually binds environment variables to viper keys
func bindEnvVars() {
	viper.BindEnv("app_env", "APP_ENV")

	// Incentives service
	viper.BindEnv("incentives.http", "INCENTIVES_HTTP")
	viper.BindEnv("incentives.health_port", "INCENTIVES_HEALTH_PORT")
	viper.BindEnv("incentives.hot_threshold", "INCENTIVES_HOT_THRESHOLD")
	viper.BindEnv("incentives.simple_amount", "INCENTIVES_SIMPLE_AMOUNT")
	viper.BindEnv("incentives.quest_amount", "INCENTIVES_QUEST_AMOUNT")
	viper.BindEnv("incentives.currency", "INCENTIVES_CURRENCY")
	viper.BindEnv("incentives.incentive_type", "INCENTIVES_INCENTIVE_TYPE")
	viper.BindEnv("incentives.limit_aborts_event", "INCENTIVES_LIMIT_ABORTS_EVENT")
	viper.BindEnv("incentives.gate_cold_quests", "INCENTIVES_GATE_COLD_QUESTS")
	viper.BindEnv("incentives.api_rate_limit", "INCENTIVES_API_RATE_LIMIT")
	viper.BindEnv("incentives.system_key", "INCENTIVES_SYSTEM_KEY")

	// PostgreSQL
	viper.BindEnv("postgresql.primary_db.db_username", "POSTGRESQL_PRIMARY_DB_DB_USERNAME")
	viper.BindEnv("postgresql.primary_db.db_password", "POSTGRESQL_PRIMARY_DB_DB_PASSWORD")
	viper.BindEnv("postgresql.primary_db.db_host", "POSTGRESQL_PRIMARY_DB_DB_HOST")
	viper.BindEnv("postgresql.primary_db.db_port", "POSTGRESQL_PRIMARY_DB_DB_PORT")
	viper.BindEnv("postgresql.primary_db.db_name", "POSTGRESQL_PRIMARY_DB_DB_NAME")
	viper.BindEnv("postgresql.primary_db.max_conns", "POSTGRESQL_PRIMARY_DB_MAX_CONNS")

	// RabbitMQ
	viper.BindEnv("rabbitMQ.protocol", "RABBITMQ_PROTOCOL")
	viper.BindEnv("rabbitMQ.host", "RABBITMQ_HOST")
	viper.BindEnv("rabbitMQ.port", "RABBITMQ_PORT")
	viper.BindEnv("rabbitMQ.username", "RABBITMQ_USERNAME")
	viper.BindEnv("rabbitMQ.password", "RABBITMQ_PASSWORD")
	viper.BindEnv("rabbitMQ.virtual_host", "RABBITMQ_VIRTUAL_HOST")
	viper.BindEnv("rabbitMQ.exchange", "RABBITMQ_EXCHANGE")
	viper.BindEnv("rabbitMQ.prefetch", "RABBITMQ_PREFETCH")

	// CORS
	viper.BindEnv("cors.allowed_origin_regexp", "CORS_ALLOWED_ORIGIN_REGEXP")
	viper.BindEnv("cors.use_temp_cors", "CORS_USE_TEMP_CORS")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("redis.pool_size", "REDIS_POOL_SIZE")
	viper.BindEnv("redis.max_idle", "REDIS_MAX_IDLE")
}

// handleArrayEnvVars manually handles array environment variables
func handleArrayEnvVars(config *Config) {
	if queuesStr := os.Getenv("RABBITMQ_QUEUES"); queuesStr != "" {
		config.RabbitMQ.Queues = splitTrim(queuesStr)
	}
	if routingKeysStr := os.Getenv("RABBITMQ_ROUTING_KEYS"); routingKeysStr != "" {
		config.RabbitMQ.RoutingKeys = splitTrim(routingKeysStr)
	}
}

func splitTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
