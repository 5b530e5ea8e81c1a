package config

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// DefaultUserAgent is the default User-Agent string sent with all HTTP requests.
const DefaultUserAgent = "jimaku-dl/2.0 (https://github.com/ksyasuda/jimaku-dl)"

// DefaultAnilistURL is the AniList GraphQL endpoint.
const DefaultAnilistURL = "https://graphql.anilist.co"

// DefaultJimakuURL is the Jimaku API base URL.
const DefaultJimakuURL = "https://jimaku.cc"

type Config struct {
	APIToken      string `mapstructure:"api_token"`
	AnilistURL    string `mapstructure:"anilist_url"`
	JimakuURL     string `mapstructure:"jimaku_url"`
	ClientTimeout string `mapstructure:"client_timeout"` // Go duration string like "30s", "1h", etc.
	UserAgent     string `mapstructure:"user_agent"`
	ProxyURL      string `mapstructure:"proxy_url"`
	LogLevel      string `mapstructure:"log_level"`
	SentryDSN     string `mapstructure:"sentry_dsn"`
	Cache         struct {
		Provider      string `mapstructure:"provider"` // "memory" or "redis"
		Size          int    `mapstructure:"size"`     // Maximum number of entries
		TTL           string `mapstructure:"ttl"`      // Go duration string like "1h", "24h", etc.
		RedisAddress  string `mapstructure:"redis_address"`
		RedisPassword string `mapstructure:"redis_password"`
		RedisDB       int    `mapstructure:"redis_db"`
	} `mapstructure:"cache"`
	Player struct {
		Binary     string `mapstructure:"binary"`
		SocketPath string `mapstructure:"socket_path"`
	} `mapstructure:"player"`
	Selector struct {
		Binary string `mapstructure:"binary"`
	} `mapstructure:"selector"`
	Sync struct {
		Binary string `mapstructure:"binary"`
	} `mapstructure:"sync"`
}

var (
	globalConfig *Config
	logger       zerolog.Logger
)

func init() {
	// Initialize zerolog with console writer for human-readable output
	logger = zerolog.New(zerolog.ConsoleWriter{
		Out:     os.Stderr,
		NoColor: false,
	}).With().Timestamp().Logger()

	config, err := LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	// Parse and set log level from config
	level := zerolog.InfoLevel // default
	if config.LogLevel != "" {
		if parsedLevel, err := zerolog.ParseLevel(config.LogLevel); err == nil {
			level = parsedLevel
		} else {
			logger.Warn().Str("invalid_level", config.LogLevel).Msg("Invalid log level, using default 'info'")
		}
	}

	zerolog.SetGlobalLevel(level)
	logger = logger.Level(level)

	globalConfig = config
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if configHome, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(configHome + "/jimaku-dl")
	}

	// Environment variable support
	viper.AutomaticEnv()
	viper.SetEnvPrefix("JIMAKU")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// The token and log level keep their historical environment names
	_ = viper.BindEnv("api_token", "JIMAKU_API_TOKEN")
	_ = viper.BindEnv("log_level", "LOG_LEVEL")

	viper.SetDefault("anilist_url", DefaultAnilistURL)
	viper.SetDefault("jimaku_url", DefaultJimakuURL)
	viper.SetDefault("client_timeout", "30s")
	viper.SetDefault("cache.provider", "memory")
	viper.SetDefault("cache.size", 128)
	viper.SetDefault("cache.ttl", "1h")
	viper.SetDefault("player.binary", "mpv")
	viper.SetDefault("player.socket_path", "/tmp/mpvsocket")
	viper.SetDefault("selector.binary", "fzf")
	viper.SetDefault("sync.binary", "ffsubsync")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}

	return &config, nil
}

func GetConfig() *Config {
	return globalConfig
}

func GetUserAgent() string {
	if globalConfig != nil && globalConfig.UserAgent != "" {
		return globalConfig.UserAgent
	}

	return DefaultUserAgent
}

func GetLogger() zerolog.Logger {
	return logger
}

// SetLogLevel overrides the configured log level, used by the --log-level flag.
func SetLogLevel(levelStr string) {
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		logger.Warn().Str("invalid_level", levelStr).Msg("Invalid log level, keeping current level")
		return
	}
	zerolog.SetGlobalLevel(level)
	logger = logger.Level(level)
}
