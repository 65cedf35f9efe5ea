package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryUrl string `env:"SENTRY_URL"`
	}
	Postgres struct {
		Port    int    `env:"POSTGRES_PORT" env-default:"5432"`
		Host    string `env:"POSTGRES_HOST" env-default:"localhost"`
		User    string `env:"POSTGRES_USER"`
		Pass    string `env:"POSTGRES_PASS"`
		Name    string `env:"POSTGRES_NAME"`
		SslMode string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	}
	Recorder struct {
		ScratchDir  string `env:"RECORDER_SCRATCH_DIR" env-default:"/tmp/voxpost"`
		FFmpegPath  string `env:"RECORDER_FFMPEG_PATH" env-default:"ffmpeg"`
		InputFormat string `env:"RECORDER_INPUT_FORMAT" env-default:"pulse"`
		InputDevice string `env:"RECORDER_INPUT_DEVICE" env-default:"default"`
	}
	Transcriber struct {
		URL            string `env:"TRANSCRIBER_URL"`
		APIKey         string `env:"TRANSCRIBER_API_KEY"`
		TimeoutSeconds int    `env:"TRANSCRIBER_TIMEOUT_SECONDS" env-default:"60"`
	}
	Parser struct {
		URL            string `env:"PARSER_URL"`
		APIKey         string `env:"PARSER_API_KEY"`
		Model          string `env:"PARSER_MODEL" env-default:"gpt-4o-mini"`
		TimeoutSeconds int    `env:"PARSER_TIMEOUT_SECONDS" env-default:"30"`
	}
	Media struct {
		DefaultAlbumDir string `env:"MEDIA_DEFAULT_ALBUM_DIR" env-default:"~/Pictures"`
	}
	Telegram struct {
		BotToken string `env:"TELEGRAM_TOKEN"`
		Channel  int64  `env:"TELEGRAM_CHANNEL"`
	}
	Twitter struct {
		ConsumerKey    string `env:"TWITTER_CONSUMER_KEY"`
		ConsumerSecret string `env:"TWITTER_CONSUMER_SECRET"`
		AccessToken    string `env:"TWITTER_ACCESS_TOKEN"`
		AccessSecret   string `env:"TWITTER_ACCESS_SECRET"`
	}
	Instagram struct {
		User        string `env:"INSTAGRAM_USER"`
		Pass        string `env:"INSTAGRAM_PASS"`
		SessionPath string `env:"INSTAGRAM_SESSION_PATH" env-default:"./goinsta-session"`
	}
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}

// GetDSN returns the postgres connection string used by migrations and tooling.
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"dbname=%s user=%s password=%s host=%s port=%d sslmode=%s",
		c.Postgres.Name, c.Postgres.User, c.Postgres.Pass,
		c.Postgres.Host, c.Postgres.Port, c.Postgres.SslMode,
	)
}
