package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`

	// Secret signs session cookies and connection tokens.
	Secret      string        `mapstructure:"secret"`
	RequireAuth bool          `mapstructure:"require_auth"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`

	DBPath string `mapstructure:"db_path"`

	ReadLimit   int64         `mapstructure:"read_limit"`
	SendBuffer  int           `mapstructure:"send_buffer"`
	PingPeriod  time.Duration `mapstructure:"ping_period"`
	WriteWait   time.Duration `mapstructure:"write_wait"`
	MessageRate int           `mapstructure:"message_rate"`

	MeetingTTL    time.Duration `mapstructure:"meeting_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	ICEServerURLs []string `mapstructure:"ice_servers"`
}

// Load reads config/config.<env>.yaml (or the explicit path when given)
// with defaults for every field, so a missing file still yields a runnable
// server.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	fileName := path
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "")
	v.SetDefault("require_auth", false)
	v.SetDefault("token_ttl", "1h")
	v.SetDefault("db_path", "./confab.sqlite")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("send_buffer", 64)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("message_rate", 50)
	v.SetDefault("meeting_ttl", "1h")
	v.SetDefault("sweep_interval", "5m")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
