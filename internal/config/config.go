package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "BOOPSITE"

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret       string
		TokenTTLMinutes int
		BcryptCost      int
	}
	Admin struct {
		Bootstrap bool
		Email     string
		Password  string
	}
	Log struct {
		Level  string
		Format string
	}
	Client struct {
		BaseURL     string
		SessionPath string
	}
}

// TokenTTL returns the configured session token lifetime.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth jwt secret is required (set %s_AUTH_JWTSECRET)", envPrefix)
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("auth token ttl must be positive, got %d", c.Auth.TokenTTLMinutes)
	}
	if c.Admin.Bootstrap && (strings.TrimSpace(c.Admin.Email) == "" || c.Admin.Password == "") {
		return fmt.Errorf("admin bootstrap requires admin email and password")
	}
	return nil
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:3000")
	v.SetDefault("database.path", "data/boopsite.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 60)
	v.SetDefault("auth.bcryptcost", 10)
	v.SetDefault("admin.bootstrap", true)
	v.SetDefault("admin.email", "admin@example.com")
	v.SetDefault("admin.password", "admin123")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("client.baseurl", "http://localhost:3000")
	v.SetDefault("client.sessionpath", defaultSessionPath())
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".boopsite", "session.db")
	}
	return filepath.Join(home, ".boopsite", "session.db")
}

// loadDotEnv exports entries of a dotenv file that are not already set in the
// environment. A missing or unparsable file is ignored.
func loadDotEnv(path string) {
	dot := viper.New()
	dot.SetConfigFile(path)
	dot.SetConfigType("env")
	if err := dot.ReadInConfig(); err != nil {
		return
	}

	for _, key := range dot.AllKeys() {
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); !exists {
			_ = os.Setenv(name, dot.GetString(key))
		}
	}
}
