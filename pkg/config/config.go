package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file. A missing path returns zero-value defaults
// without error so the server can run from flags/env alone.
func Load(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		return &cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	host := c.Server.Address
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ApplyEnv overlays ANONCHAT_* environment variables onto the config.
// Env wins over file values; flags win over both (handled by the caller).
func (c *Config) ApplyEnv() bool {
	used := false
	if v := os.Getenv("ANONCHAT_ADDR"); v != "" {
		if host, port, err := net.SplitHostPort(v); err == nil {
			c.Server.Address = host
			if p, err := strconv.Atoi(port); err == nil {
				c.Server.Port = p
			}
			used = true
		}
	}
	if v := os.Getenv("ANONCHAT_DB_PATH"); v != "" {
		c.Server.DBPath = v
		used = true
	}
	if v := os.Getenv("ANONCHAT_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
		used = true
	}
	if v := os.Getenv("ANONCHAT_REDIS_ADDR"); v != "" {
		c.Feed.Redis.Addr = v
		used = true
	}
	if v := os.Getenv("ANONCHAT_TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.Telegram.BotToken = v
		used = true
	}
	if v := os.Getenv("ANONCHAT_TELEGRAM_CHAT_ID"); v != "" {
		c.Notify.Telegram.ChatID = v
		used = true
	}
	if v := os.Getenv("ANONCHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
		used = true
	}
	return used
}

// CommandFlags holds flag values plus which flags were explicitly set, so
// the caller can let explicit flags win over env/config.
type CommandFlags struct {
	Addr   string
	DBPath string
	Config string
	Set    map[string]bool
}

// ParseCommandFlags centralizes flag parsing for the server binary.
func ParseCommandFlags() CommandFlags {
	addr := flag.String("addr", ":8080", "listen address")
	db := flag.String("db", "./data", "path to pebble database directory")
	cfg := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return CommandFlags{Addr: *addr, DBPath: *db, Config: *cfg, Set: set}
}

// ResolveConfigPath picks the config path: explicit flag wins, then the
// ANONCHAT_CONFIG env var, then a conventional default if it exists.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet && flagVal != "" {
		return flagVal
	}
	if v := os.Getenv("ANONCHAT_CONFIG"); v != "" {
		return v
	}
	if _, err := os.Stat("anonchat.yaml"); err == nil {
		return "anonchat.yaml"
	}
	return flagVal
}
