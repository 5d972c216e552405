package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/progrium/objmux-go/codec"
	"github.com/progrium/objmux-go/mux"
	"github.com/progrium/objmux-go/transport"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the settings shared by all commands. Values come from the
// defaults, then the TOML file, then command line flags.
type Config struct {
	Transport string   `toml:"transport"`
	Addr      string   `toml:"addr"`
	Codec     string   `toml:"codec"`
	LogLevel  string   `toml:"log_level"`
	QueueSize int      `toml:"queue_size"`
	Channels  []string `toml:"channels"`
	Ignore    []string `toml:"ignore"`

	Provider ProviderConfig `toml:"provider"`
}

// ProviderConfig describes the provider channel served by listen.
type ProviderConfig struct {
	Channel  string   `toml:"channel"`
	ChainID  string   `toml:"chain_id"`
	Accounts []string `toml:"accounts"`
}

func DefaultConfig() Config {
	return Config{
		Transport: "tcp",
		Addr:      "127.0.0.1:7890",
		Codec:     "json",
		LogLevel:  "info",
		QueueSize: mux.DefaultQueueSize,
		Channels:  []string{"echo"},
		Provider: ProviderConfig{
			Channel: "metamask-provider",
			ChainID: "0x1",
		},
	}
}

// LoadConfig overlays the keys defined in the TOML file at path onto the
// defaults. An empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw Config
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("transport") {
		cfg.Transport = strings.TrimSpace(raw.Transport)
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("codec") {
		cfg.Codec = strings.TrimSpace(raw.Codec)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("queue_size") {
		cfg.QueueSize = raw.QueueSize
	}
	if meta.IsDefined("channels") {
		cfg.Channels = raw.Channels
	}
	if meta.IsDefined("ignore") {
		cfg.Ignore = raw.Ignore
	}
	if meta.IsDefined("provider", "channel") {
		cfg.Provider.Channel = strings.TrimSpace(raw.Provider.Channel)
	}
	if meta.IsDefined("provider", "chain_id") {
		cfg.Provider.ChainID = strings.TrimSpace(raw.Provider.ChainID)
	}
	if meta.IsDefined("provider", "accounts") {
		cfg.Provider.Accounts = raw.Provider.Accounts
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if _, ok := transport.Dialers[c.Transport]; !ok {
		return fmt.Errorf("config: unknown transport %q", c.Transport)
	}
	if _, err := codec.ByName(c.Codec); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("config: queue_size must be positive, got %d", c.QueueSize)
	}
	seen := make(map[string]bool)
	for _, name := range append(append([]string{}, c.Channels...), c.Provider.Channel) {
		if name == "" {
			continue
		}
		if seen[name] {
			return fmt.Errorf("config: channel %q listed twice", name)
		}
		seen[name] = true
	}
	return nil
}

// MuxOptions returns the multiplexer options the config describes.
func (c Config) MuxOptions(log *zap.Logger) ([]mux.Option, error) {
	cd, err := codec.ByName(c.Codec)
	if err != nil {
		return nil, err
	}
	return []mux.Option{
		mux.WithCodec(cd),
		mux.WithQueueSize(c.QueueSize),
		mux.WithLogger(log),
	}, nil
}

// NewLogger builds a console logger writing to stderr at the configured
// level.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	return zc.Build()
}
