// Command objmux is a utility for working with object multiplexer
// connections: it serves echo and provider channels and sends payloads to
// remote channels.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type globalFlags struct {
	configPath string
	transport  string
	codec      string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "objmux",
		Short:         "object stream multiplexer utility",
		Long:          `objmux is a utility for serving and talking to named object channels multiplexed over one connection`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to a TOML config file")
	pf.StringVarP(&flags.transport, "transport", "t", "", "transport: tcp, unix, ws, quic or stdio")
	pf.StringVar(&flags.codec, "codec", "", "frame codec: json, cbor or msgpack")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(newListenCmd(flags))
	root.AddCommand(newSendCmd(flags))
	root.AddCommand(newRequestCmd(flags))
	return root
}

// load reads the config file and applies flag overrides.
func (f *globalFlags) load() (Config, *zap.Logger, error) {
	cfg, err := LoadConfig(f.configPath)
	if err != nil {
		return Config{}, nil, err
	}
	if f.transport != "" {
		cfg.Transport = f.transport
	}
	if f.codec != "" {
		cfg.Codec = f.codec
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, nil, err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, log, nil
}
