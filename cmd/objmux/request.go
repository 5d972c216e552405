package main

import (
	"context"
	"time"

	"github.com/progrium/clon-go"
	"github.com/progrium/objmux-go/provider"
	"github.com/progrium/objmux-go/transport"
	"github.com/spf13/cobra"
)

func newRequestCmd(flags *globalFlags) *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "request <method> [params...]",
		Short: "call a method on the remote provider channel",
		Long: `request dials a remote multiplexer and issues one request on its provider
channel and prints the result as JSON. Params are parsed with CLON.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			defer log.Sync()
			if addr != "" {
				cfg.Addr = addr
			}

			var params any
			if len(args) > 1 {
				params, err = clon.Parse(args[1:])
				if err != nil {
					return err
				}
			}

			opts, err := cfg.MuxOptions(log)
			if err != nil {
				return err
			}
			m, err := transport.Dial(cfg.Transport, cfg.Addr, opts...)
			if err != nil {
				return err
			}
			defer m.Destroy()

			ch, err := m.CreateStream(cfg.Provider.Channel)
			if err != nil {
				return err
			}
			p := provider.New(ch, provider.WithLogger(log))

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			var result any
			if err := p.Request(ctx, args[0], params, &result); err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "remote address")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for the result")
	return cmd
}
