package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/progrium/clon-go"
	"github.com/progrium/objmux-go/mux"
	"github.com/progrium/objmux-go/transport"
	"github.com/spf13/cobra"
)

func newSendCmd(flags *globalFlags) *cobra.Command {
	var (
		addr    string
		replies int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send <channel> [args...]",
		Short: "send a value to a remote channel and print the replies",
		Long: `send dials a remote multiplexer, writes one value to the named channel and
prints the replies as JSON. Arguments are parsed with CLON into the value
sent; with no arguments null is sent.`,
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

			var value any
			if len(args) > 1 {
				value, err = clon.Parse(args[1:])
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

			ch, err := m.CreateStream(args[0])
			if err != nil {
				return err
			}
			if err := ch.Write(value); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			for i := 0; i < replies; i++ {
				p, err := ch.NextContext(ctx)
				if err != nil {
					return err
				}
				if err := printJSON(cmd, p.Value()); err != nil {
					return err
				}
			}
			return endGracefully(ctx, m)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "remote address")
	cmd.Flags().IntVarP(&replies, "replies", "n", 1, "number of replies to wait for")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for replies")
	return cmd
}

// endGracefully flushes anything still queued before the connection closes.
func endGracefully(ctx context.Context, m *mux.Multiplexer) error {
	finished := make(chan struct{})
	m.End(func() { close(finished) })
	select {
	case <-finished:
		return nil
	case <-m.Done():
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
