package main

import (
	"os/signal"
	"syscall"

	"github.com/progrium/objmux-go/mux"
	"github.com/progrium/objmux-go/provider"
	"github.com/progrium/objmux-go/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newListenCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "listen [addr]",
		Short: "serve echo and provider channels",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			defer log.Sync()
			if len(args) > 0 {
				cfg.Addr = args[0]
			}
			opts, err := cfg.MuxOptions(log)
			if err != nil {
				return err
			}

			l, err := transport.Listen(cfg.Transport, cfg.Addr, opts...)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				l.Close()
			}()

			log.Info("listening", zap.String("transport", cfg.Transport), zap.String("addr", cfg.Addr))
			for {
				m, err := l.Accept()
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return err
				}
				if err := serve(m, cfg, log); err != nil {
					log.Warn("serve", zap.Error(err))
					m.Destroy()
					continue
				}
				if cfg.Transport == "stdio" {
					m.Wait()
					return nil
				}
			}
		},
	}
}

// serve registers the configured channels on m: echo channels write every
// payload back, and the provider channel answers chain and account queries.
func serve(m *mux.Multiplexer, cfg Config, log *zap.Logger) error {
	for _, name := range cfg.Ignore {
		m.IgnoreStream(name)
	}
	for _, name := range cfg.Channels {
		ch, err := m.CreateStream(name)
		if err != nil {
			return err
		}
		go echo(ch, log)
	}
	if cfg.Provider.Channel == "" {
		return nil
	}
	ch, err := m.CreateStream(cfg.Provider.Channel)
	if err != nil {
		return err
	}
	p := provider.New(ch, provider.WithLogger(log))
	p.Handle("eth_chainId", provider.HandlerFrom(func() string {
		return cfg.Provider.ChainID
	}))
	accounts := provider.HandlerFrom(func() []string {
		return append([]string{}, cfg.Provider.Accounts...)
	})
	p.Handle("eth_accounts", accounts)
	p.Handle("eth_requestAccounts", accounts)
	p.Handle("wallet_switchEthereumChain", provider.HandlerFrom(func(req struct {
		ChainID string `json:"chainId"`
	}) error {
		if req.ChainID == "" {
			return &provider.Error{Code: provider.CodeInvalidParams, Message: "missing chainId"}
		}
		return p.Notify(provider.ChainChanged, req.ChainID)
	}))
	return nil
}

func echo(ch *mux.Channel, log *zap.Logger) {
	for {
		p, err := ch.Next()
		if err != nil {
			log.Debug("echo channel closed", zap.String("channel", ch.Name()), zap.Error(err))
			return
		}
		if err := ch.Write(p.Value()); err != nil {
			log.Debug("echo write", zap.String("channel", ch.Name()), zap.Error(err))
			return
		}
	}
}
