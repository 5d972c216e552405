package main

import (
	"context"
	"testing"
	"time"

	"github.com/progrium/objmux-go/mux"
	"github.com/progrium/objmux-go/provider"
	"github.com/progrium/objmux-go/transport"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newServed(t *testing.T, cfg Config) *mux.Multiplexer {
	t.Helper()
	ca, cb := transport.Pipe()
	client, err := transport.Attach(ca)
	require.NoError(t, err)
	server, err := transport.Attach(cb)
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Destroy()
		server.Destroy()
	})
	require.NoError(t, serve(server, cfg, zap.NewNop()))
	return client
}

func TestServeEcho(t *testing.T) {
	client := newServed(t, DefaultConfig())
	ch, err := client.CreateStream("echo")
	require.NoError(t, err)

	require.NoError(t, ch.Write(map[string]any{"hello": "world"}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := ch.NextContext(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"hello": "world"}, p.Value())
}

func TestServeProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.Accounts = []string{"0xabc"}
	client := newServed(t, cfg)

	ch, err := client.CreateStream(cfg.Provider.Channel)
	require.NoError(t, err)
	p := provider.New(ch)
	changes, stop := p.Subscribe(provider.ChainChanged)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var chainID string
	require.NoError(t, p.Request(ctx, "eth_chainId", nil, &chainID))
	require.Equal(t, "0x1", chainID)

	var accounts []string
	require.NoError(t, p.Request(ctx, "eth_requestAccounts", nil, &accounts))
	require.Equal(t, []string{"0xabc"}, accounts)
	require.Equal(t, []string{"0xabc"}, p.Accounts())

	params := []map[string]any{{"chainId": "0x89"}}
	require.NoError(t, p.Request(ctx, "wallet_switchEthereumChain", params, nil))
	select {
	case n := <-changes:
		require.Equal(t, "0x89", n.Params)
	case <-ctx.Done():
		t.Fatal("no chainChanged notification")
	}

	var rpcErr *provider.Error
	require.ErrorAs(t, p.Request(ctx, "wallet_switchEthereumChain", nil, nil), &rpcErr)
	require.Equal(t, provider.CodeInvalidParams, rpcErr.Code)
	require.ErrorAs(t, p.Request(ctx, "wallet_switchEthereumChain", []map[string]any{{}}, nil), &rpcErr)
	require.Equal(t, "missing chainId", rpcErr.Message)
}

func TestServeDuplicateChannel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels = []string{"echo", "echo"}
	ca, _ := transport.Pipe()
	m, err := transport.Attach(ca)
	require.NoError(t, err)
	defer m.Destroy()
	require.ErrorIs(t, serve(m, cfg, zap.NewNop()), mux.ErrDuplicateChannel)
}
