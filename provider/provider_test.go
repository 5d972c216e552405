package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/progrium/objmux-go/codec"
	"github.com/progrium/objmux-go/mux"
	"github.com/progrium/objmux-go/transport"
	"github.com/stretchr/testify/require"
)

const channelName = "metamask-provider"

func newPair(t *testing.T, opts ...mux.Option) (dapp, wallet *Provider, walletMux *mux.Multiplexer) {
	t.Helper()
	ca, cb := transport.Pipe()
	a, err := transport.Attach(ca, opts...)
	require.NoError(t, err)
	b, err := transport.Attach(cb, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Destroy()
		b.Destroy()
	})

	chA, err := a.CreateStream(channelName)
	require.NoError(t, err)
	chB, err := b.CreateStream(channelName)
	require.NoError(t, err)
	return New(chA), New(chB), b
}

func requestTimeout(t *testing.T, p *Provider, method string, params, reply any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Request(ctx, method, params, reply)
}

func TestRequest(t *testing.T) {
	for name, c := range codec.Codecs {
		t.Run(name, func(t *testing.T) {
			dapp, wallet, _ := newPair(t, mux.WithCodec(c))
			wallet.Handle("eth_chainId", HandlerFunc(func(r Responder, c *Call) {
				r.Return("0x1")
			}))
			wallet.Handle("eth_getBalance", HandlerFunc(func(r Responder, c *Call) {
				var params []string
				if err := c.Receive(&params); err != nil {
					r.Return(err)
					return
				}
				r.Return(map[string]any{"address": params[0], "wei": 42})
			}))

			var chainID string
			require.NoError(t, requestTimeout(t, dapp, "eth_chainId", nil, &chainID))
			require.Equal(t, "0x1", chainID)
			require.Equal(t, "0x1", dapp.ChainID())

			var balance struct {
				Address string `json:"address"`
				Wei     int    `json:"wei"`
			}
			require.NoError(t, requestTimeout(t, dapp, "eth_getBalance", []string{"0xabc", "latest"}, &balance))
			require.Equal(t, "0xabc", balance.Address)
			require.Equal(t, 42, balance.Wei)
		})
	}
}

func TestRequestNoReturn(t *testing.T) {
	dapp, wallet, _ := newPair(t)
	wallet.Handle("wallet_ping", HandlerFunc(func(r Responder, c *Call) {}))

	var reply any
	require.NoError(t, requestTimeout(t, dapp, "wallet_ping", nil, &reply))
	require.Nil(t, reply)
	require.NoError(t, requestTimeout(t, dapp, "wallet_ping", nil, nil))
}

func TestConcurrentRequests(t *testing.T) {
	dapp, wallet, _ := newPair(t)
	wallet.Handle("echo", HandlerFunc(func(r Responder, c *Call) {
		var n int
		if err := c.Receive(&n); err != nil {
			r.Return(err)
			return
		}
		// answer out of order
		time.Sleep(time.Duration(10-n) * time.Millisecond)
		r.Return(n)
	}))

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out int
			if err := requestTimeout(t, dapp, "echo", i, &out); err != nil {
				errs <- err
				return
			}
			if out != i {
				errs <- fmt.Errorf("request %d got reply %d", i, out)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestRemoteErrors(t *testing.T) {
	dapp, wallet, _ := newPair(t)
	wallet.Handle("eth_sendTransaction", HandlerFunc(func(r Responder, c *Call) {
		r.Return(&Error{Code: 4001, Message: "User rejected the request."})
	}))
	wallet.Handle("eth_sign", HandlerFunc(func(r Responder, c *Call) {
		r.Return(errors.New("keyring locked"))
	}))

	var rpcErr *Error
	err := requestTimeout(t, dapp, "eth_sendTransaction", nil, nil)
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, 4001, rpcErr.Code)
	require.Equal(t, "User rejected the request.", rpcErr.Message)

	err = requestTimeout(t, dapp, "eth_sign", nil, nil)
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, CodeInternal, rpcErr.Code)
	require.Equal(t, "keyring locked", rpcErr.Message)

	err = requestTimeout(t, dapp, "eth_unknown", nil, nil)
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, CodeMethodNotFound, rpcErr.Code)
}

func TestNotifications(t *testing.T) {
	dapp, wallet, _ := newPair(t)

	chains, stopChains := dapp.Subscribe(ChainChanged)
	defer stopChains()
	accounts, stopAccounts := dapp.Subscribe(AccountsChanged)

	require.NoError(t, wallet.Notify(ChainChanged, "0x89"))
	require.NoError(t, wallet.Notify(AccountsChanged, []string{"0xabc"}))
	require.Equal(t, "0x89", wallet.ChainID())

	select {
	case n := <-chains:
		require.Equal(t, ChainChanged, n.Method)
		require.Equal(t, "0x89", n.Params)
	case <-time.After(5 * time.Second):
		t.Fatal("no chainChanged notification")
	}
	select {
	case n := <-accounts:
		require.Equal(t, AccountsChanged, n.Method)
	case <-time.After(5 * time.Second):
		t.Fatal("no accountsChanged notification")
	}
	require.Equal(t, "0x89", dapp.ChainID())
	require.Equal(t, []string{"0xabc"}, dapp.Accounts())

	stopAccounts()
	_, ok := <-accounts
	require.False(t, ok)
	stopAccounts()
}

func TestDisconnect(t *testing.T) {
	dapp, wallet, walletMux := newPair(t)

	started := make(chan struct{})
	wallet.Handle("eth_requestAccounts", HandlerFunc(func(r Responder, c *Call) {
		close(started)
		<-c.Context.Done()
	}))
	notes, _ := dapp.Subscribe(ChainChanged)

	errCh := make(chan error, 1)
	go func() {
		errCh <- dapp.Request(context.Background(), "eth_requestAccounts", nil, nil)
	}()
	<-started
	walletMux.Destroy()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrDisconnected)
	case <-time.After(5 * time.Second):
		t.Fatal("pending request not failed on disconnect")
	}
	select {
	case <-dapp.Disconnected():
	case <-time.After(5 * time.Second):
		t.Fatal("dapp side not disconnected")
	}
	<-wallet.Disconnected()
	require.ErrorIs(t, dapp.Err(), ErrDisconnected)
	require.ErrorIs(t, wallet.Err(), mux.ErrDisconnected)

	_, ok := <-notes
	require.False(t, ok)

	err := dapp.Request(context.Background(), "eth_chainId", nil, nil)
	require.ErrorIs(t, err, ErrDisconnected)
}

func TestRequestContextCancel(t *testing.T) {
	dapp, wallet, _ := newPair(t)
	release := make(chan struct{})
	defer close(release)
	wallet.Handle("slow", HandlerFunc(func(r Responder, c *Call) {
		<-release
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := dapp.Request(ctx, "slow", nil, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Nil(t, dapp.Err())
}

func TestClose(t *testing.T) {
	dapp, _, _ := newPair(t)
	require.NoError(t, dapp.Close())
	require.ErrorIs(t, dapp.Err(), mux.ErrChannelClosed)
	require.ErrorIs(t, dapp.Notify(ChainChanged, "0x1"), ErrDisconnected)
}
