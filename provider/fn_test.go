package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerFrom(t *testing.T) {
	dapp, wallet, _ := newPair(t)

	type tx struct {
		To    string `json:"to"`
		Value int    `json:"value"`
	}
	wallet.Handle("sum", HandlerFrom(func(a, b int) int {
		return a + b
	}))
	wallet.Handle("noop", HandlerFrom(func() {}))
	wallet.Handle("send", HandlerFrom(func(t tx, c *Call) (string, error) {
		if t.Value <= 0 {
			return "", errors.New("nothing to send")
		}
		return c.Method + ":" + t.To, nil
	}))
	wallet.Handle("panics", HandlerFrom(func() int {
		panic("boom")
	}))

	t.Run("int sum", func(t *testing.T) {
		var sum int
		require.NoError(t, requestTimeout(t, dapp, "sum", []any{2, 3}, &sum))
		require.Equal(t, 5, sum)
	})

	t.Run("no params", func(t *testing.T) {
		require.NoError(t, requestTimeout(t, dapp, "noop", nil, nil))
	})

	t.Run("struct arg and call", func(t *testing.T) {
		var out string
		require.NoError(t, requestTimeout(t, dapp, "send", []any{tx{To: "0xabc", Value: 1}}, &out))
		require.Equal(t, "send:0xabc", out)
	})

	t.Run("error return", func(t *testing.T) {
		var rpcErr *Error
		require.ErrorAs(t, requestTimeout(t, dapp, "send", []any{tx{To: "0xabc"}}, nil), &rpcErr)
		require.Equal(t, CodeInternal, rpcErr.Code)
		require.Equal(t, "nothing to send", rpcErr.Message)
	})

	t.Run("param count", func(t *testing.T) {
		var rpcErr *Error
		require.ErrorAs(t, requestTimeout(t, dapp, "sum", []any{2}, nil), &rpcErr)
		require.Equal(t, CodeInvalidParams, rpcErr.Code)
		require.Equal(t, "too few params", rpcErr.Message)

		require.ErrorAs(t, requestTimeout(t, dapp, "sum", []any{2, 3, 5}, nil), &rpcErr)
		require.Equal(t, "too many params", rpcErr.Message)

		require.ErrorAs(t, requestTimeout(t, dapp, "sum", map[string]any{"a": 1}, nil), &rpcErr)
		require.Equal(t, CodeInvalidParams, rpcErr.Code)
	})

	t.Run("panic", func(t *testing.T) {
		var rpcErr *Error
		require.ErrorAs(t, requestTimeout(t, dapp, "panics", nil, nil), &rpcErr)
		require.Equal(t, "panic: boom", rpcErr.Message)
	})

	require.Panics(t, func() { HandlerFrom("not a func") })
}
