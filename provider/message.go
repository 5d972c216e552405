package provider

import "fmt"

const jsonrpcVersion = "2.0"

// Standard JSON-RPC error codes used by the provider itself.
const (
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInternal       = -32603
)

// Error is an error returned by the remote side of the provider channel.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote: %s (code %d)", e.Message, e.Code)
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result"`
}

type errorResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Error   *Error `json:"error"`
}

// message is the union of everything that may arrive on the channel.
type message struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	Result  any    `json:"result"`
	Error   *Error `json:"error"`
}

// Notification is an unsolicited message from the remote side, such as
// chainChanged or accountsChanged.
type Notification struct {
	Method string
	Params any
}

func idKey(id any) string {
	return fmt.Sprint(id)
}
