package provider

import (
	"context"

	"github.com/progrium/objmux-go/frame"
)

// Handler responds to a request arriving on the provider channel.
type Handler interface {
	RespondRPC(Responder, *Call)
}

type HandlerFunc func(Responder, *Call)

func (f HandlerFunc) RespondRPC(resp Responder, call *Call) {
	f(resp, call)
}

// Call is an inbound request.
type Call struct {
	Method  string
	Params  frame.Payload
	Context context.Context

	id any
}

// Receive decodes the request parameters into v.
func (c *Call) Receive(v any) error {
	return c.Params.Decode(v)
}
