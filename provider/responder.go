package provider

import (
	"errors"
	"sync"
)

// Responder answers a single Call.
type Responder interface {
	// Return sends v as the result. If v is an error, an error response is
	// sent instead; a *Error keeps its code, anything else becomes an
	// internal error. Only the first call has an effect.
	Return(v any) error
}

type responder struct {
	p  *Provider
	id any

	mu        sync.Mutex
	responded bool
}

func (r *responder) Return(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.responded {
		return nil
	}
	r.responded = true

	if err, ok := v.(error); ok {
		var rpcErr *Error
		if !errors.As(err, &rpcErr) {
			rpcErr = &Error{Code: CodeInternal, Message: err.Error()}
		}
		return r.p.ch.Write(errorResponse{
			JSONRPC: jsonrpcVersion,
			ID:      r.id,
			Error:   rpcErr,
		})
	}
	return r.p.ch.Write(response{
		JSONRPC: jsonrpcVersion,
		ID:      r.id,
		Result:  v,
	})
}
