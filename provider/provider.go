// Package provider implements a JSON-RPC style provider over a single
// multiplexed channel: requests correlated with responses by id, and
// notifications for state changes such as chain or account switches.
//
// The provider only uses the public Channel API, so either side of a
// connection can bind one: a dapp-facing side issues Requests, and a
// wallet-facing side registers Handlers and sends Notifications.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/progrium/objmux-go/frame"
	"github.com/progrium/objmux-go/mux"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

// ErrDisconnected is returned once the bound channel is gone. Errors
// returned by the provider after that also match the channel's cause.
var ErrDisconnected = errors.New("provider: disconnected")

// Notification methods that update the cached chain state.
const (
	ChainChanged    = "chainChanged"
	AccountsChanged = "accountsChanged"
)

// subscriptionBuffer is the number of notifications a subscriber may fall
// behind before further ones are dropped for it.
const subscriptionBuffer = 16

type Option func(*Provider)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}

// Provider binds one channel and speaks request/response/notification
// over it.
type Provider struct {
	ch  *mux.Channel
	log *zap.Logger

	mu       sync.Mutex
	pending  map[string]chan message
	handlers map[string]Handler
	subs     map[string]map[int]chan Notification
	nextSub  int
	chainID  string
	accounts []string
	err      error

	// ctx is cancelled on disconnect and parents every inbound Call.
	ctx    context.Context
	cancel context.CancelFunc

	disconnected chan struct{}
}

// New binds a provider to ch and starts reading from it. The provider
// owns ch from now on: it is the only reader.
func New(ch *mux.Channel, opts ...Option) *Provider {
	p := &Provider{
		ch:           ch,
		log:          zap.NewNop(),
		pending:      make(map[string]chan message),
		handlers:     make(map[string]Handler),
		subs:         make(map[string]map[int]chan Notification),
		disconnected: make(chan struct{}),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(p)
	}
	go p.loop()
	return p
}

// Handle registers a handler for inbound requests to method.
func (p *Provider) Handle(method string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[method] = h
}

// Request calls method on the remote side and decodes the result into
// reply, which may be nil. Remote failures are returned as *Error.
func (p *Provider) Request(ctx context.Context, method string, params, reply any) error {
	id := xid.New().String()
	respCh := make(chan message, 1)

	p.mu.Lock()
	if p.err != nil {
		err := p.err
		p.mu.Unlock()
		return err
	}
	p.pending[id] = respCh
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
	}()

	if err := p.ch.WriteContext(ctx, request{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}); err != nil {
		return p.writeErr(err)
	}

	var resp message
	select {
	case resp = <-respCh:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.disconnected:
		return p.Err()
	}

	if resp.Error != nil {
		return resp.Error
	}
	p.observeResult(method, resp.Result)
	if reply == nil {
		return nil
	}
	return frame.NewPayload(resp.Result).Decode(reply)
}

// Notify sends a notification to the remote side. Notifications for
// chainChanged and accountsChanged also update the local cache.
func (p *Provider) Notify(method string, params any) error {
	if err := p.ch.Write(notification{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  params,
	}); err != nil {
		return p.writeErr(err)
	}
	p.observeNotification(method, params)
	return nil
}

// Subscribe returns a channel of inbound notifications for method and a
// function to stop the subscription. The channel is closed on unsubscribe
// or disconnect. A subscriber that falls behind misses notifications.
func (p *Provider) Subscribe(method string) (<-chan Notification, func()) {
	c := make(chan Notification, subscriptionBuffer)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		close(c)
		return c, func() {}
	}
	p.nextSub++
	id := p.nextSub
	if p.subs[method] == nil {
		p.subs[method] = make(map[int]chan Notification)
	}
	p.subs[method][id] = c

	var once sync.Once
	return c, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if sub, ok := p.subs[method][id]; ok {
				delete(p.subs[method], id)
				close(sub)
			}
		})
	}
}

// ChainID returns the last chain id seen in a chainChanged notification or
// an eth_chainId result.
func (p *Provider) ChainID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chainID
}

// Accounts returns the last accounts seen in an accountsChanged
// notification or an eth_accounts result.
func (p *Provider) Accounts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.accounts...)
}

// Disconnected is closed once the channel or its multiplexer is gone.
func (p *Provider) Disconnected() <-chan struct{} {
	return p.disconnected
}

// Err returns the disconnection error, or nil while connected.
func (p *Provider) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Close destroys the bound channel.
func (p *Provider) Close() error {
	p.ch.Destroy()
	<-p.disconnected
	return nil
}

func (p *Provider) writeErr(err error) error {
	if errors.Is(err, mux.ErrChannelClosed) {
		select {
		case <-p.disconnected:
			return p.Err()
		default:
		}
	}
	return err
}

func (p *Provider) loop() {
	for {
		payload, err := p.ch.Next()
		if err != nil {
			p.disconnect(err)
			return
		}
		var msg message
		if err := payload.Decode(&msg); err != nil {
			p.log.Warn("dropping undecodable message", zap.Error(err))
			continue
		}
		p.dispatch(msg)
	}
}

func (p *Provider) dispatch(msg message) {
	switch {
	case msg.Method != "" && msg.ID != nil:
		p.serve(msg)
	case msg.Method != "":
		p.observeNotification(msg.Method, msg.Params)
		p.publish(Notification{Method: msg.Method, Params: msg.Params})
	case msg.ID != nil:
		p.mu.Lock()
		respCh, ok := p.pending[idKey(msg.ID)]
		p.mu.Unlock()
		if !ok {
			p.log.Debug("response for unknown request", zap.Any("id", msg.ID))
			return
		}
		select {
		case respCh <- msg:
		default:
			p.log.Debug("duplicate response", zap.Any("id", msg.ID))
		}
	default:
		p.log.Warn("dropping message without id or method")
	}
}

func (p *Provider) serve(msg message) {
	p.mu.Lock()
	h, ok := p.handlers[msg.Method]
	p.mu.Unlock()

	resp := &responder{p: p, id: msg.ID}
	if !ok {
		if err := resp.Return(&Error{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("method %q not found", msg.Method),
		}); err != nil {
			p.log.Debug("respond", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithCancel(p.ctx)
	go func() {
		defer cancel()
		call := &Call{
			Method:  msg.Method,
			Params:  frame.NewPayload(msg.Params),
			Context: ctx,
			id:      msg.ID,
		}
		h.RespondRPC(resp, call)
		if err := resp.Return(nil); err != nil {
			p.log.Debug("respond", zap.String("method", msg.Method), zap.Error(err))
		}
	}()
}

func (p *Provider) publish(n Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.subs[n.Method] {
		select {
		case c <- n:
		default:
			p.log.Warn("subscriber behind, dropping notification", zap.String("method", n.Method))
		}
	}
}

func (p *Provider) observeNotification(method string, params any) {
	switch method {
	case ChainChanged:
		p.setChainID(params)
	case AccountsChanged:
		p.setAccounts(params)
	}
}

func (p *Provider) observeResult(method string, result any) {
	switch method {
	case "eth_chainId":
		p.setChainID(result)
	case "eth_accounts", "eth_requestAccounts":
		p.setAccounts(result)
	}
}

func (p *Provider) setChainID(v any) {
	var chainID string
	if err := frame.NewPayload(v).Decode(&chainID); err != nil {
		p.log.Debug("chain id", zap.Error(err))
		return
	}
	p.mu.Lock()
	p.chainID = chainID
	p.mu.Unlock()
}

func (p *Provider) setAccounts(v any) {
	var accounts []string
	if err := frame.NewPayload(v).Decode(&accounts); err != nil {
		p.log.Debug("accounts", zap.Error(err))
		return
	}
	p.mu.Lock()
	p.accounts = accounts
	p.mu.Unlock()
}

// disconnect runs once, when the channel stops delivering.
func (p *Provider) disconnect(cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = fmt.Errorf("%w: %w", ErrDisconnected, cause)
	for method, subs := range p.subs {
		for id, c := range subs {
			close(c)
			delete(subs, id)
		}
		delete(p.subs, method)
	}
	close(p.disconnected)
	p.cancel()
	p.log.Debug("provider disconnected", zap.String("channel", p.ch.Name()), zap.Error(cause))
}
