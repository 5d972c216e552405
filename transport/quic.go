package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/progrium/objmux-go/mux"
	"github.com/quic-go/quic-go"
	"go.uber.org/multierr"
)

// QUICProto is the ALPN protocol negotiated on QUIC connections.
const QUICProto = "objmux-quic"

var defaultTLSConfig = tls.Config{
	NextProtos: []string{QUICProto},
}

// quicStream carries the frames of one multiplexer over the single
// bidirectional stream opened by the dialing side.
type quicStream struct {
	quic.Stream
	conn quic.Connection
}

// CloseWrite finishes the send direction of the stream.
func (s *quicStream) CloseWrite() error {
	return s.Stream.Close()
}

func (s *quicStream) Close() error {
	s.Stream.CancelRead(0)
	return multierr.Append(
		s.Stream.Close(),
		s.conn.CloseWithError(0, "close connection"),
	)
}

// DialQUIC connects to a QUIC endpoint. A nil tlsConf uses a default
// configuration that verifies the server certificate.
func DialQUIC(addr string, tlsConf *tls.Config, opts ...mux.Option) (*mux.Multiplexer, error) {
	if tlsConf == nil {
		tlsConf = defaultTLSConfig.Clone()
	}
	ctx := context.Background()
	conn, err := quic.DialAddr(ctx, addr, tlsConf, nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial quic")
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "open stream")
		return nil, errors.Wrap(err, "open quic stream")
	}
	// the peer only learns of the stream once something is written on it
	if _, err := stream.Write([]byte("!")); err != nil {
		conn.CloseWithError(0, "open stream")
		return nil, errors.Wrap(err, "open quic stream")
	}
	return Attach(NewStreamConn(&quicStream{Stream: stream, conn: conn}), opts...)
}

// QUICListener accepts QUIC connections as attached multiplexers.
type QUICListener struct {
	l    *quic.Listener
	opts []mux.Option
}

// ListenQUIC listens for QUIC connections on addr.
func ListenQUIC(addr string, tlsConf *tls.Config, opts ...mux.Option) (*QUICListener, error) {
	l, err := quic.ListenAddr(addr, tlsConf, nil)
	if err != nil {
		return nil, errors.Wrap(err, "listen quic")
	}
	return &QUICListener{l: l, opts: opts}, nil
}

// Accept waits for the next connection and its stream.
func (l *QUICListener) Accept() (*mux.Multiplexer, error) {
	ctx := context.Background()
	conn, err := l.l.Accept(ctx)
	if err != nil {
		return nil, err
	}
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		conn.CloseWithError(0, "accept stream")
		return nil, errors.Wrap(err, "accept quic stream")
	}
	header := make([]byte, 1)
	if _, err := stream.Read(header); err != nil {
		conn.CloseWithError(0, "accept stream")
		return nil, errors.Wrap(err, "accept quic stream")
	}
	return Attach(NewStreamConn(&quicStream{Stream: stream, conn: conn}), l.opts...)
}

func (l *QUICListener) Close() error {
	return l.l.Close()
}

func (l *QUICListener) Addr() net.Addr {
	return l.l.Addr()
}

// InsecureTLSConfig returns a client configuration that accepts any server
// certificate. It pairs with GenerateTLSConfig listeners.
func InsecureTLSConfig() *tls.Config {
	cfg := defaultTLSConfig.Clone()
	cfg.InsecureSkipVerify = true
	return cfg
}

// GenerateTLSConfig returns a server configuration with a fresh self-signed
// certificate valid for localhost and the loopback addresses, for local use
// and tests.
func GenerateTLSConfig() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	cfg := defaultTLSConfig.Clone()
	cfg.Certificates = []tls.Certificate{{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
	}}
	return cfg, nil
}
