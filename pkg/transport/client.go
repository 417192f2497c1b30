package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// Client dials peer transport endpoints and caches one connection per
// address. Connections are mTLS using the same cluster certificate as
// the server side.
type Client struct {
	cert  *tls.Certificate
	pool  *x509.CertPool
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewClient builds a Client that authenticates as cert, trusting rootCA.
func NewClient(cert *tls.Certificate, rootCA []byte) (*Client, error) {
	root, err := x509.ParseCertificate(rootCA)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid root CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(root)
	return &Client{cert: cert, pool: pool, conns: make(map[string]*grpc.ClientConn)}, nil
}

func (c *Client) connFor(addr string) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[addr]; ok {
		return conn, nil
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*c.cert},
		RootCAs:      c.pool,
		MinVersion:   tls.VersionTLS13,
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	c.conns[addr] = conn
	return conn, nil
}

// Send performs a single request-reply call against addr.
func (c *Client) Send(ctx context.Context, addr string, payload []byte) ([]byte, error) {
	conn, err := c.connFor(addr)
	if err != nil {
		return nil, err
	}

	in := rawMessage(payload)
	out := new(rawMessage)
	if err := conn.Invoke(ctx, method, &in, out); err != nil {
		return nil, fmt.Errorf("transport: send to %s: %w", addr, err)
	}
	return *out, nil
}

// Close tears down every cached connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for addr, conn := range c.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.conns, addr)
	}
	return firstErr
}
