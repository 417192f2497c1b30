package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"

	"github.com/coreward/atomix/pkg/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// Server is the C1 listening endpoint: one gRPC server, one registered
// Handler, mTLS required on every connection.
type Server struct {
	grpc *grpc.Server
	lis  net.Listener
}

// NewServer builds a Server bound to addr, authenticating peers against
// rootCA and presenting cert. handler answers every inbound Send call.
func NewServer(addr string, cert *tls.Certificate, rootCA []byte, handler Handler) (*Server, error) {
	root, err := x509.ParseCertificate(rootCA)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid root CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(root)

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}

	srv := grpc.NewServer(grpc.Creds(credentials.NewTLS(tlsConfig)), grpc.ForceServerCodec(rawCodec{}))
	srv.RegisterService(&serviceDesc, handler)

	return &Server{grpc: srv, lis: lis}, nil
}

// Serve blocks, accepting connections until Stop is called.
func (s *Server) Serve() error {
	log.WithComponent("transport").Info().Str("addr", s.lis.Addr().String()).Msg("transport listening")
	return s.grpc.Serve(s.lis)
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.lis.Addr().String()
}
