// Package network provides the UDP transport for the EGM bridge. The robot
// controller is the client: it sends one telemetry datagram per sample and
// blocks waiting for the reply, so the server answers every datagram from
// the read loop before reading the next one.
package network

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"
)

// Handler processes one datagram and returns the reply bytes. An empty
// reply means there is nothing to send yet.
type Handler interface {
	HandleDatagram(data []byte) []byte
}

// ServerConfig contains configuration options for the UDP server.
type ServerConfig struct {
	// Address is the listen address, e.g. ":6510".
	Address string
	// RcvBuf is the socket receive buffer size in bytes; zero keeps the
	// system default.
	RcvBuf int
}

// Server receives controller datagrams over UDP and replies with the
// handler's output.
type Server struct {
	address     string
	rcvBuf      int
	handler     Handler
	conn        *net.UDPConn
	initialized atomic.Bool
}

// NewServer creates a UDP server delivering datagrams to handler.
func NewServer(config ServerConfig, handler Handler) *Server {
	return &Server{
		address: config.Address,
		rcvBuf:  config.RcvBuf,
		handler: handler,
	}
}

// Initialized reports whether the socket was bound successfully.
func (s *Server) Initialized() bool {
	return s.initialized.Load()
}

// LocalAddr returns the bound socket address, or nil before Start has bound
// it. Useful when listening on port 0.
func (s *Server) LocalAddr() net.Addr {
	if !s.initialized.Load() || s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Start binds the socket and serves datagrams until the context is
// cancelled. Each datagram is answered synchronously; read deadlines keep
// the loop responsive to cancellation.
func (s *Server) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", s.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	s.conn = conn
	defer conn.Close()

	if s.rcvBuf > 0 {
		if err := conn.SetReadBuffer(s.rcvBuf); err != nil {
			log.Printf("Warning: failed to set UDP receive buffer size to %d: %v", s.rcvBuf, err)
		}
	}

	s.initialized.Store(true)
	log.Printf("EGM server listening on %s", conn.LocalAddr())

	// EGM datagrams are well under 1 KB; leave margin for schema growth.
	buffer := make([]byte, 2048)

	for {
		select {
		case <-ctx.Done():
			log.Print("EGM server stopping due to context cancellation")
			return ctx.Err()
		default:
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

			n, remote, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("UDP read error: %v", err)
				continue
			}

			reply := s.handler.HandleDatagram(buffer[:n])
			if len(reply) == 0 {
				continue
			}
			if _, err := conn.WriteToUDP(reply, remote); err != nil {
				log.Printf("UDP reply to %v failed: %v", remote, err)
			}
		}
	}
}

// Close closes the server socket.
func (s *Server) Close() error {
	s.initialized.Store(false)
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
