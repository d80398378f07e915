// Package udpcarrier implements reliant.Carrier over a net.PacketConn,
// giving the library something real to sit on top of for the cmd/ demos.
// Grounded on the teacher's cmd/example/example.go, which drove a raw
// *rely.Endpoint over the same net.PacketConn/net.Conn split between server
// and client roles.
package udpcarrier

import (
	"net"

	"github.com/jakecoffman/reliant"
)

const maxDatagramSize = 65507

// Server listens on a UDP socket and, once it has heard from any client,
// sends to the address it most recently received a datagram from. Like the teacher's
// example, this is a single-peer demo carrier, not a multiplexing server.
type Server struct {
	conn      net.PacketConn
	remote    net.Addr
	onReceive func([]byte)
	onError   func(error)
}

// Listen opens a UDP socket at addr for Server to use.
func Listen(addr string) (*Server, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{conn: conn}
	go s.readLoop()
	return s, nil
}

func (s *Server) readLoop() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			if s.onError != nil {
				s.onError(err)
			}
			return
		}
		s.remote = addr
		if s.onReceive != nil {
			delivered := make([]byte, n)
			copy(delivered, buf[:n])
			s.onReceive(delivered)
		}
	}
}

// Send implements reliant.Carrier. Sends before the first inbound datagram
// (and hence before any remote address is known) are silently dropped, same
// as the teacher's server role waiting for its first client packet.
func (s *Server) Send(data []byte, onComplete func()) {
	if s.remote != nil {
		if _, err := s.conn.WriteTo(data, s.remote); err != nil && s.onError != nil {
			s.onError(err)
		}
	}
	if onComplete != nil {
		onComplete()
	}
}

func (s *Server) OnReceive(handler func(data []byte)) { s.onReceive = handler }
func (s *Server) OnError(handler func(err error))     { s.onError = handler }

// Close releases the underlying socket.
func (s *Server) Close() error { return s.conn.Close() }

// Client dials a fixed remote address, the teacher's client role.
type Client struct {
	conn      net.Conn
	onReceive func([]byte)
	onError   func(error)
}

// Dial connects to addr for Client to use.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}
	c := &Client{conn: conn}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			if c.onError != nil {
				c.onError(err)
			}
			return
		}
		if c.onReceive != nil {
			delivered := make([]byte, n)
			copy(delivered, buf[:n])
			c.onReceive(delivered)
		}
	}
}

func (c *Client) Send(data []byte, onComplete func()) {
	if _, err := c.conn.Write(data); err != nil {
		if c.onError != nil {
			c.onError(err)
		}
	} else if onComplete != nil {
		onComplete()
	}
}

func (c *Client) OnReceive(handler func(data []byte)) { c.onReceive = handler }
func (c *Client) OnError(handler func(err error))     { c.onError = handler }

func (c *Client) Close() error { return c.conn.Close() }

var (
	_ reliant.Carrier = (*Server)(nil)
	_ reliant.Carrier = (*Client)(nil)
)
