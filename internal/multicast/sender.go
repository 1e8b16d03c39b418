package multicast

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv4"
)

const defaultTTL = 4

// Sender wraps an IPv4 UDP socket used to transmit datagrams to a
// multicast group or any unicast peer, with a configurable TTL.
type Sender struct {
	TTL  int
	conn *net.UDPConn
}

// NewSender opens an unbound (ephemeral local port) UDP4 socket.
func NewSender(ttl int) (*Sender, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, fmt.Errorf("multicast: open sender socket: %w", err)
	}
	if err := ipv4.NewPacketConn(conn).SetMulticastTTL(ttl); err != nil {
		conn.Close()
		return nil, fmt.Errorf("multicast: set ttl: %w", err)
	}
	return &Sender{TTL: ttl, conn: conn}, nil
}

// Close releases the underlying socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}

// Send transmits payload to remote ("ip:port"). When waitReply is true it
// blocks up to 1s for a single reply datagram and returns it; otherwise it
// returns (nil, nil) immediately after the write succeeds.
func (s *Sender) Send(remote string, payload []byte, waitReply bool) (*Datagram, error) {
	addr, err := net.ResolveUDPAddr("udp4", remote)
	if err != nil {
		return nil, fmt.Errorf("multicast: resolve remote %q: %w", remote, err)
	}
	if _, err := s.conn.WriteToUDP(payload, addr); err != nil {
		return nil, fmt.Errorf("multicast: send to %q: %w", remote, err)
	}
	if !waitReply {
		return nil, nil
	}

	_ = s.conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	buf := make([]byte, recvBufferSize)
	n, from, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, fmt.Errorf("multicast: waiting for reply: %w", err)
	}
	reply := make([]byte, n)
	copy(reply, buf[:n])
	return &Datagram{Payload: reply, Local: s.conn.LocalAddr(), Remote: from}, nil
}
