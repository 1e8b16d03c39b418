package multicast

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"
)

// Datagram is a single received UDP payload plus its local and remote
// addresses -- the Go shape of the source's (data, local_sockname, addr)
// tuple delivered to the RECEIVED callback.
type Datagram struct {
	Payload []byte
	Local   net.Addr
	Remote  net.Addr
}

// pollInterval bounds how long a single recv blocks before the loop
// re-checks for cancellation -- the Go equivalent of CastReceiver's
// socket.settimeout(0.5).
const pollInterval = 500 * time.Millisecond

const recvBufferSize = 4096

// Receiver listens for UDP datagrams on a bound address and optional
// multicast group memberships, delivering each to a Handler on a
// background goroutine.
type Receiver struct {
	Addr       string // "ip:port", empty ip = any interface
	ReuseAddr  bool
	ReusePort  bool
	TTL        int
	Handler    func(Datagram)

	mu      sync.Mutex
	conn    *net.UDPConn
	pconn   *ipv4.PacketConn
	groups  map[string]struct{}
	wg      sync.WaitGroup
}

// NewReceiver constructs a Receiver bound to addr ("ip:port"). ReuseAddr
// defaults to true, matching the source.
func NewReceiver(addr string, handler func(Datagram)) *Receiver {
	return &Receiver{
		Addr:      addr,
		ReuseAddr: true,
		Handler:   handler,
		groups:    make(map[string]struct{}),
	}
}

// Start binds the socket, joins any groups registered via JoinGroup before
// Start was called, and begins the receive loop. It returns once the
// socket is bound and the loop goroutine has been launched.
func (r *Receiver) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	udpAddr, err := net.ResolveUDPAddr("udp4", r.Addr)
	if err != nil {
		return fmt.Errorf("multicast: resolve %q: %w", r.Addr, err)
	}

	lc := net.ListenConfig{Control: reuseControl(r.ReuseAddr, r.ReusePort)}
	pc, err := lc.ListenPacket(ctx, "udp4", udpAddr.String())
	if err != nil {
		return fmt.Errorf("multicast: listen %q: %w", r.Addr, err)
	}
	r.conn = pc.(*net.UDPConn)
	r.pconn = ipv4.NewPacketConn(r.conn)

	for g := range r.groups {
		if err := r.addMembership(g); err != nil {
			return err
		}
	}

	r.wg.Add(1)
	go r.receiveLoop(ctx)
	return nil
}

// Stop closes the socket and waits for the receive loop to exit.
func (r *Receiver) Stop() {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	r.wg.Wait()
}

// JoinGroup joins one multicast group address. Safe to call before or
// after Start.
func (r *Receiver) JoinGroup(group string) error {
	ip := net.ParseIP(group)
	if ip == nil {
		return fmt.Errorf("%w: %q is not an IP address", ErrInvalidMulticastAddress, group)
	}
	if err := validateGroup(ip); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[group]; ok {
		return fmt.Errorf("%w: %s", ErrAddressAlreadyRegistered, group)
	}
	r.groups[group] = struct{}{}
	if r.pconn != nil {
		return r.addMembership(group)
	}
	return nil
}

// LeaveGroup drops one multicast group membership.
func (r *Receiver) LeaveGroup(group string) error {
	ip := net.ParseIP(group)
	if ip == nil {
		return fmt.Errorf("%w: %q is not an IP address", ErrInvalidMulticastAddress, group)
	}
	if err := validateGroup(ip); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[group]; !ok {
		return fmt.Errorf("%w: %s", ErrAddressNotRegistered, group)
	}
	delete(r.groups, group)
	if r.pconn != nil {
		return r.pconn.LeaveGroup(nil, &net.UDPAddr{IP: net.ParseIP(group)})
	}
	return nil
}

func (r *Receiver) addMembership(group string) error {
	return r.pconn.JoinGroup(nil, &net.UDPAddr{IP: net.ParseIP(group)})
}

func (r *Receiver) receiveLoop(ctx context.Context) {
	defer r.wg.Done()
	buf := make([]byte, recvBufferSize)
	for {
		if ctx.Err() != nil {
			return
		}
		r.mu.Lock()
		conn := r.conn
		r.mu.Unlock()
		if conn == nil {
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			// Socket closed (Stop was called) or another terminal error.
			return
		}
		if n == 0 {
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		if r.Handler != nil {
			r.Handler(Datagram{Payload: payload, Local: conn.LocalAddr(), Remote: remote})
		}
	}
}
