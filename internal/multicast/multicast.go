// Package multicast provides the Receiver/Sender primitives that the SSDP
// and WS-Discovery engines are built on: join/leave a multicast group,
// receive datagrams on a background goroutine with a bounded poll so
// shutdown is responsive, and send datagrams with a configurable TTL.
//
// Grounded on original_source/jfNet/CastReceiver.py and CastSender.py, with
// the group-membership join/leave carried by golang.org/x/net/ipv4 the way
// incrementventures-govr/onvif/discovery.go uses it.
package multicast

import (
	"errors"
	"fmt"
	"net"
)

// ErrInvalidMulticastAddress is returned when an address outside
// 224.0.0.0-239.255.255.255 is passed to JoinGroup/LeaveGroup.
var ErrInvalidMulticastAddress = errors.New("multicast: address outside 224.0.0.0-239.255.255.255")

// ErrAddressAlreadyRegistered is returned by JoinGroup for a group already joined.
var ErrAddressAlreadyRegistered = errors.New("multicast: group already joined")

// ErrAddressNotRegistered is returned by LeaveGroup for a group that was never joined.
var ErrAddressNotRegistered = errors.New("multicast: group not joined")

func validateGroup(ip net.IP) error {
	ip4 := ip.To4()
	if ip4 == nil {
		return fmt.Errorf("%w: %s is not an IPv4 address", ErrInvalidMulticastAddress, ip)
	}
	first := ip4[0]
	if first < 224 || first > 239 {
		return fmt.Errorf("%w: %s", ErrInvalidMulticastAddress, ip)
	}
	return nil
}
