package ssdp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaofeng/cctvgw/internal/logger"
)

func TestService_HandleNotify_AliveThenByebye_EmitsJoinAndLeave(t *testing.T) {
	s := NewService(logger.NewNopLogger())

	var joined, left, notified []Event
	s.Bus.On(KindDeviceJoined, func(e Event) { joined = append(joined, e) })
	s.Bus.On(KindDeviceLeaved, func(e Event) { left = append(left, e) })
	s.Bus.On(KindReceivedNotify, func(e Event) { notified = append(notified, e) })

	alive, err := ParseContent([]byte(
		"NOTIFY * HTTP/1.1\r\n" +
			"NTS: ssdp:alive\r\n" +
			"CACHE-CONTROL: max-age=1800\r\n" +
			"LOCATION: http://192.168.1.50/desc.xml\r\n" +
			"NT: upnp:rootdevice\r\n" +
			"USN: uuid:cam-1::upnp:rootdevice\r\n\r\n"))
	require.NoError(t, err)

	s.handleNotify("192.168.1.50:1900", alive)
	s.handleNotify("192.168.1.50:1900", alive) // refresh, not a second join

	require.Len(t, joined, 1)
	assert.Equal(t, "uuid:cam-1::upnp:rootdevice", joined[0].Device.USN)
	assert.Len(t, notified, 2)
	assert.Len(t, left, 0)

	byebye, err := ParseContent([]byte(
		"NOTIFY * HTTP/1.1\r\n" +
			"NTS: ssdp:byebye\r\n" +
			"NT: upnp:rootdevice\r\n" +
			"USN: uuid:cam-1::upnp:rootdevice\r\n\r\n"))
	require.NoError(t, err)

	s.handleNotify("192.168.1.50:1900", byebye)
	require.Len(t, left, 1)
	assert.Equal(t, "uuid:cam-1::upnp:rootdevice", left[0].Device.USN)

	_, ok := s.table.Get("uuid:cam-1::upnp:rootdevice")
	assert.False(t, ok)
}

func TestService_HandleNotify_MissingMaxAgeIsDropped(t *testing.T) {
	s := NewService(logger.NewNopLogger())
	var joined []Event
	s.Bus.On(KindDeviceJoined, func(e Event) { joined = append(joined, e) })

	cnt, err := ParseContent([]byte(
		"NOTIFY * HTTP/1.1\r\nNTS: ssdp:alive\r\nUSN: uuid:bad\r\n\r\n"))
	require.NoError(t, err)

	s.handleNotify("10.0.0.1:1900", cnt)
	assert.Empty(t, joined)
}

func TestService_HandleNotify_ByebyeForUnknownDeviceIsNoop(t *testing.T) {
	s := NewService(logger.NewNopLogger())
	var left []Event
	s.Bus.On(KindDeviceLeaved, func(e Event) { left = append(left, e) })

	cnt, err := ParseContent([]byte("NOTIFY * HTTP/1.1\r\nNTS: ssdp:byebye\r\nUSN: uuid:never-seen\r\n\r\n"))
	require.NoError(t, err)

	s.handleNotify("10.0.0.1:1900", cnt)
	assert.Empty(t, left)
}

func TestService_NotifyFilter_RejectsNonMatchingUSN(t *testing.T) {
	s := NewService(logger.NewNopLogger())
	s.SetNotifyFilter(func(c Content) bool { return c.Get("USN") == "uuid:wanted" })

	var notified []Event
	s.Bus.On(KindReceivedNotify, func(e Event) { notified = append(notified, e) })

	cnt, err := ParseContent([]byte(
		"NOTIFY * HTTP/1.1\r\nNTS: ssdp:alive\r\nCACHE-CONTROL: max-age=60\r\nUSN: uuid:other\r\n\r\n"))
	require.NoError(t, err)

	s.handleNotify("10.0.0.1:1900", cnt)
	assert.Empty(t, notified)
}

func TestService_SearchFilter_RejectsNonMatchingST(t *testing.T) {
	s := NewService(logger.NewNopLogger())
	s.SetSearchFilter(func(c Content) bool { return c.Get("ST") == "ssdp:all" })

	var received []Event
	s.Bus.On(KindReceivedSearch, func(e Event) { received = append(received, e) })

	cnt, err := ParseContent([]byte("M-SEARCH * HTTP/1.1\r\nMAN: \"ssdp:discover\"\r\nST: urn:other\r\n\r\n"))
	require.NoError(t, err)

	s.handleSearch("10.0.0.1:1900", cnt)
	assert.Empty(t, received)
}

func TestService_Sweep_EmitsLeaveForExpiredEntriesOnly(t *testing.T) {
	s := NewService(logger.NewNopLogger())
	s.table.Upsert(Device{USN: "stale", ExpiresAt: time.Now().Add(-time.Second)})
	s.table.Upsert(Device{USN: "fresh", ExpiresAt: time.Now().Add(time.Hour)})

	var left []Event
	s.Bus.On(KindDeviceLeaved, func(e Event) { left = append(left, e) })

	s.Sweep()
	require.Len(t, left, 1)
	assert.Equal(t, "stale", left[0].Device.USN)
}
