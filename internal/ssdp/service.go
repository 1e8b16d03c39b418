package ssdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jaofeng/cctvgw/internal/eventbus"
	"github.com/jaofeng/cctvgw/internal/logger"
	"github.com/jaofeng/cctvgw/internal/multicast"
)

// Kind enumerates the events Service emits on its Bus. Names mirror
// SsdpEvents in the source (ReceivedSearch/ReceivedNotify/ReceivedByebye/
// SentSearch/SentNotify/DeviceJoined/DeviceLeaved).
type Kind string

const (
	KindReceivedSearch Kind = "received_search"
	KindReceivedNotify Kind = "received_notify"
	KindReceivedByebye Kind = "received_byebye"
	KindSentSearch     Kind = "sent_search"
	KindSentNotify     Kind = "sent_notify"
	KindDeviceJoined   Kind = "device_joined"
	KindDeviceLeaved   Kind = "device_leaved"
)

// Event carries the parsed content plus, for notify/byebye events, the
// resulting device table entry.
type Event struct {
	Remote  string
	Content Content
	Device  Device
}

// SearchFilter decides whether a received M-SEARCH's ST should be handled.
type SearchFilter func(Content) bool

// NotifyFilter decides whether a received NOTIFY's USN should be handled.
type NotifyFilter func(Content) bool

// Service runs the SSDP receive loop and periodic search/notify senders,
// dispatching parsed events synchronously through Bus. Grounded on
// SsdpService in the source, with its dict-keyed callback table replaced
// by internal/eventbus.
type Service struct {
	Bus *eventbus.Bus[Kind, Event]
	log *logger.Logger

	table *Table

	searchFilter SearchFilter
	notifyFilter NotifyFilter

	receiver *multicast.Receiver
	sender   *multicast.Sender

	mu          sync.Mutex
	stopSearch  chan struct{}
	stopNotify  chan struct{}
	searchDone  chan struct{}
	notifyDone  chan struct{}
}

// NewService constructs an idle Service. Call Start to begin listening.
func NewService(log *logger.Logger) *Service {
	return &Service{
		Bus:   eventbus.New[Kind, Event](),
		log:   log,
		table: NewTable(),
	}
}

// SetSearchFilter restricts which received M-SEARCH requests raise
// KindReceivedSearch, by ST value.
func (s *Service) SetSearchFilter(f SearchFilter) { s.searchFilter = f }

// SetNotifyFilter restricts which received NOTIFY requests raise
// KindReceivedNotify/KindDeviceJoined/KindDeviceLeaved, by USN value.
func (s *Service) SetNotifyFilter(f NotifyFilter) { s.notifyFilter = f }

// Devices returns a snapshot of the live device table.
func (s *Service) Devices() []Device { return s.table.All() }

// Start opens the multicast receiver bound to the SSDP port/group and
// begins dispatching parsed datagrams. It returns once the receiver socket
// is up; datagram handling continues on a background goroutine until ctx
// is canceled or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.receiver = multicast.NewReceiver(fmt.Sprintf(":%d", Port), s.onDatagram)
	s.receiver.ReuseAddr = true
	s.receiver.ReusePort = true
	if err := s.receiver.Start(ctx); err != nil {
		return fmt.Errorf("ssdp: start receiver: %w", err)
	}
	if err := s.receiver.JoinGroup(MulticastIP); err != nil {
		s.receiver.Stop()
		return fmt.Errorf("ssdp: join group: %w", err)
	}

	sender, err := multicast.NewSender(DefaultTTL)
	if err != nil {
		s.receiver.Stop()
		return fmt.Errorf("ssdp: start sender: %w", err)
	}
	s.sender = sender

	if s.log != nil {
		s.log.Info("ssdp listener started", "port", Port, "group", MulticastIP)
	}
	return nil
}

// Stop tears down the receiver and sender and waits for any running
// search/notify loops to exit.
func (s *Service) Stop() {
	s.StopSearchForever()
	s.StopNotifyForever()
	if s.receiver != nil {
		s.receiver.Stop()
	}
	if s.sender != nil {
		s.sender.Close()
	}
	if s.log != nil {
		s.log.Info("ssdp listener stopped")
	}
}

func (s *Service) onDatagram(d multicast.Datagram) {
	cnt, err := ParseContent(d.Payload)
	if err != nil {
		return
	}
	remote := d.Remote.String()

	switch {
	case cnt.Method == "M-SEARCH" && cnt.Get("MAN") == `"ssdp:discover"`:
		s.handleSearch(remote, cnt)
	case cnt.Method == "NOTIFY" && (cnt.Get("NTS") == "ssdp:alive" || cnt.Get("NTS") == "ssdp:byebye"):
		s.handleNotify(remote, cnt)
	}
}

func (s *Service) handleSearch(remote string, cnt Content) {
	if s.searchFilter != nil && !s.searchFilter(cnt) {
		return
	}
	s.Bus.Emit(KindReceivedSearch, Event{Remote: remote, Content: cnt})
}

func (s *Service) handleNotify(remote string, cnt Content) {
	if s.notifyFilter != nil && !s.notifyFilter(cnt) {
		return
	}

	usn := cnt.Get("USN")
	if cnt.Get("NTS") == "ssdp:alive" {
		maxAge, ok := cnt.MaxAge()
		if !ok {
			if s.log != nil {
				s.log.Warn("ssdp: NOTIFY missing max-age in CACHE-CONTROL", "remote", remote)
			}
			return
		}
		dev := Device{
			USN:       usn,
			NT:        cnt.Get("NT"),
			Location:  cnt.Get("LOCATION"),
			Server:    cnt.Get("SERVER"),
			ExpiresAt: time.Now().Add(time.Duration(maxAge) * time.Second),
			Headers:   cnt.Headers,
		}
		isJoin := s.table.Upsert(dev)
		s.Bus.Emit(KindReceivedNotify, Event{Remote: remote, Content: cnt, Device: dev})
		if isJoin {
			s.Bus.Emit(KindDeviceJoined, Event{Remote: remote, Content: cnt, Device: dev})
		}
		return
	}

	// ssdp:byebye
	dev, existed := s.table.Get(usn)
	if !existed {
		return
	}
	s.table.Remove(usn)
	s.Bus.Emit(KindReceivedByebye, Event{Remote: remote, Content: cnt, Device: dev})
	s.Bus.Emit(KindDeviceLeaved, Event{Remote: remote, Content: cnt, Device: dev})
}

// SearchOnce sends a single M-SEARCH to the SSDP multicast group.
func (s *Service) SearchOnce(content string) error {
	_, err := s.sender.Send(fmt.Sprintf("%s:%d", MulticastIP, Port), []byte(content), false)
	if err == nil {
		s.Bus.Emit(KindSentSearch, Event{Content: Content{Method: "M-SEARCH"}})
	}
	return err
}

// SearchForever sends an M-SEARCH every cycle until StopSearchForever is
// called. It runs on the calling goroutine — callers invoke it via `go`.
func (s *Service) SearchForever(cycle time.Duration, content string) {
	s.mu.Lock()
	s.stopSearch = make(chan struct{})
	s.searchDone = make(chan struct{})
	stop := s.stopSearch
	done := s.searchDone
	s.mu.Unlock()
	defer close(done)

	ticker := time.NewTicker(cycle)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = s.SearchOnce(content)
		}
	}
}

// StopSearchForever halts a running SearchForever loop, waiting for it to
// return.
func (s *Service) StopSearchForever() {
	s.mu.Lock()
	stop, done := s.stopSearch, s.searchDone
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// NotifyOnce sends a single ssdp:alive NOTIFY to the SSDP multicast group.
func (s *Service) NotifyOnce(content string) error {
	_, err := s.sender.Send(fmt.Sprintf("%s:%d", MulticastIP, Port), []byte(content), false)
	if err != nil {
		if s.log != nil {
			s.log.Error("ssdp: notify send failed", "error", err)
		}
		return err
	}
	s.Bus.Emit(KindSentNotify, Event{Content: Content{Method: "NOTIFY"}})
	return nil
}

// NotifyForever sends an ssdp:alive NOTIFY every cycle until
// StopNotifyForever is called. It runs on the calling goroutine.
func (s *Service) NotifyForever(cycle time.Duration, content string) {
	s.mu.Lock()
	s.stopNotify = make(chan struct{})
	s.notifyDone = make(chan struct{})
	stop := s.stopNotify
	done := s.notifyDone
	s.mu.Unlock()
	defer close(done)

	ticker := time.NewTicker(cycle)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = s.NotifyOnce(content)
		}
	}
}

// StopNotifyForever halts a running NotifyForever loop, waiting for it to
// return.
func (s *Service) StopNotifyForever() {
	s.mu.Lock()
	stop, done := s.stopNotify, s.notifyDone
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Sweep removes expired device entries (no byebye received before
// max-age elapsed) and emits KindDeviceLeaved for each.
func (s *Service) Sweep() {
	for _, usn := range s.table.Sweep(time.Now()) {
		s.Bus.Emit(KindDeviceLeaved, Event{Device: Device{USN: usn}})
	}
}
