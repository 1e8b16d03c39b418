// Package wsdiscovery implements the WS-Discovery probe/match exchange
// used to find ONVIF NetworkVideoTransmitter devices: a SOAP-over-UDP
// probe to the WS-Discovery multicast group, collecting ProbeMatches
// responses for a fixed window.
//
// Grounded on incrementventures-govr/onvif/discovery.go (probe template,
// UUID substitution, XAddr host-rewrite-to-observed-source-IP trick) and
// SridarDhandapani-onvif/discovery.go (probe/match envelope shape), built
// on internal/multicast instead of a raw ipv4.PacketConn.
package wsdiscovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaofeng/cctvgw/internal/multicast"
)

const (
	Port        = 3702
	MulticastIP = "239.255.255.250"

	networkVideoTransmitterType = "NetworkVideoTransmitter"
)

const probeTemplate = `<?xml version="1.0" ?>
<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
	<s:Header xmlns:a="http://schemas.xmlsoap.org/ws/2004/08/addressing">
		<a:Action>http://schemas.xmlsoap.org/ws/2005/04/discovery/Probe</a:Action>
		<a:MessageID>urn:uuid:%s</a:MessageID>
		<a:To>urn:schemas-xmlsoap-org:ws:2005:04:discovery</a:To>
	</s:Header>
	<s:Body>
		<d:Probe xmlns:d="http://schemas.xmlsoap.org/ws/2005/04/discovery">
			<d:Types xmlns:dn="http://www.onvif.org/ver10/network/wsdl">dn:NetworkVideoTransmitter</d:Types>
			<d:Scopes />
		</d:Probe>
	</s:Body>
</s:Envelope>`

type probeMatchesEnvelope struct {
	Header struct {
		RelatesTo string `xml:"RelatesTo"`
	} `xml:"Header"`
	Body struct {
		ProbeMatches struct {
			ProbeMatch []struct {
				EndpointReference string `xml:"EndpointReference>Address"`
				Types             string `xml:"Types"`
				Scopes            string `xml:"Scopes"`
				XAddrs            string `xml:"XAddrs"`
			} `xml:"ProbeMatch"`
		} `xml:"ProbeMatches"`
	} `xml:"Body"`
}

// Match is one discovered device's ONVIF service address, with the XAddr
// host rewritten to the multicast response's observed source IP — some
// cameras report a stale or wrong address in their own XAddrs.
type Match struct {
	EndpointReference string
	ServiceURL         string
}

// Discover sends a single WS-Discovery probe and collects
// NetworkVideoTransmitter matches until ctx is done or timeout elapses,
// whichever comes first. Duplicate endpoint references are coalesced.
func Discover(ctx context.Context, timeout time.Duration) ([]Match, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	seen := make(map[string]Match)

	msgID := uuid.NewString()

	recv := multicast.NewReceiver(":0", func(d multicast.Datagram) {
		var env probeMatchesEnvelope
		if err := xml.Unmarshal(d.Payload, &env); err != nil {
			return
		}
		if !strings.Contains(env.Header.RelatesTo, msgID) {
			return
		}
		srcIP := hostFromAddr(d.Remote)

		mu.Lock()
		defer mu.Unlock()
		for _, m := range env.Body.ProbeMatches.ProbeMatch {
			if !strings.Contains(m.Types, networkVideoTransmitterType) {
				continue
			}
			svcURL := rewriteHost(m.XAddrs, srcIP)
			if svcURL == "" {
				continue
			}
			seen[m.EndpointReference] = Match{EndpointReference: m.EndpointReference, ServiceURL: svcURL}
		}
	})

	if err := recv.Start(ctx); err != nil {
		return nil, fmt.Errorf("wsdiscovery: start receiver: %w", err)
	}
	defer recv.Stop()

	sender, err := multicast.NewSender(0)
	if err != nil {
		return nil, fmt.Errorf("wsdiscovery: start sender: %w", err)
	}
	defer sender.Close()

	probe := fmt.Sprintf(probeTemplate, msgID)
	if _, err := sender.Send(fmt.Sprintf("%s:%d", MulticastIP, Port), []byte(probe), false); err != nil {
		return nil, fmt.Errorf("wsdiscovery: send probe: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	out := make([]Match, 0, len(seen))
	for _, m := range seen {
		out = append(out, m)
	}
	return out, nil
}

func hostFromAddr(addr interface{ String() string }) string {
	s := addr.String()
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		return s[:idx]
	}
	return s
}

func rewriteHost(xaddrs, srcIP string) string {
	first := strings.Fields(xaddrs)
	if len(first) == 0 {
		return ""
	}
	u, err := url.Parse(first[0])
	if err != nil {
		return ""
	}
	if port := u.Port(); port != "" {
		u.Host = fmt.Sprintf("%s:%s", srcIP, port)
	} else {
		u.Host = srcIP
	}
	return u.String()
}
