// Package ssdp implements the SSDP device-discovery engine: wire parsing,
// the device table, and the M-SEARCH/NOTIFY service loop, built on top of
// internal/multicast.
//
// Grounded on original_source/jfNet/SSDP.py in full.
package ssdp

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	Port        = 1900
	MulticastIP = "239.255.255.250"
	DefaultTTL  = 4
)

var (
	requestLineRe = regexp.MustCompile(`^(\S+)\s+\S+\s+HTTP/(\d\.\d)`)
	headerLineRe  = regexp.MustCompile(`^([\w-]+):\s?(.*)$`)
	maxAgeRe      = regexp.MustCompile(`max-age\s*=\s*(\d+)`)
)

// Content is a parsed SSDP message: the request method plus a
// case-insensitive header map (keys upper-cased on insert, mirroring
// SsdpContent's behavior in the source).
type Content struct {
	Method  string // "M-SEARCH" or "NOTIFY"
	Version string
	Headers map[string]string
}

// Get returns a header value by case-insensitive key.
func (c Content) Get(key string) string {
	return c.Headers[strings.ToUpper(key)]
}

// MaxAge parses the CACHE-CONTROL header's max-age directive. ok is false
// when the header is absent or doesn't contain max-age.
func (c Content) MaxAge() (seconds int, ok bool) {
	m := maxAgeRe.FindStringSubmatch(c.Get("CACHE-CONTROL"))
	if m == nil {
		return 0, false
	}
	var n int
	if _, err := fmt.Sscanf(m[1], "%d", &n); err != nil {
		return 0, false
	}
	return n, true
}

// ParseContent parses a raw SSDP datagram (request-line + CRLF headers)
// into a Content. Returns an error if the request line doesn't match the
// expected "METHOD * HTTP/x.y" shape.
func ParseContent(raw []byte) (Content, error) {
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	if len(lines) == 0 {
		return Content{}, fmt.Errorf("ssdp: empty message")
	}

	m := requestLineRe.FindStringSubmatch(lines[0])
	if m == nil {
		return Content{}, fmt.Errorf("ssdp: unrecognized request line %q", lines[0])
	}

	c := Content{Method: strings.ToUpper(m[1]), Version: m[2], Headers: make(map[string]string)}
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		hm := headerLineRe.FindStringSubmatch(line)
		if hm == nil {
			continue
		}
		c.Headers[strings.ToUpper(hm[1])] = strings.TrimSpace(hm[2])
	}
	return c, nil
}

// BuildSearchContent renders a compliant M-SEARCH request body. mx and st
// are required; extra carries any additional caller headers, preserved
// verbatim (upper-cased like every other header).
func BuildSearchContent(mx, st string, extra map[string]string) string {
	var b strings.Builder
	b.WriteString("M-SEARCH * HTTP/1.1\r\n")
	fmt.Fprintf(&b, "HOST: %s:%d\r\n", MulticastIP, Port)
	b.WriteString(`MAN: "ssdp:discover"` + "\r\n")
	fmt.Fprintf(&b, "MX: %s\r\n", mx)
	fmt.Fprintf(&b, "ST: %s\r\n", st)
	for k, v := range extra {
		fmt.Fprintf(&b, "%s: %s\r\n", strings.ToUpper(k), v)
	}
	b.WriteString("\r\n")
	return b.String()
}

// BuildNotifyContent renders a compliant ssdp:alive NOTIFY body. maxAge,
// location, nt, and usn are required; extra carries any additional caller
// headers.
func BuildNotifyContent(maxAge int, location, nt, usn string, extra map[string]string) string {
	var b strings.Builder
	b.WriteString("NOTIFY * HTTP/1.1\r\n")
	fmt.Fprintf(&b, "HOST: %s:%d\r\n", MulticastIP, Port)
	b.WriteString("NTS: ssdp:alive\r\n")
	fmt.Fprintf(&b, "CACHE-CONTROL: max-age=%d\r\n", maxAge)
	fmt.Fprintf(&b, "LOCATION: %s\r\n", location)
	fmt.Fprintf(&b, "NT: %s\r\n", nt)
	fmt.Fprintf(&b, "USN: %s\r\n", usn)
	for k, v := range extra {
		fmt.Fprintf(&b, "%s: %s\r\n", strings.ToUpper(k), v)
	}
	b.WriteString("\r\n")
	return b.String()
}
