package agent

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"regexp"
)

// endpointPattern extracts an ip[:port] pair out of a presentationURL,
// tolerating a missing scheme. Mirrors _epFilter from the source.
var endpointPattern = regexp.MustCompile(`(?:http://)?(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:?\d{0,5})/?`)

type deviceDescription struct {
	XMLName xml.Name `xml:"root"`
	Device  struct {
		FriendlyName    string `xml:"friendlyName"`
		PresentationURL string `xml:"presentationURL"`
	} `xml:"device"`
}

// fetchDeviceDescription retrieves and parses the UPnP device-description
// document at an SSDP NOTIFY's LOCATION URL, returning the friendly name
// and the ip[:port] endpoint its presentationURL advertises (which may
// differ from the NOTIFY's source address — some devices bind ONVIF on a
// second interface or port). A fetch failure is reported, not panicked;
// the caller falls back to the bare announced IP.
func fetchDeviceDescription(ctx context.Context, location string) (friendlyName, endpoint string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return "", "", fmt.Errorf("agent: build request for %s: %w", location, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("agent: fetch %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("agent: fetch %s: status %d", location, resp.StatusCode)
	}

	var desc deviceDescription
	if err := xml.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return "", "", fmt.Errorf("agent: parse device description from %s: %w", location, err)
	}

	ep := ""
	if m := endpointPattern.FindStringSubmatch(desc.Device.PresentationURL); m != nil {
		ep = m[1]
	}
	return desc.Device.FriendlyName, ep, nil
}
