// Package probe implements the ONVIF credential-cascade algorithm: given a
// device service URL and a list of credentials to try, find the first one
// that authenticates and return the device's hostname, profiles, and
// video source.
//
// Grounded on original_source/cctv/onvifAgent.py's getOnvifInfo in full.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jaofeng/cctvgw/internal/onvif"
)

// ErrUnsupportedScheme is returned when the service URL isn't http(s).
var ErrUnsupportedScheme = errors.New("probe: unsupported service URL scheme")

// ErrAuthExhausted is returned when every credential in the cascade was
// rejected (or errored) for a device.
var ErrAuthExhausted = errors.New("probe: no credential authenticated")

// Credential is one (user, password) pair to try against a device.
type Credential struct {
	User     string
	Password string
}

// DefaultCredentials mirrors DEF_AUTHS from the source: try anonymous,
// then the common admin defaults, in order.
var DefaultCredentials = []Credential{
	{User: "", Password: ""},
	{User: "admin", Password: ""},
	{User: "admin", Password: "admin"},
}

// Result is everything learned about a device after a successful probe.
type Result struct {
	ServiceURL string
	IP         string
	Port       int
	HostName   string
	User       string
	Password   string
	Source     *onvif.VideoSource
	Profiles   []onvif.Profile
}

// Probe tries each credential against serviceURL in order, returning on
// the first one that authenticates (GetHostname succeeds). If the URL
// carries userinfo (a credential-URL shortcut), that single credential is
// used instead of the cascade. Per-credential SOAP calls are bounded by
// ctx. Mirrors onvifAgent.py's __getHostName/getOnvifInfo: any
// GetHostname failure, not just ErrNotAuthorized, skips to the next
// credential rather than aborting the cascade — a SOAP fault the client
// doesn't specifically map to ErrNotAuthorized (or a single unreachable
// attempt) must not prevent a later, working credential from being
// tried. ErrAuthExhausted is returned once every credential has failed.
func Probe(ctx context.Context, serviceURL string, creds []Credential) (*Result, error) {
	parsed, err := url.Parse(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("probe: parse service URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}

	ip, port := splitHostPort(parsed.Host)

	if parsed.User != nil {
		pass, _ := parsed.User.Password()
		creds = []Credential{{User: parsed.User.Username(), Password: pass}}
	} else if len(creds) == 0 {
		creds = DefaultCredentials
	}

	for _, cred := range creds {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		client := onvif.NewClient(serviceURL, cred.User, cred.Password, timeoutFromContext(ctx))
		hostName, err := client.GetHostname()
		if err != nil {
			continue
		}

		result := &Result{
			ServiceURL: serviceURL,
			IP:         ip,
			Port:       port,
			HostName:   hostName,
			User:       cred.User,
			Password:   cred.Password,
		}

		sources, err := client.GetVideoSourceConfigurations()
		if err != nil {
			// authenticated but the media service failed: like a
			// GetHostname failure, this skips to the next credential.
			continue
		}
		if len(sources) > 0 {
			result.Source = &sources[0]
		}

		profiles, err := client.GetProfiles()
		if err != nil {
			continue
		}
		for i := range profiles {
			uri, err := client.GetStreamUri(profiles[i].Token)
			if err == nil {
				profiles[i].StreamURL = uri
			}
		}
		result.Profiles = profiles
		return result, nil
	}

	return nil, ErrAuthExhausted
}

func splitHostPort(host string) (ip string, port int) {
	h := host
	if at := strings.LastIndex(h, "@"); at >= 0 {
		h = h[at+1:]
	}
	parts := strings.SplitN(h, ":", 2)
	ip = parts[0]
	port = 80
	if len(parts) > 1 {
		if p, err := strconv.Atoi(parts[1]); err == nil {
			port = p
		}
	}
	return ip, port
}

func timeoutFromContext(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return 10 * time.Second
}

// ServiceURL builds an ONVIF device-service URL for (ip, port) exactly
// the way a seeded camera without a discovered LOCATION gets one:
// http://ip[:port]/onvif/device_service, omitting the port when it's 80.
func ServiceURL(ip string, port int) string {
	if port == 0 || port == 80 {
		return fmt.Sprintf("http://%s/onvif/device_service", ip)
	}
	return fmt.Sprintf("http://%s:%d/onvif/device_service", ip, port)
}
