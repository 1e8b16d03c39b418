// Package onvif is a minimal ONVIF SOAP client supporting just the calls
// the discovery pipeline needs: GetHostname, GetProfiles,
// GetVideoSourceConfigurations, and GetStreamUri, with WS-Security
// UsernameToken password-digest auth.
//
// Grounded on SridarDhandapani-onvif's soap.go/device.go/media.go for
// envelope shape and digest construction, but written from scratch: that
// package's GetHostname always returns a nil error even on an
// authorization fault, which collapses a distinction the credential
// cascade in internal/probe depends on (see DESIGN.md).
package onvif

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotAuthorized is returned when the device rejects the supplied
// credentials with a SOAP NotAuthorized fault. Callers (internal/probe)
// distinguish this from transport errors to decide whether to try the
// next credential in the cascade or give up on the device entirely.
var ErrNotAuthorized = errors.New("onvif: not authorized")

// Client is a single ONVIF service-URL endpoint plus optional credentials.
type Client struct {
	ServiceURL string
	Username   string
	Password   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient constructs a Client bound to a device's ONVIF service URL.
func NewClient(serviceURL, username, password string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		ServiceURL: serviceURL,
		Username:   username,
		Password:   password,
		Timeout:    timeout,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func generatePasswordDigest(password string) (digest, nonceB64, created string) {
	created = time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	nonce := fmt.Sprintf("%d", time.Now().UnixNano())
	nonceBytes := []byte(nonce)
	nonceB64 = base64.StdEncoding.EncodeToString(nonceBytes)

	h := sha1.New()
	h.Write(nonceBytes)
	h.Write([]byte(created))
	h.Write([]byte(password))
	digest = base64.StdEncoding.EncodeToString(h.Sum(nil))
	return digest, nonceB64, created
}

func (c *Client) securityHeader() string {
	if c.Username == "" {
		return ""
	}
	digest, nonce, created := generatePasswordDigest(c.Password)
	return fmt.Sprintf(`<Security xmlns="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd">
	<UsernameToken>
		<Username>%s</Username>
		<Password Type="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordDigest">%s</Password>
		<Nonce EncodingType="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary">%s</Nonce>
		<Created xmlns="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd">%s</Created>
	</UsernameToken>
</Security>`, c.Username, digest, nonce, created)
}

// soapFault is enough of the SOAP 1.2 fault shape to recognize
// NotAuthorized by subcode.
type soapFault struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault struct {
			Code struct {
				Subcode struct {
					Value string `xml:"Value"`
				} `xml:"Subcode"`
			} `xml:"Code"`
			Reason struct {
				Text string `xml:"Text"`
			} `xml:"Reason"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

// call sends a single SOAP 1.2 request and returns the raw response body
// after checking for a fault. A NotAuthorized fault is reported as
// ErrNotAuthorized; any other fault or non-2xx HTTP status is a plain
// wrapped error.
func (c *Client) call(action, body string) ([]byte, error) {
	envelope := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"
            xmlns:tds="http://www.onvif.org/ver10/device/wsdl"
            xmlns:trt="http://www.onvif.org/ver10/media/wsdl"
            xmlns:tt="http://www.onvif.org/ver10/schema">
	<s:Header>%s</s:Header>
	<s:Body>%s</s:Body>
</s:Envelope>`, c.securityHeader(), body)

	req, err := http.NewRequest(http.MethodPost, c.ServiceURL, bytes.NewBufferString(envelope))
	if err != nil {
		return nil, fmt.Errorf("onvif: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", action)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("onvif: request %s: %w", action, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("onvif: read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrNotAuthorized
	}

	var fault soapFault
	if xml.Unmarshal(respBody, &fault) == nil && fault.Body.Fault.Reason.Text != "" {
		if strings.Contains(strings.ToLower(fault.Body.Fault.Code.Subcode.Value), "notauthorized") ||
			strings.Contains(strings.ToLower(fault.Body.Fault.Reason.Text), "not authorized") {
			return nil, ErrNotAuthorized
		}
		return nil, fmt.Errorf("onvif: soap fault: %s", fault.Body.Fault.Reason.Text)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("onvif: http %d", resp.StatusCode)
	}

	return respBody, nil
}
