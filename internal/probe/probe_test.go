package probe

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice serves GetHostname and rejects every credential except one.
func fakeDevice(t *testing.T, goodUser, goodPass string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		user := extractUsernameToken(body)
		if user != goodUser || !passwordMatches(body, goodPass) {
			fmt.Fprint(w, `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
<s:Body><s:Fault><s:Code><s:Subcode><s:Value>NotAuthorized</s:Value></s:Subcode></s:Code>
<s:Reason><s:Text>Sender not Authorized</s:Text></s:Reason></s:Fault></s:Body></s:Envelope>`)
			return
		}
		fmt.Fprint(w, `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
<s:Body><GetHostnameResponse><HostnameInformation><Name>test-cam</Name></HostnameInformation></GetHostnameResponse></s:Body></s:Envelope>`)
	}))
}

type envelope struct {
	Header struct {
		Security struct {
			UsernameToken struct {
				Username string `xml:"Username"`
				Password string `xml:"Password"`
				Nonce    string `xml:"Nonce"`
				Created  string `xml:"Created"`
			} `xml:"UsernameToken"`
		} `xml:"Security"`
	} `xml:"Header"`
}

func extractUsernameToken(body []byte) string {
	var env envelope
	_ = xml.Unmarshal(body, &env)
	return env.Header.Security.UsernameToken.Username
}

// passwordMatches recomputes the WS-Security password digest from the
// request's nonce and timestamp and compares it with the one sent.
func passwordMatches(body []byte, password string) bool {
	var env envelope
	_ = xml.Unmarshal(body, &env)
	tok := env.Header.Security.UsernameToken
	nonce, err := base64.StdEncoding.DecodeString(tok.Nonce)
	if err != nil {
		return false
	}
	h := sha1.New()
	h.Write(nonce)
	h.Write([]byte(tok.Created))
	h.Write([]byte(password))
	return base64.StdEncoding.EncodeToString(h.Sum(nil)) == tok.Password
}

func TestProbe_FindsWorkingCredentialInCascade(t *testing.T) {
	srv := fakeDevice(t, "admin", "admin")
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := Probe(ctx, srv.URL, DefaultCredentials)
	require.NoError(t, err)
	assert.Equal(t, "test-cam", result.HostName)
	assert.Equal(t, "admin", result.User)
	assert.Equal(t, "admin", result.Password)
}

func TestProbe_ExhaustsAllCredentials(t *testing.T) {
	srv := fakeDevice(t, "nobody", "nobody")
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Probe(ctx, srv.URL, DefaultCredentials)
	require.ErrorIs(t, err, ErrAuthExhausted)
}

// TestProbe_SkipsCredentialOnNonAuthFault ensures a SOAP fault the client
// doesn't recognize as ErrNotAuthorized still only costs one credential,
// not the whole cascade — a misclassified fault (or a single unreachable
// attempt) must not hide a later, working credential.
func TestProbe_SkipsCredentialOnNonAuthFault(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("SOAPAction") == "http://www.onvif.org/ver10/device/wsdl/GetHostname" {
			calls++
		}
		body, _ := io.ReadAll(r.Body)
		user := extractUsernameToken(body)
		if user != "admin" {
			fmt.Fprint(w, `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
<s:Body><s:Fault><s:Code><s:Subcode><s:Value>Receiver</s:Value></s:Subcode></s:Code>
<s:Reason><s:Text>internal error</s:Text></s:Reason></s:Fault></s:Body></s:Envelope>`)
			return
		}
		fmt.Fprint(w, `<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
<s:Body><GetHostnameResponse><HostnameInformation><Name>test-cam</Name></HostnameInformation></GetHostnameResponse></s:Body></s:Envelope>`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := Probe(ctx, srv.URL, DefaultCredentials)
	require.NoError(t, err)
	assert.Equal(t, "admin", result.User)
	assert.Equal(t, 2, calls, "expected the first (anonymous) credential's fault to be skipped, not aborted on")
}

func TestProbe_RejectsNonHTTPScheme(t *testing.T) {
	_, err := Probe(context.Background(), "rtsp://192.168.1.5/onvif/device_service", nil)
	require.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestProbe_UsesURLUserinfoAsSingleCredential(t *testing.T) {
	srv := fakeDevice(t, "bob", "secret")
	defer srv.Close()

	u := "http://bob:secret@" + srv.URL[len("http://"):]
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := Probe(ctx, u, nil)
	require.NoError(t, err)
	assert.Equal(t, "bob", result.User)
}

func TestServiceURL_OmitsDefaultPort(t *testing.T) {
	assert.Equal(t, "http://10.0.0.5/onvif/device_service", ServiceURL("10.0.0.5", 80))
	assert.Equal(t, "http://10.0.0.5:8080/onvif/device_service", ServiceURL("10.0.0.5", 8080))
}
