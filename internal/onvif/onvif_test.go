package onvif

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHostname_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
  <s:Body>
    <GetHostnameResponse>
      <HostnameInformation><Name>cam-front-door</Name></HostnameInformation>
    </GetHostnameResponse>
  </s:Body>
</s:Envelope>`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "admin", "admin", time.Second)
	name, err := c.GetHostname()
	require.NoError(t, err)
	assert.Equal(t, "cam-front-door", name)
}

func TestGetHostname_NotAuthorizedFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
  <s:Body>
    <s:Fault>
      <s:Code><s:Subcode><s:Value>Sender:NotAuthorized</s:Value></s:Subcode></s:Code>
      <s:Reason><s:Text>Sender not Authorized</s:Text></s:Reason>
    </s:Fault>
  </s:Body>
</s:Envelope>`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "admin", "wrong", time.Second)
	_, err := c.GetHostname()
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestGetHostname_HTTPUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "", time.Second)
	_, err := c.GetHostname()
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestGetHostname_TransportErrorIsNotNotAuthorized(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", "", "", 200*time.Millisecond)
	_, err := c.GetHostname()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAuthorized)
}

func TestGetProfiles_ParsesEncodingAndResolution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
  <s:Body>
    <GetProfilesResponse>
      <Profiles token="profile_1">
        <Name>MainStream</Name>
        <VideoEncoderConfiguration>
          <Encoding>H264</Encoding>
          <Resolution><Width>1920</Width><Height>1080</Height></Resolution>
          <Quality>5</Quality>
          <RateControl><FrameRateLimit>25</FrameRateLimit></RateControl>
        </VideoEncoderConfiguration>
      </Profiles>
    </GetProfilesResponse>
  </s:Body>
</s:Envelope>`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "", time.Second)
	profiles, err := c.GetProfiles()
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "profile_1", profiles[0].Token)
	assert.Equal(t, EncodingH264, profiles[0].Encoding)
	assert.Equal(t, 1920, profiles[0].Resolution.Width)
	assert.Equal(t, 25, profiles[0].FrameRate)
}

func TestGetStreamUri_ParsesUri(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?>
<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope">
  <s:Body>
    <GetStreamUriResponse>
      <MediaUri><Uri>rtsp://192.168.1.50/stream1</Uri></MediaUri>
    </GetStreamUriResponse>
  </s:Body>
</s:Envelope>`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "", time.Second)
	uri, err := c.GetStreamUri("profile_1")
	require.NoError(t, err)
	assert.Equal(t, "rtsp://192.168.1.50/stream1", uri)
}
