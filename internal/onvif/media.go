package onvif

import "encoding/xml"

// Encoding enumerates the video codecs ONVIF profiles report.
type Encoding string

const (
	EncodingH264  Encoding = "H264"
	EncodingH265  Encoding = "H265"
	EncodingMJPEG Encoding = "MJPEG"
	EncodingJPEG  Encoding = "JPEG"
)

// Resolution is a width/height pair.
type Resolution struct {
	Width  int
	Height int
}

// Profile is one ONVIF media profile: encoding, resolution, frame rate,
// and (once resolved via GetStreamUri) its RTSP stream URL.
type Profile struct {
	Name       string
	Token      string
	Encoding   Encoding
	Resolution Resolution
	Quality    int
	FrameRate  int
	StreamURL  string
}

// VideoSource is a physical/logical video source a device exposes.
type VideoSource struct {
	Name       string
	Resolution Resolution
}

type profilesResponse struct {
	Body struct {
		GetProfilesResponse struct {
			Profiles []struct {
				Token string `xml:"token,attr"`
				Name  string `xml:"Name"`
				VideoEncoderConfiguration struct {
					Encoding   string `xml:"Encoding"`
					Resolution struct {
						Width  int `xml:"Width"`
						Height int `xml:"Height"`
					} `xml:"Resolution"`
					Quality   int `xml:"Quality"`
					RateControl struct {
						FrameRateLimit int `xml:"FrameRateLimit"`
					} `xml:"RateControl"`
				} `xml:"VideoEncoderConfiguration"`
			} `xml:"Profiles"`
		} `xml:"GetProfilesResponse"`
	} `xml:"Body"`
}

// GetProfiles returns the device's configured media profiles, in the
// order the device reports them.
func (c *Client) GetProfiles() ([]Profile, error) {
	body, err := c.call(
		"http://www.onvif.org/ver10/media/wsdl/GetProfiles",
		`<trt:GetProfiles/>`,
	)
	if err != nil {
		return nil, err
	}

	var resp profilesResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	profiles := make([]Profile, 0, len(resp.Body.GetProfilesResponse.Profiles))
	for _, p := range resp.Body.GetProfilesResponse.Profiles {
		enc := p.VideoEncoderConfiguration.Encoding
		profiles = append(profiles, Profile{
			Name:  p.Name,
			Token: p.Token,
			Encoding: Encoding(enc),
			Resolution: Resolution{
				Width:  p.VideoEncoderConfiguration.Resolution.Width,
				Height: p.VideoEncoderConfiguration.Resolution.Height,
			},
			Quality:   p.VideoEncoderConfiguration.Quality,
			FrameRate: p.VideoEncoderConfiguration.RateControl.FrameRateLimit,
		})
	}
	return profiles, nil
}

type videoSourcesResponse struct {
	Body struct {
		GetVideoSourceConfigurationsResponse struct {
			Configurations []struct {
				Name   string `xml:"Name"`
				Bounds struct {
					Width  int `xml:"width,attr"`
					Height int `xml:"height,attr"`
				} `xml:"Bounds"`
			} `xml:"Configurations"`
		} `xml:"GetVideoSourceConfigurationsResponse"`
	} `xml:"Body"`
}

// GetVideoSourceConfigurations returns the device's physical video
// sources.
func (c *Client) GetVideoSourceConfigurations() ([]VideoSource, error) {
	body, err := c.call(
		"http://www.onvif.org/ver10/media/wsdl/GetVideoSourceConfigurations",
		`<trt:GetVideoSourceConfigurations/>`,
	)
	if err != nil {
		return nil, err
	}

	var resp videoSourcesResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	sources := make([]VideoSource, 0, len(resp.Body.GetVideoSourceConfigurationsResponse.Configurations))
	for _, c := range resp.Body.GetVideoSourceConfigurationsResponse.Configurations {
		sources = append(sources, VideoSource{
			Name:       c.Name,
			Resolution: Resolution{Width: c.Bounds.Width, Height: c.Bounds.Height},
		})
	}
	return sources, nil
}

type streamURIResponse struct {
	Body struct {
		GetStreamUriResponse struct {
			MediaUri struct {
				Uri string `xml:"Uri"`
			} `xml:"MediaUri"`
		} `xml:"GetStreamUriResponse"`
	} `xml:"Body"`
}

// GetStreamUri requests the RTSP-over-RTP-unicast stream URL for a
// profile token.
func (c *Client) GetStreamUri(profileToken string) (string, error) {
	reqBody := `<trt:GetStreamUri>
		<trt:StreamSetup>
			<tt:Stream xmlns:tt="http://www.onvif.org/ver10/schema">RTP-Unicast</tt:Stream>
			<tt:Transport xmlns:tt="http://www.onvif.org/ver10/schema">
				<tt:Protocol>RTSP</tt:Protocol>
			</tt:Transport>
		</trt:StreamSetup>
		<trt:ProfileToken>` + profileToken + `</trt:ProfileToken>
	</trt:GetStreamUri>`

	body, err := c.call("http://www.onvif.org/ver10/media/wsdl/GetStreamUri", reqBody)
	if err != nil {
		return "", err
	}

	var resp streamURIResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	return resp.Body.GetStreamUriResponse.MediaUri.Uri, nil
}
