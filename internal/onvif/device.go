package onvif

import "encoding/xml"

type getHostnameResponse struct {
	Body struct {
		GetHostnameResponse struct {
			HostnameInformation struct {
				Name string `xml:"Name"`
			} `xml:"HostnameInformation"`
		} `xml:"GetHostnameResponse"`
	} `xml:"Body"`
}

// GetHostname calls the device service's GetHostname operation. A failed
// credential returns ErrNotAuthorized (see soap.go's call/fault handling)
// rather than swallowing the distinction the way a naive wrapper might.
func (c *Client) GetHostname() (string, error) {
	body, err := c.call(
		"http://www.onvif.org/ver10/device/wsdl/GetHostname",
		`<tds:GetHostname/>`,
	)
	if err != nil {
		return "", err
	}

	var resp getHostnameResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	return resp.Body.GetHostnameResponse.HostnameInformation.Name, nil
}
