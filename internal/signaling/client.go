package signaling

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pion/webrtc/v4"
)

const (
	contentTypeSDP = "application/sdp"
	maxBodySize    = 1 << 20
)

var (
	errEmptySDP = errors.New("empty description")
	errNoMedia  = errors.New("no audio or video section")
)

// Endpoint identifies a WHEP server. It is immutable once a session starts.
type Endpoint struct {
	URL        *url.URL
	Token      string
	ICEServers []webrtc.ICEServer
}

// ParseEndpoint parses raw into an Endpoint.
func ParseEndpoint(raw, token string, iceServers []webrtc.ICEServer) (Endpoint, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Endpoint{}, fmt.Errorf("invalid WHEP endpoint: %q", raw)
	}
	return Endpoint{URL: u, Token: token, ICEServers: iceServers}, nil
}

// ResolveResource turns a Location header into an absolute resource URL.
// Relative locations are resolved against the endpoint's origin.
func (e Endpoint) ResolveResource(location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", nil
	}

	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid Location %q: %w", location, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}

	origin := &url.URL{Scheme: e.URL.Scheme, Host: e.URL.Host, Path: "/"}
	return origin.ResolveReference(ref).String(), nil
}

// response is the part of an HTTP response the negotiator classifies.
type response struct {
	status   int
	location string
	body     string
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// exchange performs one signaling request bound to ctx.
func (n *Negotiator) exchange(ctx context.Context, method, target, body string) (*response, error) {
	var reader io.Reader
	if method != http.MethodDelete {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", contentTypeSDP)
		req.Header.Set("Accept", contentTypeSDP)
	}
	if n.endpoint.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.endpoint.Token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}

	return &response{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		body:     string(data),
	}, nil
}
