// Package transport performs the HTTP delivery of encoded event batches.
// A client is built per endpoint, either with system trust roots or with a
// pinned certificate checked against the endpoint's expected common name.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SebastienMelki/pulse/internal/logging"
)

// Endpoint is one remote collection target. Order in the endpoint list
// supplied per request defines fallback priority.
type Endpoint struct {
	// Address is the host (and optional path) the request is sent to,
	// without scheme; requests always use https.
	Address string

	// UsePinnedCertificate enables certificate pinning for this endpoint
	// using the certificate configured on the factory.
	UsePinnedCertificate bool

	// CertificateCommonName is the common name expected on the presented
	// certificate when pinning is enabled.
	CertificateCommonName string
}

// URL returns the full request URL for the endpoint.
func (e Endpoint) URL() string {
	return "https://" + e.Address
}

// Request is a fully-formed POST to one endpoint.
type Request struct {
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is the status outcome of a delivery attempt that reached the
// remote side.
type Response struct {
	StatusCode int
	Status     string
}

// Delivery posts a request and reports either a response or a
// transport-level error (connection, TLS, timeout).
type Delivery interface {
	Post(ctx context.Context, req Request) (*Response, error)
}

// Factory builds a Delivery for an endpoint. Pinned and vanilla endpoints
// get distinct clients.
type Factory interface {
	Client(ep Endpoint) (Delivery, error)
}

// HTTPFactory builds net/http based deliveries with a shared request
// timeout, optional user agent, and optional pinning certificate (PEM).
type HTTPFactory struct {
	Certificate string
	UserAgent   string
	Timeout     time.Duration
	Log         *logging.Logger
}

// Client returns a Delivery for the endpoint. When the endpoint requests
// pinning, the factory's certificate is required; the engine checks for its
// presence before calling, so a missing certificate here is an error.
func (f *HTTPFactory) Client(ep Endpoint) (Delivery, error) {
	client := &http.Client{Timeout: f.Timeout}
	if ep.UsePinnedCertificate {
		tlsConfig, err := pinnedTLSConfig(f.Certificate, ep.CertificateCommonName)
		if err != nil {
			return nil, fmt.Errorf("configure pinning for %s: %w", ep.Address, err)
		}
		client.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	}
	return &httpDelivery{client: client, userAgent: f.UserAgent, log: f.Log}, nil
}

type httpDelivery struct {
	client    *http.Client
	userAgent string
	log       *logging.Logger
}

func (d *httpDelivery) Post(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if d.userAgent != "" {
		httpReq.Header.Set("User-Agent", d.userAgent)
	}

	d.log.Debugf("POST %s (%d bytes)", req.URL, len(req.Body))

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// The response body is not part of the delivery contract; drain it so
	// the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	d.log.Debugf("POST %s -> %d", req.URL, resp.StatusCode)

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     statusText(resp.StatusCode),
	}, nil
}

// statusText resolves the textual description for a status code, falling
// back to the bare code for non-standard statuses.
func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", code)
}
