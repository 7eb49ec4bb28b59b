package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
)

// DefaultUserAgent identifies this scraper to remote servers.
const DefaultUserAgent = "wcag-scrapper/1.0"

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client    *resty.Client
	transport *http.Transport
}

// NewRestyClient creates a RestyClient with its own transport, so connections are
// never shared with other clients.
func NewRestyClient(opts Options) (*RestyClient, error) {
	transport, err := newTransport(opts)
	if err != nil {
		return nil, err
	}

	c := resty.New()
	c.SetTransport(transport)

	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}
	c.SetHeader("User-Agent", ua)

	if opts.Logger != nil {
		c.SetLogger(opts.Logger)
	}

	return &RestyClient{client: c, transport: transport}, nil
}

// Build is the default Builder, backed by resty.
func Build(opts Options) (Client, error) {
	c, err := NewRestyClient(opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newTransport(opts Options) (*http.Transport, error) {
	var transport *http.Transport
	if base, ok := http.DefaultTransport.(*http.Transport); ok {
		transport = base.Clone()
	} else {
		transport = &http.Transport{Proxy: http.ProxyFromEnvironment}
	}

	path := strings.TrimSpace(opts.CABundleFile)
	if path == "" {
		return transport, nil
	}

	pool, err := loadCertPool(path)
	if err != nil {
		return nil, err
	}
	transport.TLSClientConfig = &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}
	return transport, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ca bundle: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(raw) {
		return nil, fmt.Errorf("ca bundle %s contains no PEM certificates", path)
	}
	return pool, nil
}

// Get performs an HTTP GET and returns as soon as the response head is available.
// The caller owns the returned body.
func (r *RestyClient) Get(ctx context.Context, url string) (Response, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// Close drops idle connections held by the client's transport.
func (r *RestyClient) Close() {
	if r == nil || r.transport == nil {
		return
	}
	r.transport.CloseIdleConnections()
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }
func (r *restyResponseAdapter) IsSuccess() bool { return r.resp.IsSuccess() }

func (r *restyResponseAdapter) Status() string {
	if s := strings.TrimSpace(r.resp.Status()); s != "" {
		return s
	}
	code := r.resp.StatusCode()
	return strings.TrimSpace(fmt.Sprintf("%d %s", code, http.StatusText(code)))
}

func (r *restyResponseAdapter) RawBody() io.ReadCloser {
	if body := r.resp.RawBody(); body != nil {
		return body
	}
	return http.NoBody
}
