package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"
)

// MaxBeaconSize is the largest body a beacon accepts, matching browsers.
const MaxBeaconSize = 64 * 1024

// DefaultTimeout bounds asynchronous deliveries.
const DefaultTimeout = 10 * time.Second

// ContentType is sent with every payload body.
const ContentType = "text/plain;charset=UTF-8"

// NewHTTPClient returns a client for delivering payloads. A non-empty
// proxyAddress ("host:port") routes all connections through a SOCKS5 proxy.
// The client keeps cookies, like a browser sending credentials.
func NewHTTPClient(proxyAddress string, timeout time.Duration) (*http.Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}

	if proxyAddress != "" {
		if !isValidProxyAddress(proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		Jar:       jar,
	}, nil
}

// isValidProxyAddress checks for "host:port" with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || strings.ContainsAny(host, "/ ") {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// sender posts payloads with a shared client and tracks in-flight requests.
type sender struct {
	client    *http.Client
	userAgent string
	wg        sync.WaitGroup
}

func newSender(client *http.Client, userAgent string) *sender {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &sender{client: client, userAgent: userAgent}
}

func (s *sender) newRequest(ctx context.Context, url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrNotDispatched, err)
	}
	req.Header.Set("Accept", "*/*")
	if len(body) > 0 {
		req.Header.Set("Content-Type", ContentType)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	return req, nil
}

func (s *sender) do(req *http.Request) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	// The response is never consumed; drain it so the connection is reused.
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // best effort
	return resp.Body.Close()
}

func (s *sender) async(req *http.Request, done chan<- error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.do(req)
		if done != nil {
			done <- err
			close(done)
		}
	}()
}

// Wait blocks until every in-flight request has finished.
func (s *sender) Wait() {
	s.wg.Wait()
}

// HTTPBeacon implements Beacon with an asynchronous POST.
type HTTPBeacon struct {
	*sender
}

// NewHTTPBeacon returns a beacon tier. A nil client uses a default one.
func NewHTTPBeacon(client *http.Client, userAgent string) *HTTPBeacon {
	return &HTTPBeacon{sender: newSender(client, userAgent)}
}

// SendBeacon queues the payload. Oversized bodies and unusable URLs are rejected.
func (b *HTTPBeacon) SendBeacon(url string, body []byte) bool {
	return b.Queue(url, body) == nil
}

// Queue is SendBeacon with the rejection reason: ErrPayloadTooLarge for
// bodies above MaxBeaconSize, ErrNotDispatched for unusable URLs.
func (b *HTTPBeacon) Queue(url string, body []byte) error {
	if len(body) > MaxBeaconSize {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(body))
	}
	req, err := b.newRequest(context.Background(), url, body)
	if err != nil {
		return err
	}
	b.async(req, nil)
	return nil
}

// HTTPRequester implements Requester.
type HTTPRequester struct {
	*sender
}

// NewHTTPRequester returns a request tier. A nil client uses a default one.
func NewHTTPRequester(client *http.Client, userAgent string) *HTTPRequester {
	return &HTTPRequester{sender: newSender(client, userAgent)}
}

// Request posts body to url. With sync set it blocks until the response
// arrives and returns network errors; otherwise it returns after dispatch.
// HTTP status codes are not errors.
func (r *HTTPRequester) Request(url string, body []byte, sync bool) error {
	req, err := r.newRequest(context.Background(), url, body)
	if err != nil {
		return err
	}
	if sync {
		return r.do(req)
	}
	r.async(req, nil)
	return nil
}

// HTTPFetcher implements Fetcher.
type HTTPFetcher struct {
	*sender
}

// NewHTTPFetcher returns a fetch tier. A nil client uses a default one.
func NewHTTPFetcher(client *http.Client, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{sender: newSender(client, userAgent)}
}

// Fetch posts body to url in the background.
func (f *HTTPFetcher) Fetch(url string, body []byte) (<-chan error, error) {
	req, err := f.newRequest(context.Background(), url, body)
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	f.async(req, done)
	return done, nil
}

// NewHTTP returns a Transport with all three HTTP tiers sharing client.
func NewHTTP(client *http.Client, userAgent string, opts ...Option) *Transport {
	all := append([]Option{
		WithBeacon(NewHTTPBeacon(client, userAgent)),
		WithRequester(NewHTTPRequester(client, userAgent)),
		WithFetcher(NewHTTPFetcher(client, userAgent)),
	}, opts...)
	return New(all...)
}

// Wait blocks until in-flight deliveries of every HTTP tier complete.
func (t *Transport) Wait() {
	for _, w := range []any{t.beacon, t.requester, t.fetcher} {
		if waiter, ok := w.(interface{ Wait() }); ok {
			waiter.Wait()
		}
	}
}
