package crawler

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/benjaminestes/seocrawl/crawler/data"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Reasons a fetch is discarded. Transport errors are passed through
// as they are.
var (
	ErrStatus           = errors.New("unexpected status")
	ErrContentType      = errors.New("not an HTML document")
	ErrBodyTooLarge     = errors.New("response body too large")
	ErrTooManyRedirects = errors.New("too many redirects")
)

// A Fetched is the outcome of requesting one address. The fetch
// succeeded if and only if Err is nil, in which case Body holds the
// document transcoded to UTF-8.
type Fetched struct {
	Address     *data.Address
	StatusCode  int
	ContentType string
	Body        []byte
	Err         error
}

func (f *Fetched) OK() bool {
	return f.Err == nil
}

// A Fetcher requests batches of pages concurrently.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	header    []*data.Pair
	maxBody   int64
	limiter   *rate.Limiter
	log       logrus.FieldLogger
}

// newClient builds the http.Client used when the caller does not
// supply one. Certificates and host names are always verified.
func newClient(timeout, connectTimeout time.Duration, maxRedirects, conns int) *http.Client {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   connectTimeout,
			ResponseHeaderTimeout: timeout,
			MaxIdleConnsPerHost:   conns,
			IdleConnTimeout:       30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}

// FetchBatch requests every address in batch at once and returns one
// outcome per address, in the order given. It returns when every
// request has finished or timed out; a failing request never cancels
// its siblings.
func (f *Fetcher) FetchBatch(batch []*data.Address) []*Fetched {
	out := make([]*Fetched, len(batch))
	if len(batch) == 0 {
		return out
	}

	var g errgroup.Group
	g.SetLimit(len(batch))
	for i, addr := range batch {
		g.Go(func() error {
			out[i] = f.fetch(addr)
			return nil
		})
	}
	g.Wait()
	return out
}

func (f *Fetcher) fetch(addr *data.Address) *Fetched {
	result := &Fetched{Address: addr}
	result.Err = f.do(result)
	if result.Err != nil {
		f.log.WithFields(logrus.Fields{
			"url":    addr.Full,
			"status": result.StatusCode,
		}).WithError(result.Err).Debug("fetch failed")
	}
	return result
}

func (f *Fetcher) do(result *Fetched) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, result.Address.Full, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for _, h := range f.header {
		req.Header.Add(h.K, h.V)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrTooManyRedirects) {
			return ErrTooManyRedirects
		}
		return err
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.ContentType = resp.Header.Get("Content-Type")
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	if !strings.Contains(strings.ToLower(result.ContentType), "text/html") {
		return fmt.Errorf("%w: %q", ErrContentType, result.ContentType)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return err
	}
	utf8, err := charset.NewReader(body, result.ContentType)
	if err != nil {
		return err
	}
	b, err := io.ReadAll(io.LimitReader(utf8, f.maxBody+1))
	if err != nil {
		return err
	}
	if int64(len(b)) > f.maxBody {
		return ErrBodyTooLarge
	}
	result.Body = b
	return nil
}

// decodeBody undoes the Content-Encoding of resp. Because the request
// sets Accept-Encoding itself, the transport leaves the body as sent.
func decodeBody(resp *http.Response) (io.Reader, error) {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch enc {
	case "", "identity":
		return resp.Body, nil
	case "gzip", "x-gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "deflate":
		// Servers disagree on whether deflate means zlib or raw
		// deflate.
		br := bufio.NewReader(resp.Body)
		if head, err := br.Peek(2); err == nil && isZlibHeader(head) {
			return zlib.NewReader(br)
		}
		return flate.NewReader(br), nil
	}
	return nil, fmt.Errorf("unsupported content encoding %q", enc)
}

func isZlibHeader(b []byte) bool {
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}
