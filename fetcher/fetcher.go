// Package fetcher is the transport adapter: it downloads repository
// files over HTTPS with a hard byte cap and owns the mutual TLS setup.
package fetcher

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/uptane/go-uptane/config"
	"github.com/uptane/go-uptane/metadata"
)

// Fetcher fetches remote repository files by URL. Implementations read
// at most maxLength+1 bytes so callers can detect oversize responses
// without unbounded reads.
type Fetcher interface {
	DownloadFile(urlPath string, maxLength int64) ([]byte, error)
}

// HTTPFetcher implements Fetcher over net/http.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher builds a fetcher with the given request timeout and
// TLS material. All TLSConfig fields are optional; client certificate
// and key must be given together.
func NewHTTPFetcher(timeout time.Duration, tlsCfg config.TLSConfig) (*HTTPFetcher, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if tlsCfg.CACert != "" || tlsCfg.ClientCert != "" || tlsCfg.ServerName != "" {
		tc := &tls.Config{ServerName: tlsCfg.ServerName}
		if tlsCfg.CACert != "" {
			pem, err := os.ReadFile(tlsCfg.CACert)
			if err != nil {
				return nil, err
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("no certificates found in %s", tlsCfg.CACert)
			}
			tc.RootCAs = pool
		}
		if tlsCfg.ClientCert != "" {
			cert, err := tls.LoadX509KeyPair(tlsCfg.ClientCert, tlsCfg.ClientKey)
			if err != nil {
				return nil, err
			}
			tc.Certificates = []tls.Certificate{cert}
		}
		transport.TLSClientConfig = tc
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

// SetUserAgent sets the User-Agent header sent with every request.
func (f *HTTPFetcher) SetUserAgent(agent string) {
	f.userAgent = agent
}

// DownloadFile downloads a file from urlPath. It errors out if the
// download failed or its length exceeds maxLength.
func (f *HTTPFetcher) DownloadFile(urlPath string, maxLength int64) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, urlPath, nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, metadata.ErrDownloadHTTP{StatusCode: res.StatusCode, URL: urlPath}
	}
	// The Content-Length header may be missing, -1, or wrong, so it is
	// only an early-out; the LimitReader below is what enforces the cap.
	if header := res.Header.Get("Content-Length"); header != "" {
		length, err := strconv.ParseInt(header, 10, 0)
		if err != nil {
			return nil, err
		}
		if length > maxLength {
			return nil, metadata.ErrDownloadLengthMismatch{Msg: fmt.Sprintf("download failed for %s, length %d is larger than expected %d", urlPath, length, maxLength)}
		}
	}
	// Read maxLength+1 so data that surpasses the cap is detectable.
	data, err := io.ReadAll(io.LimitReader(res.Body, maxLength+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxLength {
		return nil, metadata.ErrDownloadLengthMismatch{Msg: fmt.Sprintf("download failed for %s, length %d is larger than expected %d", urlPath, len(data), maxLength)}
	}
	log.Debugf("downloaded %s (%d bytes)", urlPath, len(data))
	return data, nil
}
