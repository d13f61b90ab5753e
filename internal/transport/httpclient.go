package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

// ErrEmptyBundle возвращается, если в файле CA не нашлось ни одного сертификата.
var ErrEmptyBundle = errors.New("ca bundle contains no certificates")

// NewHTTPClient возвращает http.Client с таймаутом и базовым транспортом.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(nil),
	}
}

// NewHTTPClientWithCA дополнительно доверяет сертификатам из caBundlePath
// (PEM или одиночный DER) поверх системных корней.
func NewHTTPClientWithCA(timeout time.Duration, caBundlePath string) (*http.Client, error) {
	pool, err := LoadCertPool(caBundlePath)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}),
	}, nil
}

// LoadCertPool читает bundle и добавляет его к системному пулу.
func LoadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ca bundle: %w", err)
	}

	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	if pool.AppendCertsFromPEM(data) {
		return pool, nil
	}
	cert, err := x509.ParseCertificate(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBundle, path)
	}
	pool.AddCert(cert)
	return pool, nil
}

func newTransport(tlsConfig *tls.Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       tlsConfig,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
