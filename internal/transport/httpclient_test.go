package transport

import (
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewHTTPClientWithCATrustsBundle(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw})
	path := filepath.Join(t.TempDir(), "root.cer")
	if err := os.WriteFile(path, certPEM, 0o600); err != nil {
		t.Fatalf("write bundle: %v", err)
	}

	client, err := NewHTTPClientWithCA(5*time.Second, path)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("request with trusted bundle failed: %v", err)
	}
	resp.Body.Close()

	if _, err := NewHTTPClient(5 * time.Second).Get(server.URL); err == nil {
		t.Fatalf("expected default client to reject self-signed certificate")
	}
}

func TestLoadCertPoolAcceptsDER(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(server.Close)

	path := filepath.Join(t.TempDir(), "root.der")
	if err := os.WriteFile(path, server.Certificate().Raw, 0o600); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	if _, err := LoadCertPool(path); err != nil {
		t.Fatalf("der bundle rejected: %v", err)
	}
}

func TestLoadCertPoolErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadCertPool(filepath.Join(dir, "missing.cer")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	garbage := filepath.Join(dir, "garbage.cer")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0o600); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if _, err := LoadCertPool(garbage); !errors.Is(err, ErrEmptyBundle) {
		t.Fatalf("expected ErrEmptyBundle, got %v", err)
	}
}
