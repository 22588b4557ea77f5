package network

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewTransportDefault(t *testing.T) {
	tr, err := NewTransport("")
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	if tr.DialContext == nil || tr.Proxy == nil {
		t.Error("transport missing dialer or proxy settings")
	}
}

func TestNewTransportBindLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.RemoteAddr)
	}))
	defer srv.Close()

	tr, err := NewTransport("127.0.0.1")
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	client := &http.Client{Transport: tr}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET through bound transport: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "127.0.0.1:") {
		t.Errorf("request came from %q", body)
	}
}

func TestNewTransportUnknownInterface(t *testing.T) {
	if _, err := NewTransport("no-such-interface0"); err == nil {
		t.Fatal("expected error for unknown interface")
	}
}
