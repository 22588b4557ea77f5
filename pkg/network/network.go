package network

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// resolveBindAddr takes an IP address or an interface name and returns a local TCP address.
func resolveBindAddr(addrOrInterface string) (*net.TCPAddr, error) {
	if ip := net.ParseIP(addrOrInterface); ip != nil {
		return &net.TCPAddr{IP: ip}, nil
	}

	iface, err := net.InterfaceByName(addrOrInterface)
	if err != nil {
		return nil, fmt.Errorf("failed to find network interface '%s': %w", addrOrInterface, err)
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("failed to get addresses for interface '%s': %w", addrOrInterface, err)
	}
	for _, addr := range addrs {
		var ip net.IP
		switch a := addr.(type) {
		case *net.IPNet:
			ip = a.IP
		case *net.IPAddr:
			ip = a.IP
		}
		if ip != nil && ip.To4() != nil && !ip.IsLoopback() {
			return &net.TCPAddr{IP: ip}, nil
		}
	}
	return nil, fmt.Errorf("no usable IPv4 address found for interface '%s'", addrOrInterface)
}

// NewTransport returns the transport shared by the API, image and upload clients.
// A non-empty bindAddr (IP or interface name) pins outbound connections to that address.
func NewTransport(bindAddr string) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if bindAddr = strings.TrimSpace(bindAddr); bindAddr != "" {
		localAddr, err := resolveBindAddr(bindAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve bind address '%s': %w", bindAddr, err)
		}
		dialer.LocalAddr = localAddr
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}, nil
}
