// Package resolver installs a process-wide DNS override once at startup.
package resolver

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"lazy-lister/internal/platform/logging"
)

const (
	dnsPort     = "53"
	dialTimeout = 5 * time.Second
)

// Override holds the normalised server list and the resolver built from it.
// A zero-server Override leaves the system resolver in place.
type Override struct {
	servers  []string
	resolver *net.Resolver
	next     atomic.Uint32
}

// Normalize turns entries like "8.8.8.8", "1.1.1.1:53" or "[2001:4860::8888]"
// into host:port form. Invalid entries are returned separately.
func Normalize(entries []string) (servers []string, invalid []string) {
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		host, port, err := net.SplitHostPort(entry)
		if err != nil {
			host, port = strings.Trim(entry, "[]"), dnsPort
		}
		if net.ParseIP(host) == nil || !validPort(port) {
			invalid = append(invalid, raw)
			continue
		}
		servers = append(servers, net.JoinHostPort(host, port))
	}
	return servers, invalid
}

func validPort(port string) bool {
	n, err := strconv.Atoi(port)
	return err == nil && n > 0 && n <= 65535
}

// New builds an Override from the configured entries, logging and skipping
// invalid ones.
func New(entries []string, logger *logging.Logger) *Override {
	servers, invalid := Normalize(entries)
	for _, bad := range invalid {
		logger.WarnTag("DNS", "ignoring invalid DNS server %q", bad)
	}

	o := &Override{servers: servers}
	if len(servers) > 0 {
		o.resolver = &net.Resolver{
			PreferGo: true,
			Dial:     o.dial,
		}
	}
	return o
}

// dial ignores the system-chosen address and rotates through the configured
// servers.
func (o *Override) dial(ctx context.Context, network, _ string) (net.Conn, error) {
	d := net.Dialer{Timeout: dialTimeout}
	var lastErr error
	start := int(o.next.Add(1))
	for i := range o.servers {
		server := o.servers[(start+i)%len(o.servers)]
		conn, err := d.DialContext(ctx, network, server)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Servers returns the normalised server list.
func (o *Override) Servers() []string {
	return append([]string(nil), o.servers...)
}

// Active reports whether any server is configured.
func (o *Override) Active() bool {
	return o != nil && o.resolver != nil
}

// Resolver returns the override resolver, or net.DefaultResolver when inactive.
func (o *Override) Resolver() *net.Resolver {
	if !o.Active() {
		return net.DefaultResolver
	}
	return o.resolver
}

// Install replaces net.DefaultResolver. It is a no-op when inactive.
func (o *Override) Install(logger *logging.Logger) {
	if !o.Active() {
		logger.DebugTag("DNS", "no DNS override configured, using system resolver")
		return
	}
	net.DefaultResolver = o.resolver
	logger.InfoTag("DNS", "DNS servers set to %s", strings.Join(o.servers, ", "))
}

// HTTPClient returns a client whose transport resolves through the override.
// timeout of zero means no client-level timeout.
func (o *Override) HTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Resolver:  o.Resolver(),
	}
	transport.DialContext = dialer.DialContext
	return &http.Client{Transport: transport, Timeout: timeout}
}
