// Package clientip resolves the client address of a request behind a known
// number of trusted reverse proxies.
package clientip

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// Resolver extracts client identifiers from requests.
//
// With TrustedHops = 0 the socket peer is the client. Each trusted hop accepts
// one more address from the right-hand end of X-Forwarded-For, so with the
// default of one hop the client is the address appended by the proxy in front
// of the server. Leftmost X-Forwarded-For entries are never trusted beyond
// that, which stops clients from spoofing their own address.
type Resolver struct {
	TrustedHops int
}

// NewResolver creates a resolver trusting the given number of proxy hops.
func NewResolver(trustedHops int) *Resolver {
	if trustedHops < 0 {
		trustedHops = 0
	}
	return &Resolver{TrustedHops: trustedHops}
}

// Resolve returns the client identifier for r.
func (res *Resolver) Resolve(r *http.Request) string {
	chain := []string{peerAddress(r.RemoteAddr)}

	if res.TrustedHops > 0 {
		forwarded := forwardedFor(r.Header.Values("X-Forwarded-For"))
		for i := len(forwarded) - 1; i >= 0; i-- {
			chain = append(chain, forwarded[i])
		}
	}

	hop := res.TrustedHops
	if hop > len(chain)-1 {
		hop = len(chain) - 1
	}
	return chain[hop]
}

// forwardedFor flattens every X-Forwarded-For header value into an ordered
// list of non-empty addresses, client first.
func forwardedFor(values []string) []string {
	var addrs []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if addr := strings.TrimSpace(part); addr != "" {
				addrs = append(addrs, stripPort(addr))
			}
		}
	}
	return addrs
}

func peerAddress(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// stripPort removes a port from IPv4 "a.b.c.d:port" and "[v6]:port" forms,
// leaving bare IPv6 addresses untouched.
func stripPort(addr string) string {
	if net.ParseIP(addr) != nil {
		return addr
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

type contextKey struct{}

// WithClientID stores the resolved client identifier in ctx.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, contextKey{}, clientID)
}

// FromContext returns the client identifier stored by WithClientID.
func FromContext(ctx context.Context) (string, bool) {
	clientID, ok := ctx.Value(contextKey{}).(string)
	return clientID, ok
}
