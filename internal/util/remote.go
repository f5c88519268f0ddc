package util

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// ErrNotRemoteURL is returned for URLs that are not absolute http(s) URLs
var ErrNotRemoteURL = errors.New("url must be an absolute http(s) URL")

// ErrPrivateAddress is returned for URLs whose host is loopback, private,
// link-local or otherwise not publicly routable
var ErrPrivateAddress = errors.New("url must resolve to a public address")

// HostResolver looks up the addresses of a host; *net.Resolver satisfies it
type HostResolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// RemoteURL parses raw and accepts it only when it is an absolute http(s)
// URL whose host resolves exclusively to public addresses. A nil resolver
// uses net.DefaultResolver.
func RemoteURL(ctx context.Context, raw string, resolver HostResolver) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, goerr.Wrap(ErrNotRemoteURL, "check url", goerr.V("url", raw))
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return nil, goerr.Wrap(ErrPrivateAddress, "check url", goerr.V("host", host))
	}

	if ip := net.ParseIP(host); ip != nil {
		if !IsPublicIP(ip) {
			return nil, goerr.Wrap(ErrPrivateAddress, "check url", goerr.V("host", host))
		}
		return u, nil
	}

	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, goerr.Wrap(err, "resolve url host", goerr.V("host", host))
	}
	if len(addrs) == 0 {
		return nil, goerr.New("url host has no addresses", goerr.V("host", host))
	}
	for _, a := range addrs {
		if !IsPublicIP(a.IP) {
			return nil, goerr.Wrap(ErrPrivateAddress, "check url", goerr.V("host", host), goerr.V("addr", a.IP.String()))
		}
	}
	return u, nil
}

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598)
var sharedAddressSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// IsPublicIP reports whether ip is globally routable
func IsPublicIP(ip net.IP) bool {
	switch {
	case ip.IsLoopback(), ip.IsPrivate(), ip.IsUnspecified(),
		ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast(),
		ip.IsInterfaceLocalMulticast(), ip.IsMulticast():
		return false
	}
	if ip4 := ip.To4(); ip4 != nil && sharedAddressSpace.Contains(ip4) {
		return false
	}
	return true
}
