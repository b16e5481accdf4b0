package network

import (
	"context"
	"fmt"
	"net"
	"net/url"
)

// DNSResolver rewrites a URL's hostname to one literal IP so the
// dispatched connection goes where the lookup said, while the rest of
// the URL stays untouched. IPv6 addresses are preferred unless IPv4 is
// forced.
type DNSResolver struct {
	resolver *net.Resolver
}

// NewDNSResolver creates a resolver backed by the system resolver.
func NewDNSResolver() *DNSResolver {
	return &DNSResolver{resolver: net.DefaultResolver}
}

// SubstituteHost resolves the URL's hostname and returns the URL with
// only the host portion replaced by the chosen literal IP, preserving
// scheme, port and path. A host that is already an IP literal passes
// through unchanged. Resolution failure is a network error.
func (d *DNSResolver) SubstituteHost(ctx context.Context, rawURL string, forceIPv4 bool) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	hostname := u.Hostname()
	if hostname == "" {
		return "", fmt.Errorf("URL %q has no host", rawURL)
	}
	if net.ParseIP(hostname) != nil {
		return rawURL, nil
	}

	addrs, err := d.resolver.LookupIPAddr(ctx, hostname)
	if err != nil {
		return "", classifyError(err, 0)
	}

	ip, err := pickAddress(addrs, hostname, forceIPv4)
	if err != nil {
		return "", err
	}

	host := ip.String()
	if ip.To4() == nil {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}
	return u.String(), nil
}

// pickAddress chooses one address: with forceIPv4 the first IPv4
// record, otherwise the first IPv6 record falling back to the first of
// any family.
func pickAddress(addrs []net.IPAddr, hostname string, forceIPv4 bool) (net.IP, error) {
	if forceIPv4 {
		for _, a := range addrs {
			if a.IP.To4() != nil {
				return a.IP, nil
			}
		}
		return nil, classifyError(&net.DNSError{
			Err: "no IPv4 address", Name: hostname, IsNotFound: true,
		}, 0)
	}
	for _, a := range addrs {
		if a.IP.To4() == nil {
			return a.IP, nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0].IP, nil
	}
	return nil, classifyError(&net.DNSError{
		Err: "no addresses", Name: hostname, IsNotFound: true,
	}, 0)
}
