package forge

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// Serve mode takes target URLs and blueprint names straight from
// clients, so both get checked before any navigation or file access.

// ErrUnsafeTarget is returned for URLs the extractor must not visit.
var ErrUnsafeTarget = errors.New("forge: unsafe target URL")

// blueprintNameRE matches artifact names the registry produces.
var blueprintNameRE = regexp.MustCompile(`^retailer_\d+_\d{8}_\d{6}\.json$`)

// ValidateTargetURL checks that rawURL uses http/https, has a host,
// and does not point at a private or loopback address. allowPrivate
// skips the address check for development against local fixtures.
// Hostnames are resolved to catch internal names; DNS failure passes,
// the navigation will surface it anyway.
func ValidateTargetURL(rawURL string, allowPrivate bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeTarget, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrUnsafeTarget, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: no host", ErrUnsafeTarget)
	}
	if allowPrivate {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: private address %s", ErrUnsafeTarget, host)
		}
		return nil
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return fmt.Errorf("%w: %s resolves to private address %s", ErrUnsafeTarget, host, a)
		}
	}
	return nil
}

// ValidBlueprintName reports whether name matches the artifact naming
// pattern. The registry rejects traversal separately; this rejects
// everything that is not a generated artifact name.
func ValidBlueprintName(name string) bool {
	return blueprintNameRE.MatchString(name)
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() {
		return true
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, cidr := range privateRanges {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

var privateRanges = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"fc00::/7",
	"::1/128",
)

func mustParseCIDRs(blocks ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(blocks))
	for _, b := range blocks {
		_, cidr, err := net.ParseCIDR(b)
		if err != nil {
			panic(err)
		}
		out = append(out, cidr)
	}
	return out
}
