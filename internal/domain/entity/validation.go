package entity

import (
	"fmt"
	"net"
	"net/url"
)

// maxURLLength caps descriptor URLs; anything longer is rejected outright
// rather than passed to the HTTP layer.
const maxURLLength = 2048

// privateIPv4Ranges are the IPv4 blocks a source URL may never resolve
// to: private networks plus the link-local range that includes cloud
// metadata endpoints.
var privateIPv4Ranges = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, subnet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("bad builtin CIDR %q: %v", cidr, err))
		}
		out = append(out, subnet)
	}
	return out
}

// ValidateURL checks that a descriptor URL is well-formed, uses an
// http/https scheme, and has a host that does not resolve to a private
// address. Applied to base_url at registration time so a malformed or
// SSRF-prone base URL is rejected before any request is made; feed and
// index URLs are not checked by it.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "url", Message: "URL is required"}
	}

	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: "url", Message: "URL must use http or https scheme"}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Field: "url", Message: "URL must have a valid host"}
	}

	// Resolution failures pass: an unresolvable host will fail loudly at
	// request time, and registration must work offline.
	host := parsedURL.Hostname()
	ips, err := net.LookupIP(host)
	if err == nil && len(ips) > 0 {
		for _, ip := range ips {
			if isPrivateIP(ip) {
				return &ValidationError{
					Field:   "url",
					Message: "url cannot point to private network",
				}
			}
		}
	}

	return nil
}

// isPrivateIP reports whether ip falls in a loopback, link-local, or
// private range.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return true
	}
	for _, subnet := range privateIPv4Ranges {
		if subnet.Contains(ip) {
			return true
		}
	}
	return false
}
