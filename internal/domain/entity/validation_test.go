package entity

import (
	"errors"
	"net"
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https base_url", "https://example.com/feed", false},
		{"http base_url", "http://example.com/feed", false},
		{"url with port", "https://example.com:8080/feed", false},
		{"url with query", "https://example.com/feed?format=rss", false},
		{"url with path and fragment", "https://example.com/path/to/page#section", false},
		{"empty url", "", true},
		{"ftp scheme rejected", "ftp://example.com/feed", true},
		{"file scheme rejected", "file:///etc/passwd", true},
		{"javascript scheme rejected", "javascript:alert(1)", true},
		{"scheme without host", "https://", true},
		{"malformed url", "ht!tp://example.com", true},
		{"bare hostname without scheme", "example.com", true},
		{"url over the length cap", "https://example.com/" + strings.Repeat("a", 2050), true},
		{"localhost rejected", "http://localhost/feed", true},
		{"loopback rejected", "http://127.0.0.1/feed", true},
		{"10.x private range rejected", "http://10.0.0.1/feed", true},
		{"192.168.x private range rejected", "http://192.168.1.1/feed", true},
		{"172.16.x private range rejected", "http://172.16.0.1/feed", true},
		{"cloud metadata endpoint rejected", "http://169.254.169.254/latest/meta-data", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

// Rejections a registry wants to report per-field come back as
// *ValidationError, not bare errors.
func TestValidateURL_ReturnsValidationError(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"too long":       "https://example.com/" + strings.Repeat("a", 2050),
		"invalid scheme": "ftp://example.com",
		"missing host":   "https://",
		"private ip":     "http://127.0.0.1",
	}

	for name, url := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateURL(url)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip        string
		isPrivate bool
	}{
		// loopback and link-local
		{"127.0.0.1", true},
		{"127.1.2.3", true},
		{"::1", true},
		{"169.254.1.1", true},
		{"169.254.169.254", true}, // cloud metadata
		{"fe80::1", true},

		// private ranges, boundaries included
		{"10.0.0.0", true},
		{"10.123.45.67", true},
		{"10.255.255.255", true},
		{"172.16.0.0", true},
		{"172.20.10.5", true},
		{"172.31.255.255", true},
		{"192.168.0.0", true},
		{"192.168.255.255", true},

		// public addresses
		{"8.8.8.8", false},
		{"1.1.1.1", false},
		{"93.184.216.34", false},
		{"2001:4860:4860::8888", false},

		// one address either side of each private range
		{"9.255.255.255", false},
		{"11.0.0.0", false},
		{"172.15.255.255", false},
		{"172.32.0.0", false},
		{"192.167.255.255", false},
		{"192.169.0.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			if ip == nil {
				t.Fatalf("failed to parse IP: %s", tt.ip)
			}
			if got := isPrivateIP(ip); got != tt.isPrivate {
				t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.isPrivate)
			}
		})
	}
}
