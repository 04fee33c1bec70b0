// internal/platform/validator/validator_test.go
package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsHTTPURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"https", "https://api.github.com", true},
		{"http with port", "http://127.0.0.1:8080/index.yaml", true},
		{"upper scheme", "HTTPS://raw.githubusercontent.com/x", true},
		{"no host", "https://", false},
		{"file", "file:///srv/index.yaml", false},
		{"no scheme", "api.github.com", false},
		{"empty", "  ", false},
		{"bad escape", "https://%zz", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsHTTPURL(tt.input))
		})
	}
}

func TestIsFeedURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"https", "https://example.org/feed.stix2", true},
		{"file absolute", "file:///srv/feeds/pegasus.stix2", true},
		{"file relative", "file:feeds/pegasus.stix2", false},
		{"ftp", "ftp://example.org/feed", false},
		{"plain path", "/srv/feed.json", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFeedURL(tt.input))
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://api.github.com", NormalizeURL(" HTTPS://API.GitHub.com:443 "))
	assert.Equal(t, "http://example.org/Path?Q=1", NormalizeURL("http://Example.org:80/Path?Q=1"))
	assert.Equal(t, "http://example.org:8080", NormalizeURL("http://example.org:8080"))
}
