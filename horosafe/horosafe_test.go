package horosafe

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr error
	}{
		{"https://example.com/pricing", nil},
		{"http://93.184.216.34/", nil},
		{"ftp://example.com/data", ErrUnsafeScheme},
		{"javascript:alert(1)", ErrUnsafeScheme},
		{"http://127.0.0.1/admin", ErrSSRF},
		{"http://10.0.0.1/internal", ErrSSRF},
		{"http://192.168.1.1/api", ErrSSRF},
		{"http://172.16.0.1/secret", ErrSSRF},
		{"http://169.254.169.254/latest/meta-data", ErrSSRF},
		{"http://[::1]/api", ErrSSRF},
		{"http://[::ffff:127.0.0.1]/", ErrSSRF},
		{"http://0.0.0.0/", ErrSSRF},
	}
	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ValidateURL(%q) = %v, want %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestValidateURL_NoHost(t *testing.T) {
	if err := ValidateURL("https:///path"); err == nil {
		t.Fatal("expected error for URL without host")
	}
}

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"acme", "acme-corp", "acme_2.io"} {
		if err := ValidateIdentifier(ok); err != nil {
			t.Errorf("ValidateIdentifier(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "a/b", "acme corp", strings.Repeat("x", 129)} {
		if err := ValidateIdentifier(bad); err == nil {
			t.Errorf("ValidateIdentifier(%q) = nil", bad)
		}
	}
}

func TestSafePath(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"acme_2026.md", false},
		{"sub/acme.md", false},
		{"../etc/passwd", true},
		{"a/../../b", true},
	}
	for _, tt := range tests {
		_, err := SafePath("/data/digest", tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("SafePath(%q) err=%v, wantErr=%v", tt.name, err, tt.wantErr)
		}
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 5)
	if err != nil || string(data) != "hello" {
		t.Fatalf("at limit: %q, %v", data, err)
	}
	if _, err := LimitedReadAll(strings.NewReader("hello!"), 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("over limit: err = %v, want ErrTooLarge", err)
	}
}
