package page

import (
	"net/url"
	"testing"
)

func TestFieldMap(t *testing.T) {
	f := FieldMap{"login-flow-email": "a@b.com"}
	if v, ok := f.Lookup("login-flow-email"); !ok || v != "a@b.com" {
		t.Errorf("Lookup(email) = %q, %v", v, ok)
	}
	if _, ok := f.Lookup("login-flow-password"); ok {
		t.Error("Lookup(password) found a field that does not exist")
	}
}

func TestOrigin(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://example.com/a/b?x=1", "https://example.com"},
		{"http://localhost:8080/", "http://localhost:8080"},
		{"/relative", ""},
	}
	for _, tt := range tests {
		u, _ := url.Parse(tt.raw)
		if got := Origin(u); got != tt.want {
			t.Errorf("Origin(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
	if got := Origin(nil); got != "" {
		t.Errorf("Origin(nil) = %q", got)
	}
}

func TestPath(t *testing.T) {
	u, _ := url.Parse("https://example.com")
	if got := Path(u); got != "/" {
		t.Errorf("Path() = %q, want /", got)
	}
	u, _ = url.Parse("https://example.com/dashboard")
	if got := Path(u); got != "/dashboard" {
		t.Errorf("Path() = %q, want /dashboard", got)
	}
}

func TestSameOriginPath(t *testing.T) {
	tests := map[string]bool{
		"/dashboard":           true,
		"/":                    true,
		"//evil.example/x":     false,
		"https://evil.example": false,
		"dashboard":            false,
		"":                     false,
	}
	for in, want := range tests {
		if got := SameOriginPath(in); got != want {
			t.Errorf("SameOriginPath(%q) = %v, want %v", in, got, want)
		}
	}
}
