package workspace

import (
	"runtime"
	"testing"
)

func TestURIToPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX path expectations")
	}

	tests := []struct {
		name     string
		uri      string
		expected string
		ok       bool
	}{
		{
			name:     "plain path",
			uri:      "file:///home/user/project",
			expected: "/home/user/project",
			ok:       true,
		},
		{
			name:     "percent-encoded space",
			uri:      "file:///home/user/my%20project",
			expected: "/home/user/my project",
			ok:       true,
		},
		{
			name:     "percent-encoded utf8",
			uri:      "file:///home/user/%D0%BF%D1%80%D0%BE%D0%B5%D0%BA%D1%82",
			expected: "/home/user/проект",
			ok:       true,
		},
		{
			name: "not a file uri",
			uri:  "https://example.com/x",
			ok:   false,
		},
		{
			name: "empty after prefix",
			uri:  "file://",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := URIToPath(tt.uri)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestPathToURIRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX path expectations")
	}

	paths := []string{
		"/home/user/project",
		"/srv/app/My App.sln",
	}
	for _, p := range paths {
		uri := PathToURI(p)
		got, ok := URIToPath(uri)
		if !ok {
			t.Fatalf("URIToPath(%s) failed", uri)
		}
		if got != p {
			t.Errorf("Round trip of %s: got %s via %s", p, got, uri)
		}
	}
}

func TestPercentDecodeMalformed(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"a%2", "a%2"},
		{"a%zz", "a%zz"},
		{"%41", "A"},
		{"%", "%"},
	}
	for _, tt := range tests {
		if got := percentDecode(tt.in); got != tt.expected {
			t.Errorf("percentDecode(%q): expected %q, got %q", tt.in, tt.expected, got)
		}
	}
}
