package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                    "/",
		"/metrics":                            "/metrics",
		"/editorial/proposals":                "/editorial/proposals",
		"/editorial/proposals?status=pending": "/editorial/proposals",
		"/editorial/proposals/1b4e28ba-2fa1-11d2-883f-0016d3cca427":         "/editorial/proposals/:id",
		"/editorial/proposals/1b4e28ba-2fa1-11d2-883f-0016d3cca427/review":  "/editorial/proposals/:id/review",
		"/editorial/proposals/1b4e28ba-2fa1-11d2-883f-0016d3cca427/publish": "/editorial/proposals/:id/publish",
		"/editorial/stats": "/editorial/stats",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
