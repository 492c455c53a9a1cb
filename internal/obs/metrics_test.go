package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                               "/",
		"/metrics":                       "/metrics",
		"/v1/users/abc/profile":          "/v1/users/:id/profile",
		"/v1/quests/01HTEST":             "/v1/quests/:id",
		"/v1/quests":                     "/v1/quests",
		"/v1/admin/users/abc/ban":        "/v1/admin/users/:id/ban",
		"/v1/auth/login":                 "/v1/auth/login",
		"/v1/auth/validate-token?token=": "/v1/auth/validate-token",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
