package apikey

import (
	"context"
	"net/http"
	"testing"

	"github.com/arvhal/causeway/pkg/auth"
)

func newTestAuthenticator() *Authenticator {
	return New([]RawKeyEntry{
		{
			Key: "cw-key-analytics",
			Identity: auth.Identity{
				Subject:  "analytics-svc",
				Tier:     "standard",
				Metadata: map[string]string{"tenant_id": "org-acme"},
			},
		},
		{
			Key: "cw-key-research",
			Identity: auth.Identity{
				Subject: "research-svc",
				Tier:    "premium",
			},
		},
	})
}

func TestValidKey(t *testing.T) {
	a := newTestAuthenticator()
	r, _ := http.NewRequest("POST", "/v1/analyze", nil)
	r.Header.Set("Authorization", "Bearer cw-key-analytics")

	res := a.Authenticate(context.Background(), r)

	if res.Decision != auth.Yes {
		t.Fatalf("Decision = %d, want Yes", res.Decision)
	}
	if res.Identity.Subject != "analytics-svc" {
		t.Errorf("Subject = %q, want %q", res.Identity.Subject, "analytics-svc")
	}
	if res.Identity.Tier != "standard" {
		t.Errorf("Tier = %q, want %q", res.Identity.Tier, "standard")
	}
	if res.Identity.TenantID() != "org-acme" {
		t.Errorf("TenantID = %q, want %q", res.Identity.TenantID(), "org-acme")
	}
}

func TestUnknownKey(t *testing.T) {
	a := newTestAuthenticator()
	r, _ := http.NewRequest("POST", "/v1/analyze", nil)
	r.Header.Set("Authorization", "Bearer cw-key-wrong")

	res := a.Authenticate(context.Background(), r)
	if res.Decision != auth.No {
		t.Fatalf("Decision = %d, want No", res.Decision)
	}
	if res.Err == nil {
		t.Error("expected an error on the No vote")
	}
}

func TestEmptyBearerToken(t *testing.T) {
	a := newTestAuthenticator()
	r, _ := http.NewRequest("POST", "/v1/analyze", nil)
	r.Header.Set("Authorization", "Bearer ")

	res := a.Authenticate(context.Background(), r)
	if res.Decision != auth.No {
		t.Fatalf("Decision = %d, want No", res.Decision)
	}
}

func TestNoHeaderAbstains(t *testing.T) {
	a := newTestAuthenticator()
	r, _ := http.NewRequest("POST", "/v1/analyze", nil)

	res := a.Authenticate(context.Background(), r)
	if res.Decision != auth.Abstain {
		t.Fatalf("Decision = %d, want Abstain", res.Decision)
	}
}

func TestNonBearerSchemeAbstains(t *testing.T) {
	a := newTestAuthenticator()
	r, _ := http.NewRequest("POST", "/v1/analyze", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	res := a.Authenticate(context.Background(), r)
	if res.Decision != auth.Abstain {
		t.Fatalf("Decision = %d, want Abstain", res.Decision)
	}
}

func TestIdentityCopied(t *testing.T) {
	a := newTestAuthenticator()
	r, _ := http.NewRequest("POST", "/v1/analyze", nil)
	r.Header.Set("Authorization", "Bearer cw-key-research")

	first := a.Authenticate(context.Background(), r)
	first.Identity.Subject = "mutated"

	second := a.Authenticate(context.Background(), r)
	if second.Identity.Subject != "research-svc" {
		t.Errorf("identity shared between authentications: Subject = %q", second.Identity.Subject)
	}
}
