package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// voteFunc adapts a function to the Authenticator interface for tests.
type voteFunc func(ctx context.Context, r *http.Request) Result

func (f voteFunc) Authenticate(ctx context.Context, r *http.Request) Result {
	return f(ctx, r)
}

func fixedVote(res Result) Authenticator {
	return voteFunc(func(context.Context, *http.Request) Result { return res })
}

func TestChainFirstYesWins(t *testing.T) {
	chain := &Chain{
		Authenticators: []Authenticator{
			fixedVote(Result{Decision: Abstain}),
			fixedVote(Result{Decision: Yes, Identity: &Identity{Subject: "alice"}}),
			fixedVote(Result{Decision: No, Err: errors.New("should not be reached")}),
		},
	}

	r, _ := http.NewRequest("POST", "/v1/analyze", nil)
	res := chain.Authenticate(context.Background(), r)

	if res.Decision != Yes {
		t.Fatalf("Decision = %d, want Yes", res.Decision)
	}
	if res.Identity.Subject != "alice" {
		t.Errorf("Subject = %q, want alice", res.Identity.Subject)
	}
}

func TestChainNoStopsChain(t *testing.T) {
	reached := false
	chain := &Chain{
		Authenticators: []Authenticator{
			fixedVote(Result{Decision: No, Err: ErrUnauthenticated}),
			voteFunc(func(context.Context, *http.Request) Result {
				reached = true
				return Result{Decision: Yes}
			}),
		},
	}

	r, _ := http.NewRequest("POST", "/v1/analyze", nil)
	res := chain.Authenticate(context.Background(), r)

	if res.Decision != No {
		t.Fatalf("Decision = %d, want No", res.Decision)
	}
	if reached {
		t.Error("chain continued past a No vote")
	}
}

func TestChainAllAbstainDefaultYes(t *testing.T) {
	chain := &Chain{
		Authenticators:  []Authenticator{fixedVote(Result{Decision: Abstain})},
		DefaultDecision: Yes,
	}

	r, _ := http.NewRequest("POST", "/v1/analyze", nil)
	res := chain.Authenticate(context.Background(), r)

	if res.Decision != Yes {
		t.Fatalf("Decision = %d, want Yes", res.Decision)
	}
	if res.Identity.Subject != "anonymous" {
		t.Errorf("Subject = %q, want anonymous", res.Identity.Subject)
	}
}

func TestChainAllAbstainDefaultNo(t *testing.T) {
	chain := &Chain{
		Authenticators:  []Authenticator{fixedVote(Result{Decision: Abstain})},
		DefaultDecision: No,
	}

	r, _ := http.NewRequest("POST", "/v1/analyze", nil)
	res := chain.Authenticate(context.Background(), r)

	if res.Decision != No {
		t.Fatalf("Decision = %d, want No", res.Decision)
	}
	if !errors.Is(res.Err, ErrUnauthenticated) {
		t.Errorf("Err = %v, want ErrUnauthenticated", res.Err)
	}
}

func TestChainUnsetDefaultRejectsOnAbstain(t *testing.T) {
	// A chain built without an explicit DefaultDecision must fail closed
	// when every authenticator abstains, e.g. a request carrying no
	// credentials at all.
	chain := &Chain{
		Authenticators: []Authenticator{fixedVote(Result{Decision: Abstain})},
	}

	r, _ := http.NewRequest("POST", "/v1/analyze", nil)
	res := chain.Authenticate(context.Background(), r)

	if res.Decision != No {
		t.Fatalf("Decision = %d, want No", res.Decision)
	}
	if !errors.Is(res.Err, ErrUnauthenticated) {
		t.Errorf("Err = %v, want ErrUnauthenticated", res.Err)
	}
}

func TestTenantIDNilSafe(t *testing.T) {
	var id *Identity
	if got := id.TenantID(); got != "" {
		t.Errorf("TenantID on nil identity = %q, want empty", got)
	}
	if got := (&Identity{Subject: "x"}).TenantID(); got != "" {
		t.Errorf("TenantID without metadata = %q, want empty", got)
	}
}

func TestLimiterAllowsWithinLimit(t *testing.T) {
	l := NewInProcessLimiter(map[string]TierConfig{"standard": {RequestsPerMinute: 3}}, 10)
	id := &Identity{Subject: "alice", Tier: "standard"}

	for i := 0; i < 3; i++ {
		if err := l.Allow(context.Background(), id); err != nil {
			t.Fatalf("request %d: unexpected error %v", i+1, err)
		}
	}
	if err := l.Allow(context.Background(), id); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("request 4: err = %v, want ErrTooManyRequests", err)
	}
}

func TestLimiterFallsBackToDefaultRPM(t *testing.T) {
	l := NewInProcessLimiter(nil, 1)
	id := &Identity{Subject: "bob", Tier: "unknown"}

	if err := l.Allow(context.Background(), id); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := l.Allow(context.Background(), id); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("second request: err = %v, want ErrTooManyRequests", err)
	}
}

func TestLimiterZeroRPMUnlimited(t *testing.T) {
	l := NewInProcessLimiter(map[string]TierConfig{"internal": {RequestsPerMinute: 0}}, 1)
	id := &Identity{Subject: "batch", Tier: "internal"}

	for i := 0; i < 50; i++ {
		if err := l.Allow(context.Background(), id); err != nil {
			t.Fatalf("request %d: unexpected error %v", i+1, err)
		}
	}
}

func TestLimiterWindowResets(t *testing.T) {
	l := NewInProcessLimiter(map[string]TierConfig{"standard": {RequestsPerMinute: 1}}, 1)
	id := &Identity{Subject: "carol", Tier: "standard"}

	if err := l.Allow(context.Background(), id); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := l.Allow(context.Background(), id); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("second request: err = %v, want ErrTooManyRequests", err)
	}

	// Age the window past a minute instead of sleeping.
	l.mu.Lock()
	l.windows["carol:standard"].startedAt = time.Now().Add(-2 * time.Minute)
	l.mu.Unlock()

	if err := l.Allow(context.Background(), id); err != nil {
		t.Fatalf("request after window reset: %v", err)
	}
}

func TestLimiterSubjectsIndependent(t *testing.T) {
	l := NewInProcessLimiter(map[string]TierConfig{"standard": {RequestsPerMinute: 1}}, 1)

	if err := l.Allow(context.Background(), &Identity{Subject: "a", Tier: "standard"}); err != nil {
		t.Fatalf("subject a: %v", err)
	}
	if err := l.Allow(context.Background(), &Identity{Subject: "b", Tier: "standard"}); err != nil {
		t.Fatalf("subject b: %v", err)
	}
}
