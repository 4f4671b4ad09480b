package llm

import (
	"context"
	"errors"
	"testing"
)

type mockAdapter struct {
	name     string
	native   bool
	calls    int
	sendFn   func(req Request) (*Response, error)
	streamFn func(req Request) (<-chan Chunk, error)
}

func (m *mockAdapter) Name() string              { return m.name }
func (m *mockAdapter) SupportsNativeTools() bool { return m.native }

func (m *mockAdapter) Send(_ context.Context, req Request) (*Response, error) {
	m.calls++
	return m.sendFn(req)
}

func (m *mockAdapter) Stream(_ context.Context, req Request) (<-chan Chunk, error) {
	m.calls++
	if m.streamFn != nil {
		return m.streamFn(req)
	}
	resp, err := m.sendFn(req)
	if err != nil {
		return nil, err
	}
	ch := make(chan Chunk, 2)
	ch <- Chunk{Text: resp.Text}
	ch <- Chunk{Done: true, Final: resp}
	close(ch)
	return ch, nil
}

func testRegistry(adapters ...*mockAdapter) (*Registry, []string) {
	reg := NewRegistry(nil, EnvResolver{}, nil)
	var chain []string
	for _, a := range adapters {
		reg.Register(Descriptor{
			ID:                  a.name,
			Dialect:             DialectOpenAI,
			Model:               "test-model",
			ContextWindowTokens: 1000,
			SupportsNativeTools: a.native,
		}, a)
		chain = append(chain, a.name)
	}
	return reg, chain
}

func okAdapter(name, text string) *mockAdapter {
	return &mockAdapter{
		name:   name,
		native: true,
		sendFn: func(Request) (*Response, error) {
			return &Response{Backend: name, Text: text}, nil
		},
	}
}

func failingAdapter(name string, err error) *mockAdapter {
	return &mockAdapter{
		name:   name,
		native: true,
		sendFn: func(Request) (*Response, error) { return nil, err },
	}
}

func TestRouterFallsBackOnRetryableError(t *testing.T) {
	first := failingAdapter("first", newRateLimitError("first", "slow down", nil))
	second := okAdapter("second", "hello")
	reg, chain := testRegistry(first, second)
	rt := NewRouter(reg, "first", chain, nil)

	resp, err := rt.Send(context.Background(), Request{Messages: []Message{UserMessage("hi")}}, "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Backend != "second" {
		t.Errorf("answered by %q, want %q", resp.Backend, "second")
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", first.calls, second.calls)
	}
}

func TestRouterNeverRetriesSameBackend(t *testing.T) {
	a := failingAdapter("only", newNetworkError("only", "down", nil))
	reg, chain := testRegistry(a)
	rt := NewRouter(reg, "only", chain, nil)

	_, err := rt.Send(context.Background(), Request{Messages: []Message{UserMessage("hi")}}, "")
	if err == nil {
		t.Fatal("expected an error")
	}
	if a.calls != 1 {
		t.Errorf("backend invoked %d times, want exactly once", a.calls)
	}
}

func TestRouterAuthErrorSurfacesImmediately(t *testing.T) {
	first := failingAdapter("first", newAuthError("first", "bad key", nil))
	second := okAdapter("second", "never reached")
	reg, chain := testRegistry(first, second)
	rt := NewRouter(reg, "first", chain, nil)

	_, err := rt.Send(context.Background(), Request{Messages: []Message{UserMessage("hi")}}, "")
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if second.calls != 0 {
		t.Error("fallback should not run after a non-retryable failure")
	}
}

func TestRouterExhaustion(t *testing.T) {
	first := failingAdapter("first", newNetworkError("first", "down", nil))
	second := failingAdapter("second", newRateLimitError("second", "slow down", nil))
	reg, chain := testRegistry(first, second)
	rt := NewRouter(reg, "first", chain, nil)

	_, err := rt.Send(context.Background(), Request{Messages: []Message{UserMessage("hi")}}, "")
	var ex *AllBackendsExhausted
	if !errors.As(err, &ex) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if len(ex.Tried) != 2 {
		t.Errorf("tried %v, want both backends", ex.Tried)
	}
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Error("expected the last failure to be preserved")
	}
}

func TestRouteDefaultFirstAndChainOrder(t *testing.T) {
	a := okAdapter("a", "")
	b := okAdapter("b", "")
	c := okAdapter("c", "")
	reg, _ := testRegistry(a, b, c)
	rt := NewRouter(reg, "b", []string{"a", "b", "c"}, nil)

	got := rt.Route(10, "")
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("route length = %d, want %d", len(got), len(want))
	}
	for i, d := range got {
		if d.ID != want[i] {
			t.Errorf("route[%d] = %q, want %q", i, d.ID, want[i])
		}
	}
}

func TestRouteFiltersSmallContextWindows(t *testing.T) {
	small := okAdapter("small", "")
	big := okAdapter("big", "")
	reg := NewRegistry(nil, EnvResolver{}, nil)
	reg.Register(Descriptor{ID: "small", Dialect: DialectOpenAI, ContextWindowTokens: 100}, small)
	reg.Register(Descriptor{ID: "big", Dialect: DialectOpenAI, ContextWindowTokens: 100000}, big)
	rt := NewRouter(reg, "small", []string{"small", "big"}, nil)

	got := rt.Route(5000, "")
	if len(got) != 1 || got[0].ID != "big" {
		t.Errorf("route = %v, want only the large-window backend", got)
	}
}

func TestRouteCostOrdersSameTierRuns(t *testing.T) {
	reg := NewRegistry(nil, EnvResolver{}, nil)
	add := func(id, tier string, cost float64) {
		reg.Register(Descriptor{
			ID: id, Dialect: DialectOpenAI, Tier: tier,
			CostWeight: cost, ContextWindowTokens: 1000,
		}, okAdapter(id, ""))
	}
	add("lead", "premium", 9)
	add("a", "standard", 5)
	add("b", "standard", 1)
	add("c", "premium", 9)
	add("d", "standard", 2)
	rt := NewRouter(reg, "lead", []string{"lead", "a", "b", "c", "d"}, nil)

	// Cost reorders the contiguous standard run a,b; the standard entry after
	// the premium one stays where the chain put it.
	got := rt.Route(10, "")
	want := []string{"lead", "b", "a", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("route length = %d, want %d", len(got), len(want))
	}
	for i, desc := range got {
		if desc.ID != want[i] {
			t.Errorf("route[%d] = %q, want %q", i, desc.ID, want[i])
		}
	}
}

func TestRoutePreferredTier(t *testing.T) {
	cheap := okAdapter("cheap", "")
	premium := okAdapter("premium", "")
	reg := NewRegistry(nil, EnvResolver{}, nil)
	reg.Register(Descriptor{ID: "cheap", Dialect: DialectOpenAI, Tier: "standard", ContextWindowTokens: 1000}, cheap)
	reg.Register(Descriptor{ID: "premium", Dialect: DialectOpenAI, Tier: "premium", ContextWindowTokens: 1000}, premium)
	rt := NewRouter(reg, "cheap", []string{"cheap", "premium"}, nil)

	got := rt.Route(10, "premium")
	// The default still leads; the preference reorders the rest.
	if got[0].ID != "cheap" {
		t.Errorf("default backend should stay first, got %q", got[0].ID)
	}

	rt2 := NewRouter(reg, "premium", []string{"cheap", "premium"}, nil)
	got2 := rt2.Route(10, "premium")
	if got2[0].ID != "premium" {
		t.Errorf("route[0] = %q, want premium", got2[0].ID)
	}
}

func TestRouterStreamFallsBackOnSetupFailure(t *testing.T) {
	first := &mockAdapter{
		name:   "first",
		native: true,
		streamFn: func(Request) (<-chan Chunk, error) {
			return nil, newNetworkError("first", "down", nil)
		},
	}
	second := okAdapter("second", "streamed")
	reg, chain := testRegistry(first, second)
	rt := NewRouter(reg, "first", chain, nil)

	ch, err := rt.Stream(context.Background(), Request{Messages: []Message{UserMessage("hi")}}, "")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var text string
	var final *Response
	for chunk := range ch {
		text += chunk.Text
		if chunk.Done {
			final = chunk.Final
		}
	}
	if text != "streamed" {
		t.Errorf("text = %q", text)
	}
	if final == nil || final.Backend != "second" {
		t.Errorf("final = %+v, want backend second", final)
	}
}
