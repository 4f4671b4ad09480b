package llm

import (
	"context"
	"log/slog"
	"sort"
)

// Router selects which backends to try for a request and walks the fallback
// chain on retryable failures. The chain order is configuration: the default
// backend is always tried first, the rest follow in their configured order,
// and cost weight only breaks ties between chain entries of the same tier.
type Router struct {
	registry  *Registry
	defaultID string
	chain     []string
	logger    *slog.Logger
}

// NewRouter creates a Router over a registry with a default backend and an
// ordered fallback chain. A nil logger discards.
func NewRouter(registry *Registry, defaultID string, chain []string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{
		registry:  registry,
		defaultID: defaultID,
		chain:     chain,
		logger:    logger,
	}
}

// Route returns the ordered list of backends to try for a request of the
// given size. Backends whose context window cannot hold the request, or whose
// credential is missing, are filtered out. No backend appears twice.
func (rt *Router) Route(requestTokens int, preferredTier string) []Descriptor {
	available := make(map[string]Descriptor)
	for _, d := range rt.registry.Available() {
		if d.ContextWindowTokens > 0 && requestTokens > d.ContextWindowTokens {
			rt.logger.Debug("backend filtered, context window too small",
				"backend", d.ID, "window", d.ContextWindowTokens, "request_tokens", requestTokens)
			continue
		}
		available[d.ID] = d
	}

	var out []Descriptor
	seen := make(map[string]bool)
	appendID := func(id string) {
		if seen[id] {
			return
		}
		if d, ok := available[id]; ok {
			out = append(out, d)
			seen[id] = true
		}
	}

	appendID(rt.defaultID)

	rest := make([]Descriptor, 0, len(rt.chain))
	for _, id := range rt.chain {
		if seen[id] {
			continue
		}
		if d, ok := available[id]; ok {
			rest = append(rest, d)
		}
	}
	// Chain order is authoritative; cost weight only reorders contiguous
	// entries that share a tier, so each same-tier run is sorted on its own.
	for lo := 0; lo < len(rest); {
		hi := lo + 1
		for hi < len(rest) && rest[hi].Tier == rest[lo].Tier {
			hi++
		}
		run := rest[lo:hi]
		sort.SliceStable(run, func(i, j int) bool {
			return run[i].CostWeight < run[j].CostWeight
		})
		lo = hi
	}
	if preferredTier != "" {
		sort.SliceStable(rest, func(i, j int) bool {
			return rest[i].Tier == preferredTier && rest[j].Tier != preferredTier
		})
	}
	for _, d := range rest {
		appendID(d.ID)
	}
	return out
}

// Send performs one logical completion call, advancing the fallback chain on
// retryable backend errors. Each backend is invoked at most once. Auth errors
// surface immediately; an exhausted chain yields AllBackendsExhausted.
func (rt *Router) Send(ctx context.Context, req Request, preferredTier string) (*Response, error) {
	chain := rt.Route(estimateRequestTokens(req), preferredTier)
	if len(chain) == 0 {
		return nil, &AllBackendsExhausted{}
	}

	var tried []string
	var lastErr error
	for _, d := range chain {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := rt.sendOne(ctx, d, req)
		tried = append(tried, d.ID)
		if err == nil {
			return resp, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		rt.logger.Warn("backend failed, advancing chain", "backend", d.ID, "error", err)
		lastErr = err
	}
	return nil, &AllBackendsExhausted{Tried: tried, Last: lastErr}
}

// Stream is the streaming variant of Send. Chain advancement happens only on
// call-setup failure; an error after chunks have been delivered is surfaced
// on the channel, since partial output has already reached the consumer.
func (rt *Router) Stream(ctx context.Context, req Request, preferredTier string) (<-chan Chunk, error) {
	chain := rt.Route(estimateRequestTokens(req), preferredTier)
	if len(chain) == 0 {
		return nil, &AllBackendsExhausted{}
	}

	var tried []string
	var lastErr error
	for _, d := range chain {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a, err := rt.registry.Adapter(ctx, d.ID)
		if err == nil {
			var ch <-chan Chunk
			ch, err = a.Stream(ctx, req)
			if err == nil {
				return ch, nil
			}
		}
		tried = append(tried, d.ID)
		if !IsRetryable(err) {
			return nil, err
		}
		rt.logger.Warn("backend failed, advancing chain", "backend", d.ID, "error", err)
		lastErr = err
	}
	return nil, &AllBackendsExhausted{Tried: tried, Last: lastErr}
}

func (rt *Router) sendOne(ctx context.Context, d Descriptor, req Request) (*Response, error) {
	a, err := rt.registry.Adapter(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	return a.Send(ctx, req)
}

// estimateRequestTokens sizes a request for context-window filtering: the
// conversation's chars/4 estimate plus the tool catalog the request carries.
func estimateRequestTokens(req Request) int {
	total := messageChars(req.Messages)
	for _, t := range req.Tools {
		total += len(t.Name) + len(t.Description)
	}
	return total / 4
}
