package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"interview-assistant-service/metrics"
	"interview-assistant-service/openai"

	"github.com/apex/log"
	"golang.org/x/sync/singleflight"
)

// ErrAssistantUnavailable is returned when no assistant id can be obtained
var ErrAssistantUnavailable = errors.New("assistant unavailable")

// Resolver yields the id of the assistant that runs should use
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
	// Invalidate drops any cached id so the next Resolve looks it up again
	Invalidate()
}

// Provider is the part of the provider API needed to find or create an assistant
type Provider interface {
	ListAssistants(ctx context.Context) ([]openai.Assistant, error)
	CreateAssistant(ctx context.Context, spec openai.Assistant) (openai.Assistant, error)
}

// DefaultLookupTimeout bounds one shared find-or-create round trip
const DefaultLookupTimeout = 30 * time.Second

// Spec describes the assistant a NamedResolver looks for
type Spec struct {
	Name         string
	Model        string
	Instructions string
	// LookupTimeout bounds the shared lookup, which outlives the request that started it
	LookupTimeout time.Duration
}

// StaticResolver always returns the configured assistant id
type StaticResolver struct {
	id string
}

func NewStaticResolver(id string) *StaticResolver {
	return &StaticResolver{id: id}
}

func (r *StaticResolver) Resolve(ctx context.Context) (string, error) {
	if r.id == "" {
		metrics.AssistantResolutionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: no assistant id configured", ErrAssistantUnavailable)
	}
	metrics.AssistantResolutionsTotal.WithLabelValues("static").Inc()
	return r.id, nil
}

// Invalidate is a no-op, the configured id is the only candidate.
func (r *StaticResolver) Invalidate() {}

// NamedResolver finds the assistant by exact name, creating it when it does
// not exist. The resolved id is cached until Invalidate is called, and
// concurrent cold lookups share one provider round trip.
type NamedResolver struct {
	provider Provider
	spec     Spec

	mu     sync.RWMutex
	cached string
	// generation changes on every Invalidate; a lookup started before it must not cache
	generation uint64
	group      singleflight.Group
}

func NewNamedResolver(provider Provider, spec Spec) *NamedResolver {
	if spec.Instructions == "" {
		spec.Instructions = Instructions
	}
	if spec.LookupTimeout <= 0 {
		spec.LookupTimeout = DefaultLookupTimeout
	}
	return &NamedResolver{provider: provider, spec: spec}
}

func (r *NamedResolver) Resolve(ctx context.Context) (string, error) {
	r.mu.RLock()
	id := r.cached
	r.mu.RUnlock()
	if id != "" {
		metrics.AssistantResolutionsTotal.WithLabelValues("cache").Inc()
		return id, nil
	}

	// The shared lookup must not die with whichever request started it,
	// but it gets its own deadline so a hung provider call cannot pin it.
	ch := r.group.DoChan("resolve", func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.spec.LookupTimeout)
		defer cancel()
		return r.lookup(lookupCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (r *NamedResolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != "" {
		log.WithField("assistant_id", r.cached).Info("assistant.invalidated")
	}
	r.cached = ""
	r.generation++
}

func (r *NamedResolver) lookup(ctx context.Context) (string, error) {
	r.mu.RLock()
	id := r.cached
	generation := r.generation
	r.mu.RUnlock()
	if id != "" {
		metrics.AssistantResolutionsTotal.WithLabelValues("cache").Inc()
		return id, nil
	}

	assistants, err := r.provider.ListAssistants(ctx)
	if err != nil {
		metrics.AssistantResolutionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %w", ErrAssistantUnavailable, err)
	}

	source := "found"
	for _, a := range assistants {
		if a.Name == r.spec.Name {
			id = a.ID
			break
		}
	}

	if id == "" {
		created, err := r.provider.CreateAssistant(ctx, openai.Assistant{
			Name:         r.spec.Name,
			Model:        r.spec.Model,
			Instructions: r.spec.Instructions,
		})
		if err != nil {
			metrics.AssistantResolutionsTotal.WithLabelValues("error").Inc()
			return "", fmt.Errorf("%w: %w", ErrAssistantUnavailable, err)
		}
		id = created.ID
		source = "created"
	}

	r.mu.Lock()
	if r.generation == generation {
		r.cached = id
	}
	r.mu.Unlock()

	metrics.AssistantResolutionsTotal.WithLabelValues(source).Inc()
	log.WithFields(log.Fields{
		"assistant_id": id,
		"name":         r.spec.Name,
		"source":       source,
	}).Info("assistant.resolved")

	return id, nil
}
