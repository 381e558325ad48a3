package fake

import (
	"context"
	"fmt"
	"sync"
)

// OutputResolver is a static site.OutputResolver. Unknown resource/key
// pairs fail, mirroring a resource that never finished provisioning.
type OutputResolver struct {
	CallRecorder

	mu     sync.Mutex
	values map[string]string
}

func NewOutputResolver() *OutputResolver {
	return &OutputResolver{values: make(map[string]string)}
}

// Set registers the output value of a resource.
func (r *OutputResolver) Set(resource, key, value string) {
	r.mu.Lock()
	r.values[resource+"\x00"+key] = value
	r.mu.Unlock()
}

func (r *OutputResolver) OutputValue(ctx context.Context, resource, key string) (string, error) {
	r.record("OutputValue", resource, key)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[resource+"\x00"+key]
	if !ok {
		return "", fmt.Errorf("resource %q has no output %q", resource, key)
	}
	return v, nil
}
