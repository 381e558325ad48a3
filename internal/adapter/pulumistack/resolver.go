// Package pulumistack resolves provisioned-resource outputs from a Pulumi
// stack through the automation API.
package pulumistack

import (
	"context"
	"fmt"
	"sync"

	"github.com/pulumi/pulumi/sdk/v3/go/auto"
)

// Resolver reads stack outputs of one local Pulumi stack. Outputs are
// expected either as nested objects keyed by resource name or flat as
// "resource.key".
type Resolver struct {
	workDir   string
	stackName string

	mu       sync.Mutex
	selected bool
	stack    auto.Stack
}

func New(workDir, stackName string) *Resolver {
	return &Resolver{workDir: workDir, stackName: stackName}
}

func (r *Resolver) OutputValue(ctx context.Context, resource, key string) (string, error) {
	stack, err := r.selectStack(ctx)
	if err != nil {
		return "", fmt.Errorf("select stack %s: %w", r.stackName, err)
	}

	outputs, err := stack.Outputs(ctx)
	if err != nil {
		return "", fmt.Errorf("read outputs of stack %s: %w", r.stackName, err)
	}
	return lookup(outputs, resource, key)
}

func (r *Resolver) selectStack(ctx context.Context) (auto.Stack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.selected {
		return r.stack, nil
	}
	stack, err := auto.SelectStackLocalSource(ctx, r.stackName, r.workDir)
	if err != nil {
		return auto.Stack{}, err
	}
	r.stack = stack
	r.selected = true
	return r.stack, nil
}

func lookup(outputs auto.OutputMap, resource, key string) (string, error) {
	if out, ok := outputs[resource]; ok {
		nested, ok := out.Value.(map[string]any)
		if !ok {
			return "", fmt.Errorf("output %q is not an object", resource)
		}
		v, ok := nested[key]
		if !ok {
			return "", fmt.Errorf("resource %q has no output %q", resource, key)
		}
		return stringValue(resource, key, v)
	}

	flat := resource + "." + key
	out, ok := outputs[flat]
	if !ok {
		return "", fmt.Errorf("resource %q has no output %q", resource, key)
	}
	return stringValue(resource, key, out.Value)
}

func stringValue(resource, key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("output %q of %q is not a string", key, resource)
	}
	return s, nil
}
