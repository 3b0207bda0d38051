package predict

import (
	"context"
	"fmt"
	"sync"

	"github.com/idlab-discover/FairDerm-cli/internal/dataset"
)

// Output is one scripted prediction.
type Output struct {
	Label      dataset.Label `json:"label" yaml:"label"`
	Confidence float64       `json:"confidence" yaml:"confidence"`
}

// ScriptedClassifier returns predetermined outputs keyed by image
// reference. It stands in for a real model in tests and dry runs.
type ScriptedClassifier struct {
	Outputs map[string]Output
	// Default answers references missing from Outputs. When nil, such
	// references fail.
	Default *Output

	mu    sync.Mutex
	calls []string
}

func (c *ScriptedClassifier) Predict(ctx context.Context, img Image) (dataset.Label, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	c.mu.Lock()
	c.calls = append(c.calls, img.Ref)
	c.mu.Unlock()

	if out, ok := c.Outputs[img.Ref]; ok {
		return out.Label, out.Confidence, nil
	}
	if c.Default != nil {
		return c.Default.Label, c.Default.Confidence, nil
	}
	return "", 0, fmt.Errorf("no scripted output for %q", img.Ref)
}

// Calls returns the references predicted so far, in order.
func (c *ScriptedClassifier) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// PreprocessFunc adapts a function to Preprocessor.
type PreprocessFunc func(ctx context.Context, img Image) (Image, error)

func (f PreprocessFunc) Preprocess(ctx context.Context, img Image) (Image, error) { return f(ctx, img) }
