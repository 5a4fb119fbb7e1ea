package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/elokus/StructGenie/codec"
)

// Cache stores successful outputs keyed by template and inputs.
type Cache interface {
	Get(ctx context.Context, key string) (map[string]any, bool, error)
	Set(ctx context.Context, key string, output map[string]any) error
}

// Recorder persists one record per top-level run.
type Recorder interface {
	Record(ctx context.Context, rec *RunRecord) error
}

// Observer is notified about attempts and runs. Cache hits are reported
// as runs with Metrics.Cached set and no attempts.
type Observer interface {
	ObserveAttempt(engine string, attempt int, err error)
	ObserveRun(engine string, metrics RunMetrics, err error)
}

// Observers fans notifications out to every non-nil observer.
func Observers(obs ...Observer) Observer {
	var list multiObserver
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multiObserver []Observer

func (m multiObserver) ObserveAttempt(engine string, attempt int, err error) {
	for _, o := range m {
		o.ObserveAttempt(engine, attempt, err)
	}
}

func (m multiObserver) ObserveRun(engine string, metrics RunMetrics, err error) {
	for _, o := range m {
		o.ObserveRun(engine, metrics, err)
	}
}

// RunRecord describes a finished run.
type RunRecord struct {
	RunID     uuid.UUID
	Engine    string
	Inputs    map[string]any
	Output    map[string]any
	Metrics   RunMetrics
	Err       error
	StartedAt time.Time
}

// CacheKey derives the cache key of a run from the rendered template
// document and the merged inputs.
func CacheKey(template string, inputs map[string]any) (string, error) {
	rendered, err := codec.DumpYAML(inputs)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(template))
	h.Write([]byte{0})
	h.Write([]byte(rendered))
	return hex.EncodeToString(h.Sum(nil)), nil
}
