package engine

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/elokus/StructGenie/llm"
	"github.com/elokus/StructGenie/types"
)

// RunResult is the outcome of a successful run.
type RunResult struct {
	Output  map[string]any
	Metrics RunMetrics
}

// RunMetrics summarizes one run.
type RunMetrics struct {
	RunID    uuid.UUID
	Attempts int
	// FailureRate counts the failed attempts.
	FailureRate int
	Generations []llm.Metrics
	TotalTokens int
	Elapsed     time.Duration
	// Errors logs every failed attempt as a *types.EngineRunError.
	Errors []error
	Cached bool
}

// RunState is the mutable state of one Run call. It is never shared
// between calls.
type RunState struct {
	RunID      uuid.UUID
	Inputs     map[string]any
	LastOutput string
	LastError  error

	attempts    int
	errors      []error
	generations []llm.Metrics
	started     time.Time
}

func newRunState(inputs map[string]any) *RunState {
	return &RunState{
		RunID:   uuid.New(),
		Inputs:  inputs,
		started: time.Now(),
	}
}

func (s *RunState) addGenerations(m ...llm.Metrics) {
	s.generations = append(s.generations, m...)
}

func (s *RunState) fail(err *types.EngineRunError) {
	s.LastError = err.Err
	s.errors = append(s.errors, err)
}

// Metrics snapshots the run so far.
func (s *RunState) Metrics() RunMetrics {
	return RunMetrics{
		RunID:       s.RunID,
		Attempts:    s.attempts,
		FailureRate: len(s.errors),
		Generations: append([]llm.Metrics(nil), s.generations...),
		TotalTokens: llm.Sum(s.generations).TotalTokens,
		Elapsed:     time.Since(s.started),
		Errors:      append([]error(nil), s.errors...),
	}
}

// feedback renders the previous attempt's error for the next prompt.
func (s *RunState) feedback() string {
	err := s.LastError
	if err == nil {
		return ""
	}
	var ve *types.ValidationError
	if errors.As(err, &ve) {
		return ve.Feedback()
	}
	var pe *types.ParsingError
	if errors.As(err, &pe) {
		if pe.Cause != nil {
			return pe.Message + ": " + pe.Cause.Error()
		}
		return pe.Message
	}
	return err.Error()
}
