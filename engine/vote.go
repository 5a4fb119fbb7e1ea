package engine

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elokus/StructGenie/types"
)

// Defaults of MajorVote.
const (
	DefaultTotalVotes = 10
	DefaultMinVotes   = 2
)

// reasoningKeys are ignored when outputs are compared.
var reasoningKeys = []string{"reason", "chain-of-thoughts", "chain_of_thoughts", "reasoning"}

// MajorVote runs an engine several times on the same inputs and returns
// the most frequent output.
type MajorVote struct {
	engine     *Engine
	totalVotes int
	minVotes   int
}

// NewMajorVote creates a vote over e. Non-positive counts fall back to
// DefaultTotalVotes and DefaultMinVotes.
func NewMajorVote(e *Engine, totalVotes, minVotes int) *MajorVote {
	if totalVotes < 1 {
		totalVotes = DefaultTotalVotes
	}
	if minVotes < 1 {
		minVotes = DefaultMinVotes
	}
	return &MajorVote{engine: e, totalVotes: totalVotes, minVotes: minVotes}
}

// VoteResult is the outcome of a vote.
type VoteResult struct {
	Output map[string]any
	// Votes is the count of the winning output, 0 when composed per key.
	Votes int
	// FailedKeys lists keys without a majority in a composed output.
	FailedKeys []string
	Outputs    []map[string]any
	Metrics    []RunMetrics
}

// Run executes the votes concurrently. Failed runs do not vote; the vote
// fails only when every run failed. When no output reaches the minimum
// count, the result is composed key by key from the values that do.
func (v *MajorVote) Run(ctx context.Context, inputs map[string]any) (*VoteResult, error) {
	var (
		mu      sync.Mutex
		results = make([]*RunResult, v.totalVotes)
		errs    []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.engine.concurrency)
	for i := range v.totalVotes {
		g.Go(func() error {
			res, err := v.engine.Run(gctx, inputs)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := &VoteResult{}
	for _, res := range results {
		if res != nil {
			out.Outputs = append(out.Outputs, res.Output)
			out.Metrics = append(out.Metrics, res.Metrics)
		}
	}
	if len(out.Outputs) == 0 {
		return nil, types.NewError(types.ErrEngineRun, "every vote failed").WithCause(errors.Join(errs...))
	}

	board := rankOutputs(out.Outputs)
	logger := v.engine.logger.With(zap.Int("votes", len(out.Outputs)))
	if board[0].count >= v.minVotes {
		logger.Debug("majority vote", zap.Int("count", board[0].count))
		out.Output = board[0].value.(map[string]any)
		out.Votes = board[0].count
		return out, nil
	}

	logger.Debug("no majority, composing by key", zap.Int("count", board[0].count))
	out.Output = map[string]any{}
	for _, line := range v.engine.OutputModel().TopLevel() {
		key := line.Key
		var values []any
		for _, o := range out.Outputs {
			if val, ok := o[key]; ok {
				values = append(values, val)
			}
		}
		if len(values) == 0 {
			out.FailedKeys = append(out.FailedKeys, key)
			continue
		}
		top := rank(values)[0]
		if top.count >= v.minVotes || key == "reasoning" {
			out.Output[key] = top.value
			continue
		}
		out.FailedKeys = append(out.FailedKeys, key)
	}
	if len(out.FailedKeys) > 0 {
		logger.Warn("keys without majority", zap.Strings("keys", out.FailedKeys))
	}
	return out, nil
}

type ranked struct {
	value any
	count int
}

// rankOutputs groups outputs that are equal once reasoning keys are
// removed and sorts the groups by size. Ties keep first-seen order.
func rankOutputs(outputs []map[string]any) []ranked {
	var (
		groups []ranked
		clean  []map[string]any
	)
	for _, o := range outputs {
		c := withoutReasoning(o)
		found := false
		for i := range groups {
			if cmp.Equal(clean[i], c) {
				groups[i].count++
				found = true
				break
			}
		}
		if !found {
			groups = append(groups, ranked{value: o, count: 1})
			clean = append(clean, c)
		}
	}
	sortRanked(groups)
	return groups
}

func rank(values []any) []ranked {
	var groups []ranked
	for _, v := range values {
		found := false
		for i := range groups {
			if cmp.Equal(groups[i].value, v) {
				groups[i].count++
				found = true
				break
			}
		}
		if !found {
			groups = append(groups, ranked{value: v, count: 1})
		}
	}
	sortRanked(groups)
	return groups
}

func sortRanked(r []ranked) {
	sort.SliceStable(r, func(i, j int) bool { return r[i].count > r[j].count })
}

func withoutReasoning(o map[string]any) map[string]any {
	out := make(map[string]any, len(o))
	for k, v := range o {
		out[k] = v
	}
	for _, k := range reasoningKeys {
		delete(out, k)
	}
	return out
}
