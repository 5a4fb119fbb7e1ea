package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/elokus/StructGenie/codec"
	"github.com/elokus/StructGenie/engine"
	"github.com/elokus/StructGenie/internal/history"
	"github.com/elokus/StructGenie/llm"
)

// errNoGeneration backs the engines of commands that never generate.
var errNoGeneration = errors.New("command does not generate")

// =============================================================================
// run
// =============================================================================

func runRun(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("run")
	configPath := fs.String("config", "", "Path to config file")
	templatePath := fs.String("template", "", "Path to the template document")
	inputsPath := fs.String("inputs", "", "YAML inputs: a mapping or a list of mappings")
	votes := fs.Int("votes", 0, "Run a majority vote over N generations")
	chain := fs.Bool("chain", false, "Treat the template as a chain of templates")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *templatePath == "" {
		return errors.New("--template is required")
	}

	doc, err := os.ReadFile(*templatePath)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	inputs, batch, err := readInputs(*inputsPath)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	a := newApp(cfg, logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := a.close(closeCtx); cerr != nil {
			logger.Warn("shutdown incomplete", zap.Error(cerr))
		}
	}()

	opts, err := a.engineOptions()
	if err != nil {
		return err
	}
	out, err := execRun(ctx, runMode{
		name:  templateName(*templatePath),
		batch: batch,
		votes: *votes,
		chain: *chain,
	}, string(doc), inputs, opts, logger)
	if err != nil {
		return err
	}
	return writeYAML(stdout, out)
}

// runMode selects how run executes a template.
type runMode struct {
	name  string
	batch bool
	votes int
	chain bool
}

// execRun runs the template in the selected mode and returns the document
// to print. Chain steps keep their own step names.
func execRun(ctx context.Context, mode runMode, doc string, inputs []map[string]any, opts []engine.Option, logger *zap.Logger) (any, error) {
	if mode.chain {
		if mode.batch {
			return nil, errors.New("--chain takes a single input mapping")
		}
		c, err := engine.ChainFromTemplate(doc, opts...)
		if err != nil {
			return nil, err
		}
		res, err := c.Run(ctx, inputs[0])
		if err != nil {
			return nil, err
		}
		merged := map[string]any{}
		for _, step := range res.Steps {
			for k, v := range step {
				merged[k] = v
			}
		}
		return merged, nil
	}

	e, err := engine.FromTemplate(doc, append([]engine.Option{engine.WithName(mode.name)}, opts...)...)
	if err != nil {
		return nil, err
	}

	switch {
	case mode.votes > 0:
		if mode.batch {
			return nil, errors.New("--votes takes a single input mapping")
		}
		res, err := engine.NewMajorVote(e, mode.votes, 0).Run(ctx, inputs[0])
		if err != nil {
			return nil, err
		}
		logger.Info("vote finished",
			zap.Int("votes", res.Votes),
			zap.Int("outputs", len(res.Outputs)),
			zap.Strings("failed_keys", res.FailedKeys),
		)
		return res.Output, nil

	case mode.batch:
		results, err := e.Apply(ctx, inputs)
		if err != nil {
			return nil, err
		}
		outs := make([]any, len(results))
		for i, r := range results {
			outs[i] = r.Output
		}
		return outs, nil

	default:
		res, err := e.Run(ctx, inputs[0])
		if err != nil {
			return nil, err
		}
		logger.Info("run finished",
			zap.String("run_id", res.Metrics.RunID.String()),
			zap.Int("attempts", res.Metrics.Attempts),
			zap.Int("total_tokens", res.Metrics.TotalTokens),
			zap.Bool("cached", res.Metrics.Cached),
		)
		return res.Output, nil
	}
}

// =============================================================================
// compile / validate
// =============================================================================

func runCompile(args []string, stdout io.Writer) error {
	fs := newFlagSet("compile")
	templatePath := fs.String("template", "", "Path to the template document")
	inputsPath := fs.String("inputs", "", "Optional YAML inputs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, inputs, err := offlineEngine(*templatePath, *inputsPath)
	if err != nil {
		return err
	}
	out, err := e.Builder().ResponseSchema(e.Inputs(inputs))
	if err != nil {
		return err
	}
	_, err = io.WriteString(stdout, out)
	return err
}

// runValidate reports whether the output document conforms.
func runValidate(args []string, stdout io.Writer) (bool, error) {
	fs := newFlagSet("validate")
	templatePath := fs.String("template", "", "Path to the template document")
	outputPath := fs.String("output", "", "YAML output document")
	inputsPath := fs.String("inputs", "", "Optional YAML inputs")
	if err := fs.Parse(args); err != nil {
		return false, err
	}
	if *outputPath == "" {
		return false, errors.New("--output is required")
	}

	e, inputs, err := offlineEngine(*templatePath, *inputsPath)
	if err != nil {
		return false, err
	}
	raw, err := os.ReadFile(*outputPath)
	if err != nil {
		return false, fmt.Errorf("read output: %w", err)
	}
	decoded, err := codec.YAML{}.Decode(string(raw))
	if err != nil {
		return false, err
	}
	output, ok := decoded.(map[string]any)
	if !ok {
		return false, fmt.Errorf("output must be a mapping, got %T", decoded)
	}

	merged := e.Inputs(inputs)
	errs := e.SelectValidator(output, merged).Validate(output, merged)
	if len(errs) == 0 {
		fmt.Fprintln(stdout, "OK")
		return true, nil
	}
	for _, ve := range errs {
		fmt.Fprintf(stdout, "- %s\n", ve.Error())
	}
	return false, nil
}

// offlineEngine builds an engine for commands that only compile or
// validate; its predictor refuses every call.
func offlineEngine(templatePath, inputsPath string) (*engine.Engine, map[string]any, error) {
	if templatePath == "" {
		return nil, nil, errors.New("--template is required")
	}
	doc, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read template: %w", err)
	}
	inputs, batch, err := readInputs(inputsPath)
	if err != nil {
		return nil, nil, err
	}
	if batch {
		return nil, nil, errors.New("--inputs must be a single mapping")
	}
	refuse := llm.PredictorFunc(func(context.Context, *llm.Request) (string, llm.Metrics, error) {
		return "", llm.Metrics{}, errNoGeneration
	})
	e, err := engine.FromTemplate(string(doc), engine.WithPredictor(refuse), engine.WithName(templateName(templatePath)))
	if err != nil {
		return nil, nil, err
	}
	return e, inputs[0], nil
}

// =============================================================================
// history
// =============================================================================

func runHistory(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("history")
	configPath := fs.String("config", "", "Path to config file")
	engineName := fs.String("engine", "", "Only runs of this engine")
	limit := fs.Int("limit", 20, "Maximum number of runs")
	prune := fs.Duration("prune", 0, "Delete runs older than this age first")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return errors.New("history is disabled; set history.enabled")
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	store, err := history.Open(historyConfig(cfg.History), logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if *prune > 0 {
		n, err := store.Prune(ctx, time.Now().Add(-*prune))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "pruned %d runs\n", n)
	}
	return printHistory(ctx, store, *engineName, *limit, stdout)
}

func printHistory(ctx context.Context, store *history.Store, engineName string, limit int, stdout io.Writer) error {
	runs, err := store.List(ctx, history.Filter{Engine: engineName, Limit: limit})
	if err != nil {
		return err
	}
	sum, err := store.Summarize(ctx, engineName)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENGINE\tSTATUS\tATTEMPTS\tTOKENS\tELAPSED\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%dms\t%s\n",
			r.ID, r.Engine, r.Status, r.Attempts, r.TotalTokens, r.ElapsedMS, r.CreatedAt.Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\n%d runs, %d failed, %.2f attempts per run, %d tokens\n",
		sum.Runs, sum.Failures, sum.AverageAttempts(), sum.TotalTokens)
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// readInputs reads a YAML mapping, or a list of mappings for batch runs.
// An empty path yields one empty mapping.
func readInputs(path string) ([]map[string]any, bool, error) {
	if path == "" {
		return []map[string]any{{}}, false, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read inputs: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("parse inputs: %w", err)
	}

	switch x := doc.(type) {
	case nil:
		return []map[string]any{{}}, false, nil
	case map[string]any:
		return []map[string]any{x}, false, nil
	case []any:
		out := make([]map[string]any, 0, len(x))
		for i, item := range x {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, false, fmt.Errorf("inputs item %d must be a mapping, got %T", i, item)
			}
			out = append(out, m)
		}
		return out, true, nil
	}
	return nil, false, fmt.Errorf("inputs must be a mapping or a list of mappings, got %T", doc)
}

// templateName names an engine after its template file.
func templateName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func writeYAML(w io.Writer, v any) error {
	out, err := codec.DumpYAML(v)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
