// Package engine runs a recipe: validate, read, transform, write. A
// run moves through an explicit state machine and each transition is
// logged; Failed is terminal and reachable from every phase.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skillet-data/skillet/internal/connector"
	"github.com/skillet-data/skillet/internal/custom"
	"github.com/skillet-data/skillet/internal/dataset"
	"github.com/skillet-data/skillet/internal/errs"
	"github.com/skillet-data/skillet/internal/logger"
	"github.com/skillet-data/skillet/internal/recipe"
	"github.com/skillet-data/skillet/internal/registry"
	"github.com/skillet-data/skillet/internal/schema"
)

// State names a phase of the run lifecycle.
type State string

const (
	StateLoaded       State = "loaded"
	StateValidated    State = "validated"
	StateReading      State = "reading"
	StateTransforming State = "transforming"
	StateWriting      State = "writing"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Error-handling policies a step may declare via on_error.
const (
	policyFail     = "fail"
	policySkipRow  = "skip_row"
	policySkipStep = "skip_step"
)

// Options wires a pipeline's collaborators. Kinds and Connectors are
// required; the rest default sensibly.
type Options struct {
	Kinds          registry.Resolver
	Connectors     *connector.Registry
	Functions      *custom.Loader
	Variables      map[string]string
	Credentials    func(name string) connector.Credentials
	RowConcurrency int
}

// Pipeline owns one run of one recipe. It is not reusable: after Run
// returns the pipeline is in a terminal state.
type Pipeline struct {
	recipe  *recipe.Recipe
	kinds   *registry.Overlay
	conns   *connector.Registry
	env     registry.RunEnv
	state   State
	summary Summary
}

// New prepares a pipeline in the Loaded state. Custom function kinds
// referenced by the recipe are resolved through the loader and
// registered into the run's overlay here, so a bad reference fails
// before validation rather than mid-run.
func New(r *recipe.Recipe, opts Options) (*Pipeline, error) {
	if opts.Kinds == nil || opts.Connectors == nil {
		return nil, fmt.Errorf("%w: engine requires kinds and connectors", errs.ErrConfigInvalid)
	}
	creds := opts.Credentials
	if creds == nil {
		creds = func(string) connector.Credentials { return connector.Credentials{} }
	}
	overlay := registry.NewOverlay(opts.Kinds)
	p := &Pipeline{
		recipe: r,
		kinds:  overlay,
		conns:  opts.Connectors,
		state:  StateLoaded,
		summary: Summary{
			RunID: uuid.NewString(),
			State: StateLoaded,
		},
	}
	p.env = registry.RunEnv{
		Connectors:     opts.Connectors,
		Credentials:    creds,
		Variables:      opts.Variables,
		RowConcurrency: opts.RowConcurrency,
		Kinds:          overlay,
	}
	if err := p.registerCustomKinds(opts.Functions); err != nil {
		return nil, err
	}
	return p, nil
}

// State returns the pipeline's current lifecycle state.
func (p *Pipeline) State() State { return p.state }

// registerCustomKinds walks every section, including nested step
// lists, and registers each "custom.<name>" kind into the overlay.
func (p *Pipeline) registerCustomKinds(loader *custom.Loader) error {
	var walk func(steps []recipe.Step) error
	walk = func(steps []recipe.Step) error {
		for _, st := range steps {
			if strings.HasPrefix(st.Kind, custom.Prefix) {
				if _, err := p.kinds.Resolve(st.Kind); err == nil {
					continue // already registered
				}
				if loader == nil {
					return &errs.CustomFunctionError{
						Symbol: strings.TrimPrefix(st.Kind, custom.Prefix),
						Reason: errs.ErrFunctionFileNotFound,
					}
				}
				sch, factory, err := loader.Entry(st.Kind)
				if err != nil {
					return err
				}
				if err := p.kinds.Register(st.Kind, sch, factory); err != nil {
					return err
				}
				continue
			}
			entry, err := p.kinds.Resolve(st.Kind)
			if err != nil {
				continue // the validator reports unknown kinds
			}
			for _, key := range entry.Schema.NestedSteps {
				nested, err := recipe.ConfigSteps(st.Config[key])
				if err != nil {
					continue
				}
				if err := walk(nested); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, section := range [][]recipe.Step{p.recipe.Read, p.recipe.Wrangles, p.recipe.Write} {
		if err := walk(section); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) transition(to State) {
	logger.LogDebug("pipeline state", map[string]interface{}{
		"run_id": p.summary.RunID, "from": string(p.state), "to": string(to),
	})
	p.state = to
	p.summary.State = to
}

func (p *Pipeline) fail(err error) *Summary {
	p.transition(StateFailed)
	p.summary.Error = err.Error()
	logger.LogError("pipeline failed", err, map[string]interface{}{
		"run_id": p.summary.RunID,
	})
	return &p.summary
}

// Validate checks the recipe against every kind's schema, collecting
// all violations before reporting any.
func (p *Pipeline) Validate() error {
	if p.state != StateLoaded {
		return nil
	}
	if violations := schema.Validate(p.recipe, p.kinds); len(violations) > 0 {
		return &errs.ValidationError{Violations: violations}
	}
	p.transition(StateValidated)
	return nil
}

// Run executes the pipeline to a terminal state and returns the run
// summary. The returned summary is final; the engine never touches it
// again.
func (p *Pipeline) Run(ctx context.Context) *Summary {
	p.summary.StartedAt = time.Now()
	defer func() { p.summary.Duration = time.Since(p.summary.StartedAt) }()

	if err := p.Validate(); err != nil {
		return p.fail(err)
	}

	p.transition(StateReading)
	ds, err := p.readPhase(ctx)
	if err != nil {
		return p.fail(err)
	}
	p.summary.RowsRead = ds.NumRows()

	p.transition(StateTransforming)
	ds, err = p.transformPhase(ctx, ds)
	if err != nil {
		return p.fail(err)
	}

	// A recipe without write steps never opens a write connector.
	if len(p.recipe.Write) > 0 {
		p.transition(StateWriting)
		if err := p.writePhase(ctx, ds); err != nil {
			return p.fail(err)
		}
	}

	p.transition(StateCompleted)
	logger.LogInfo("pipeline completed", map[string]interface{}{
		"run_id": p.summary.RunID,
		"rows":   p.summary.RowsRead, "written": p.summary.RowsWritten,
	})
	return &p.summary
}

// readPhase reads every read step and merges multiple results by row
// appending, which requires matching column sets. A recipe may have no
// read steps at all; the wrangle and write phases then run over an
// empty dataset.
func (p *Pipeline) readPhase(ctx context.Context) (*dataset.Dataset, error) {
	if len(p.recipe.Read) == 0 {
		return dataset.New()
	}
	var out *dataset.Dataset
	for i, st := range p.recipe.Read {
		if err := ctx.Err(); err != nil {
			return nil, errs.ErrRunCancelled
		}
		start := time.Now()
		ds, err := p.readStep(ctx, st)
		if err != nil {
			p.summary.record("read", i, st.Kind, StatusFailed, start, 0, err)
			return nil, err
		}
		p.summary.record("read", i, st.Kind, StatusSucceeded, start, 0, nil)
		if out == nil {
			out = ds
			continue
		}
		if err := out.Append(ds); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// readStep resolves one read entry: a combinator recurses into its
// sources, anything else is a connector opened for the duration of
// the read.
func (p *Pipeline) readStep(ctx context.Context, st recipe.Step) (*dataset.Dataset, error) {
	switch st.Kind {
	case "union", "concatenate", "join":
		return p.readCombinator(ctx, st)
	}

	conn, err := p.conns.Resolve(st.Kind)
	if err != nil {
		return nil, err
	}
	var ds *dataset.Dataset
	err = connector.WithHandle(ctx, conn, connector.Location(st.Config), p.env.Credentials(st.Kind), func(h connector.Handle) error {
		var rerr error
		ds, rerr = h.Read(ctx)
		return rerr
	})
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func (p *Pipeline) readCombinator(ctx context.Context, st recipe.Step) (*dataset.Dataset, error) {
	sources, err := recipe.ConfigSteps(st.Config["sources"])
	if err != nil {
		return nil, err
	}
	if len(sources) < 2 {
		return nil, fmt.Errorf("%w: %s requires at least two sources", errs.ErrConfigInvalid, st.Kind)
	}
	parts := make([]*dataset.Dataset, len(sources))
	for i, src := range sources {
		parts[i], err = p.readStep(ctx, src)
		if err != nil {
			return nil, err
		}
	}

	switch st.Kind {
	case "union":
		out := parts[0]
		for _, part := range parts[1:] {
			if err := out.Append(part); err != nil {
				return nil, err
			}
		}
		return out, nil
	case "concatenate":
		out := parts[0]
		for _, part := range parts[1:] {
			if err := out.Concat(part); err != nil {
				return nil, err
			}
		}
		return out, nil
	default: // join
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: join requires exactly two sources", errs.ErrConfigInvalid)
		}
		on, err := asStringList(st.Config["on"])
		if err != nil {
			return nil, err
		}
		return parts[0].Join(parts[1], on)
	}
}

// transformPhase applies the wrangle steps in declaration order, each
// receiving the previous step's output. A step's on_error policy
// decides what its failure means for the run.
func (p *Pipeline) transformPhase(ctx context.Context, ds *dataset.Dataset) (*dataset.Dataset, error) {
	for i, st := range p.recipe.Wrangles {
		if err := ctx.Err(); err != nil {
			return nil, errs.ErrRunCancelled
		}
		entry, err := p.kinds.Resolve(st.Kind)
		if err != nil {
			return nil, err
		}
		step, err := entry.Factory(st.Config, p.env)
		if err != nil {
			return nil, &errs.StepError{Index: i, Kind: st.Kind, Row: -1, Err: err}
		}
		policy, _ := st.Config["on_error"].(string)
		if policy == "" {
			policy = policyFail
		}

		start := time.Now()
		switch policy {
		case policySkipRow:
			out, skipped, err := applyByRow(ctx, step, ds)
			if err != nil {
				p.summary.record("wrangles", i, st.Kind, StatusFailed, start, skipped, err)
				return nil, &errs.StepError{Index: i, Kind: st.Kind, Row: -1, Err: err}
			}
			p.summary.record("wrangles", i, st.Kind, StatusSucceeded, start, skipped, nil)
			ds = out

		case policySkipStep:
			// The step works on a copy so a mid-step failure cannot
			// leave partial mutations behind.
			out, err := step.Apply(ctx, ds.Clone())
			if err != nil {
				logger.LogWarn("step skipped", map[string]interface{}{
					"step": i, "kind": st.Kind, "error": err.Error(),
				})
				p.summary.record("wrangles", i, st.Kind, StatusSkipped, start, 0, err)
				continue
			}
			p.summary.record("wrangles", i, st.Kind, StatusSucceeded, start, 0, nil)
			ds = out

		default:
			out, err := step.Apply(ctx, ds)
			if err != nil {
				serr := &errs.StepError{Index: i, Kind: st.Kind, Row: -1, Err: err}
				p.summary.record("wrangles", i, st.Kind, StatusFailed, start, 0, serr)
				return nil, serr
			}
			p.summary.record("wrangles", i, st.Kind, StatusSucceeded, start, 0, nil)
			ds = out
		}
	}
	return ds, nil
}

// applyByRow runs a row-capable step row by row. Rows whose
// transformation fails are dropped and counted; the rest keep their
// relative order. Columns added by the step are appended after the
// existing ones in sorted name order.
func applyByRow(ctx context.Context, step registry.Step, ds *dataset.Dataset) (*dataset.Dataset, int, error) {
	rs, ok := step.(registry.RowStep)
	if !ok {
		return nil, 0, fmt.Errorf("%w: step is not row-capable", errs.ErrConfigInvalid)
	}

	cols := ds.Columns()
	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c] = true
	}
	var added []string
	var survivors []map[string]interface{}
	skipped := 0

	for r := 0; r < ds.NumRows(); r++ {
		out, err := rs.ApplyRow(ctx, ds.RowMap(r))
		if err != nil {
			skipped++
			logger.LogDebug("row skipped", map[string]interface{}{"row": r, "error": err.Error()})
			continue
		}
		for k := range out {
			if !known[k] {
				known[k] = true
				added = append(added, k)
			}
		}
		survivors = append(survivors, out)
	}
	sort.Strings(added)
	return mustFromRows(append(cols, added...), survivors), skipped, nil
}

func mustFromRows(columns []string, rows []map[string]interface{}) *dataset.Dataset {
	ds, err := dataset.FromRows(columns, rows)
	if err != nil {
		// column list is deduplicated by construction
		panic(err)
	}
	return ds
}

// writePhase writes the final dataset through each write step. Writes
// are not transactional across connectors: a failure stops the run
// but earlier writes stand, and the summary records both. A write step
// marked on_error: skip_step is best-effort; its failure is recorded
// and the remaining writes still run.
func (p *Pipeline) writePhase(ctx context.Context, ds *dataset.Dataset) error {
	for i, st := range p.recipe.Write {
		if err := ctx.Err(); err != nil {
			return errs.ErrRunCancelled
		}
		policy, _ := st.Config["on_error"].(string)
		start := time.Now()
		rows, err := p.writeStep(ctx, st, ds)
		if err != nil {
			if policy == policySkipStep {
				logger.LogWarn("write skipped", map[string]interface{}{
					"step": i, "kind": st.Kind, "error": err.Error(),
				})
				p.summary.record("write", i, st.Kind, StatusSkipped, start, 0, err)
				continue
			}
			p.summary.record("write", i, st.Kind, StatusFailed, start, 0, err)
			return err
		}
		p.summary.record("write", i, st.Kind, StatusSucceeded, start, 0, nil)
		p.summary.RowsWritten += rows
	}
	return nil
}

func (p *Pipeline) writeStep(ctx context.Context, st recipe.Step, ds *dataset.Dataset) (int, error) {
	out := ds
	if cols, ok := st.Config["columns"]; ok {
		names, err := asStringList(cols)
		if err != nil {
			return 0, err
		}
		expanded, err := ds.ExpandColumns(names)
		if err != nil {
			return 0, err
		}
		out, err = ds.Select(expanded)
		if err != nil {
			return 0, err
		}
	}

	conn, err := p.conns.Resolve(st.Kind)
	if err != nil {
		return 0, err
	}
	err = connector.WithHandle(ctx, conn, connector.Location(st.Config), p.env.Credentials(st.Kind), func(h connector.Handle) error {
		return h.Write(ctx, out)
	})
	if err != nil {
		return 0, err
	}
	return out.NumRows(), nil
}

func asStringList(v interface{}) ([]string, error) {
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []interface{}:
		out := make([]string, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: list element %d is %T, want string", errs.ErrConfigInvalid, i, e)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: want string or list, got %T", errs.ErrConfigInvalid, v)
	}
}
