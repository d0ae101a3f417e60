// Package build is the build pipeline: resolve a target, meld its data,
// render, format the command and run it, with loop fan-out and hook targets.
// Builds are strictly sequential.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
	"git.home.luguber.info/inful/docmeld/internal/command"
	"git.home.luguber.info/inful/docmeld/internal/config"
	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
	"git.home.luguber.info/inful/docmeld/internal/location"
	"git.home.luguber.info/inful/docmeld/internal/logfields"
	"git.home.luguber.info/inful/docmeld/internal/meld"
	"git.home.luguber.info/inful/docmeld/internal/metrics"
	"git.home.luguber.info/inful/docmeld/internal/observability"
	"git.home.luguber.info/inful/docmeld/internal/render"
	"git.home.luguber.info/inful/docmeld/internal/target"
)

// Stage names used for logs and metrics.
const (
	StageResolve = "resolve"
	StageMeld    = "meld"
	StageRender  = "render"
	StageCommand = "command"
)

// BuildService is the canonical interface for building targets. The CLI and
// the watcher are thin wrappers over it.
type BuildService interface {
	Build(ctx context.Context, req Request) (*Outcome, error)
}

// Request names one target of a loaded configuration.
type Request struct {
	Tree    *config.Tree
	Target  string
	Options Options
}

// Options modify a build. Hook targets inherit them.
type Options struct {
	// PrintOnly renders without running the command. Raw targets still run.
	PrintOnly bool
	// Vars are CLI key=value overrides.
	Vars []target.Var
}

// Service is the standard BuildService.
type Service struct {
	resolver *target.Resolver
	melder   *meld.Melder
	renderer *render.Renderer
	runner   command.Runner
	recorder metrics.Recorder
}

// NewService creates a Service reading from the OS filesystem and running
// commands through the default shell.
func NewService() *Service {
	return &Service{
		resolver: target.NewResolver(),
		melder:   meld.New(),
		renderer: render.New(),
		runner:   command.NewExecRunner(""),
		recorder: metrics.NoopRecorder{},
	}
}

// WithResolver replaces the target resolver.
func (s *Service) WithResolver(r *target.Resolver) *Service {
	s.resolver = r
	return s
}

// WithMelder replaces the data melder.
func (s *Service) WithMelder(m *meld.Melder) *Service {
	s.melder = m
	return s
}

// WithRenderer replaces the template renderer.
func (s *Service) WithRenderer(r *render.Renderer) *Service {
	s.renderer = r
	return s
}

// WithRunner replaces the command runner.
func (s *Service) WithRunner(r command.Runner) *Service {
	s.runner = r
	return s
}

// WithRecorder sets the metrics recorder.
func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	s.recorder = r
	return s
}

// Build runs req.Target with its prebuild hooks first and postbuild hooks
// after. Command failures are reported through Result.ReturnCode; errors are
// returned only for configuration, data, template and placeholder problems.
func (s *Service) Build(ctx context.Context, req Request) (*Outcome, error) {
	return s.build(ctx, req, req.Target, nil)
}

func (s *Service) build(ctx context.Context, req Request, name string, stack []string) (*Outcome, error) {
	if slices.Contains(stack, name) {
		chain := strings.Join(append(stack, name), " -> ")
		return nil, ferrors.WrapError(ErrHookCycle, ferrors.CategoryValidation,
			fmt.Sprintf("hook cycle: %s", chain)).
			WithContext("target", name).
			Build()
	}
	stack = append(stack, name)

	ctx = observability.WithTarget(ctx, name)
	start := time.Now()

	resolved, err := s.resolver.Resolve(req.Tree, name, req.Options.Vars)
	s.recorder.ObserveStageDuration(StageResolve, time.Since(start))
	if err != nil {
		s.recorder.IncBuildOutcome(name, metrics.OutcomeError)
		return nil, err
	}
	if len(stack) == 1 && resolved.Spec.Abstract {
		s.recorder.IncBuildOutcome(name, metrics.OutcomeError)
		return nil, ferrors.WrapError(ErrAbstractTarget, ferrors.CategoryValidation,
			fmt.Sprintf("target %q is abstract and cannot be built directly", name)).
			WithContext("target", name).
			Build()
	}

	out := &Outcome{Target: name}
	for _, hook := range resolved.Spec.Prebuild {
		observability.InfoContext(ctx, "Running prebuild hook", logfields.Stage("prebuild"), logfields.Target(hook))
		o, err := s.build(ctx, req, hook, stack)
		if err != nil {
			return nil, err
		}
		out.Prebuild = append(out.Prebuild, o)
	}

	if err := s.buildTarget(ctx, resolved, req.Options, out); err != nil {
		s.recorder.IncBuildOutcome(name, metrics.OutcomeError)
		return nil, err
	}

	for _, hook := range resolved.Spec.Postbuild {
		observability.InfoContext(ctx, "Running postbuild hook", logfields.Stage("postbuild"), logfields.Target(hook))
		o, err := s.build(ctx, req, hook, stack)
		if err != nil {
			return nil, err
		}
		out.Postbuild = append(out.Postbuild, o)
	}

	s.recorder.ObserveBuildDuration(name, time.Since(start))
	for _, r := range out.Results() {
		s.recorder.IncBuildOutcome(name, outcomeLabel(r))
	}
	return out, nil
}

func (s *Service) buildTarget(ctx context.Context, resolved *target.Resolved, opts Options, out *Outcome) error {
	if resolved.Spec.Type == config.TypeMeta {
		out.Result = &Result{
			ID:        uuid.NewString(),
			Target:    resolved.Name,
			Index:     -1,
			Params:    resolved.Params,
			Spec:      resolved.Spec,
			PrintOnly: opts.PrintOnly,
		}
		return nil
	}

	start := time.Now()
	melded, err := s.melder.Meld(ctx, meld.Input{
		Data:    resolved.Spec.Data,
		DefPath: definingPath(&resolved.Spec),
		Params:  resolved.Params,
	})
	s.recorder.ObserveStageDuration(StageMeld, time.Since(start))
	if err != nil {
		return err
	}
	s.recorder.AddMeldWarnings(resolved.Name, melded.WarningCount())

	double := resolved.Spec.DoubleRender()
	if resolved.Spec.Loop == nil {
		res, err := s.execute(ctx, resolved, melded.Context, opts.PrintOnly, double)
		if err != nil {
			return err
		}
		res.Warnings = melded.Warnings
		out.Result = res
		return nil
	}

	loop, err := s.expand(ctx, resolved, melded.Context, opts, double)
	if err != nil {
		return err
	}
	for _, r := range loop {
		r.Warnings = melded.Warnings
	}
	out.Loop = loop
	s.recorder.AddLoopIterations(resolved.Name, len(loop))
	return nil
}

// expand builds one job per element of the loop sequence. Each iteration gets
// its own copy of the context and parameters with the element bound to the
// loop variable in both.
func (s *Service) expand(ctx context.Context, resolved *target.Resolved, data meld.Context, opts Options, double bool) ([]*Result, error) {
	loop := resolved.Spec.Loop
	raw, ok := data.Lookup(loop.LoopData)
	if _, isSeq := raw.([]any); !ok || !isSeq {
		reason := "does not resolve"
		if ok {
			reason = fmt.Sprintf("is %T, not a sequence", raw)
		}
		return nil, ferrors.WrapError(ErrLoopDataNotFound, ferrors.CategoryData,
			fmt.Sprintf("loop_data %q %s", loop.LoopData, reason)).
			WithContext("target", resolved.Name).
			Build()
	}

	n := len(raw.([]any))
	observability.InfoContext(ctx, "Expanding loop", logfields.Stage("loop"), slog.Int("iterations", n))
	results := make([]*Result, 0, n)
	for i := range n {
		iterData, err := data.Clone()
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryInternal, "copy render context").Build()
		}
		seq, _ := iterData.Lookup(loop.LoopData)
		elem := seq.([]any)[i]
		iterData[loop.AssignTo] = elem

		iter, err := resolved.WithParam(loop.AssignTo, cfgtree.FromAny(elem))
		if err != nil {
			return nil, err
		}

		iterCtx := observability.WithStage(ctx, fmt.Sprintf("loop[%d]", i))
		res, err := s.execute(iterCtx, iter, iterData, opts.PrintOnly, double && !opts.PrintOnly)
		if err != nil {
			return nil, err
		}
		res.Index = i
		results = append(results, res)
	}
	return results, nil
}

// execute formats the command, renders unless the target is raw, and runs
// the command unless printOnly is set. Raw targets render nothing to print, so
// their command runs in print mode too.
func (s *Service) execute(ctx context.Context, resolved *target.Resolved, data meld.Context, printOnly, double bool) (*Result, error) {
	start := time.Now()
	if resolved.Spec.Type == config.TypeRaw {
		printOnly = false
	}
	params := resolved.Params.Clone()
	res := &Result{
		ID:        uuid.NewString(),
		Target:    resolved.Name,
		Index:     -1,
		Params:    params,
		Spec:      resolved.Spec,
		PrintOnly: printOnly,
	}
	ctx = observability.WithBuildID(ctx, res.ID)

	cmd, err := command.Format(params)
	if err != nil {
		return nil, err
	}
	res.Command = cmd

	var stdin []byte
	if resolved.Spec.Type != config.TypeRaw {
		renderStart := time.Now()
		output, err := s.renderer.Render(ctx, &resolved.Spec, data, double)
		s.recorder.ObserveStageDuration(StageRender, time.Since(renderStart))
		if err != nil {
			return nil, err
		}
		res.Output = output
		res.Rendered = true
		res.Fingerprint = fingerprint(output)
		stdin = []byte(output)
	}

	switch {
	case printOnly:
		res.ReturnCode = 0
	case strings.TrimSpace(cmd) == "":
		observability.WarnContext(ctx, "Target has an empty command, nothing to run")
		res.ReturnCode = NoCommandExitCode
	default:
		res.ReturnCode = s.run(ctx, resolved, cmd, stdin)
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (s *Service) run(ctx context.Context, resolved *target.Resolved, cmd string, stdin []byte) int {
	dir := commandDir(&resolved.Spec)
	observability.InfoContext(ctx, "Running command", logfields.Command(cmd), logfields.Path(dir))

	start := time.Now()
	code, err := s.runner.Run(ctx, command.Invocation{
		Command: cmd,
		Stdin:   stdin,
		Dir:     dir,
		Shell:   resolved.Spec.UseShell(),
	})
	elapsed := time.Since(start)
	s.recorder.ObserveStageDuration(StageCommand, elapsed)

	switch {
	case err != nil:
		observability.ErrorContext(ctx, "Command could not be run", logfields.ReturnCode(code), logfields.Error(err))
	case code != 0:
		observability.WarnContext(ctx, "Command failed", logfields.ReturnCode(code))
	default:
		observability.DebugContext(ctx, "Command finished", logfields.ReturnCode(code), logfields.DurationMS(float64(elapsed.Milliseconds())))
	}
	return code
}

func definingPath(spec *config.TargetSpec) string {
	if spec.DefPath != "" {
		return spec.DefPath
	}
	return spec.CfgFilePath
}

func workingPath(spec *config.TargetSpec) string {
	if spec.WorkPath != "" {
		return spec.WorkPath
	}
	return definingPath(spec)
}

// commandDir is the directory commands run in, or "" for the process's own
// when the target was defined at a URL.
func commandDir(spec *config.TargetSpec) string {
	work := workingPath(spec)
	if work == "" || location.IsURL(work) {
		return ""
	}
	return location.Dir(work)
}

func outcomeLabel(r *Result) metrics.OutcomeLabel {
	switch {
	case r.PrintOnly:
		return metrics.OutcomePrinted
	case r.ReturnCode == 0:
		return metrics.OutcomeSuccess
	case r.ReturnCode == NoCommandExitCode:
		return metrics.OutcomeNoCommand
	default:
		return metrics.OutcomeFailed
	}
}
