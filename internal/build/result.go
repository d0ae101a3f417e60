package build

import (
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docmeld/internal/cfgtree"
	"git.home.luguber.info/inful/docmeld/internal/config"
)

// NoCommandExitCode is the ReturnCode of a build whose command was empty.
const NoCommandExitCode = -1

// Result is the outcome of building one target or one loop iteration.
type Result struct {
	// ID identifies the build in logs.
	ID     string
	Target string
	// Index is the loop iteration, or -1 outside loops.
	Index int

	// Output is the rendered text; empty for raw and meta targets.
	Output   string
	Rendered bool
	// Fingerprint is the mdfp fingerprint of Output.
	Fingerprint string

	// Command is the formatted command that ran, or would have run.
	Command    string
	ReturnCode int
	PrintOnly  bool

	// Params are the fully resolved parameters, with output_file expanded.
	Params *cfgtree.Map
	Spec   config.TargetSpec

	// Warnings lists data sources that degraded during meld.
	Warnings error
	Duration time.Duration
}

// Succeeded reports whether the command exited 0.
func (r *Result) Succeeded() bool {
	return r.ReturnCode == 0
}

// OutputFile returns the expanded output_file, if any.
func (r *Result) OutputFile() string {
	return r.Params.GetString(config.KeyOutputFile)
}

// OutputPath returns output_file resolved against the directory the command
// ran in, which is where a relative output_file ends up.
func (r *Result) OutputPath() string {
	out := r.OutputFile()
	if out == "" || filepath.IsAbs(out) {
		return out
	}
	dir := commandDir(&r.Spec)
	if dir == "" {
		return out
	}
	return filepath.Join(dir, out)
}

// Openable reports whether the produced file should be shown to the user:
// the command ran and succeeded, and the target did not set stopopen.
func (r *Result) Openable() bool {
	return r.Succeeded() && !r.PrintOnly && r.Spec.Type != config.TypeMeta &&
		!r.Spec.StopOpen && r.OutputFile() != ""
}

// Outcome is everything one Build call produced.
type Outcome struct {
	Target string
	// Result is set for plain targets.
	Result *Result
	// Loop holds one result per iteration, in sequence order, for loop targets.
	Loop []*Result

	Prebuild  []*Outcome
	Postbuild []*Outcome
}

// IsLoop reports whether the target fanned out.
func (o *Outcome) IsLoop() bool {
	return o.Result == nil
}

// Results returns the target's own results: the single result, or every
// loop iteration.
func (o *Outcome) Results() []*Result {
	if o.Result != nil {
		return []*Result{o.Result}
	}
	return o.Loop
}

// All returns every result of the build: prebuild hooks, the target itself
// and postbuild hooks, depth first in execution order.
func (o *Outcome) All() []*Result {
	var out []*Result
	for _, h := range o.Prebuild {
		out = append(out, h.All()...)
	}
	out = append(out, o.Results()...)
	for _, h := range o.Postbuild {
		out = append(out, h.All()...)
	}
	return out
}

// Succeeded reports whether the target's own results and every hook succeeded.
func (o *Outcome) Succeeded() bool {
	for _, r := range o.Results() {
		if !r.Succeeded() {
			return false
		}
	}
	for _, hooks := range [][]*Outcome{o.Prebuild, o.Postbuild} {
		for _, h := range hooks {
			if !h.Succeeded() {
				return false
			}
		}
	}
	return true
}
