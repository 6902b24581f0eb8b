package pipeline

import (
	"fmt"
	"time"

	"satpipe/internal/config"
	"satpipe/internal/filestate"
	"satpipe/internal/lifecycle"
	"satpipe/internal/services"
)

// Definition is a named, ordered list of stages and the status its
// triggering record receives when every stage succeeds.
type Definition struct {
	Name           string
	TerminalStatus filestate.Status
	Params         map[string]string
	Stages         []Stage
}

// Stage pairs a lifecycle spec with the command that implements it.
type Stage struct {
	Spec    lifecycle.StageSpec
	Command []string
	Timeout time.Duration
}

// FromConfig converts a configured pipeline.
func FromConfig(p config.Pipeline) (Definition, error) {
	terminal, err := filestate.Parse(p.TerminalStatus)
	if err != nil {
		return Definition{}, services.Wrap(services.ErrConfiguration, "", "pipeline "+p.Name, "terminal_status", err)
	}
	if !filestate.IsPipelineOutcome(terminal) {
		return Definition{}, services.Wrap(services.ErrConfiguration, "", "pipeline "+p.Name,
			fmt.Sprintf("terminal_status %s is not allowed (want std or to_delete)", terminal), nil)
	}

	def := Definition{
		Name:           p.Name,
		TerminalStatus: terminal,
		Params:         p.Params,
		Stages:         make([]Stage, 0, len(p.Stages)),
	}
	for _, s := range p.Stages {
		stage := Stage{
			Spec: lifecycle.StageSpec{
				Stage:    s.Name,
				Inputs:   s.Inputs,
				Outputs:  s.Outputs,
				TempDirs: s.TempDirs,
			},
			Command: s.Command,
			Timeout: time.Duration(s.Timeout) * time.Second,
		}
		if err := stage.Spec.Validate(); err != nil {
			return Definition{}, fmt.Errorf("pipeline %s: %w", p.Name, err)
		}
		def.Stages = append(def.Stages, stage)
	}
	return def, nil
}

// Lookup finds and converts the named pipeline in cfg.
func Lookup(cfg *config.Config, name string) (Definition, error) {
	p, ok := cfg.Pipeline(name)
	if !ok {
		return Definition{}, services.Wrap(services.ErrNotFound, "", "pipeline lookup", fmt.Sprintf("pipeline %q is not configured", name), nil)
	}
	return FromConfig(p)
}

// Stage returns the stage with the given name.
func (d Definition) Stage(name string) (Stage, bool) {
	for _, s := range d.Stages {
		if s.Spec.Stage == name {
			return s, true
		}
	}
	return Stage{}, false
}
