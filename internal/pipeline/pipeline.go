package pipeline

import (
	"fmt"

	"github.com/cleared-dev/posprep/internal/diag"
	"github.com/cleared-dev/posprep/internal/impute"
	"github.com/cleared-dev/posprep/internal/ingest"
	"github.com/cleared-dev/posprep/internal/model"
	"github.com/cleared-dev/posprep/internal/normalize"
)

// Step is a single stage of the preparation pipeline.
type Step interface {
	Execute(state *State) error
}

// State carries each stage's output to the next one.
type State struct {
	Source     string
	Raw        model.Table
	Normalized model.Dataset
	Imputed    model.Dataset
	Report     impute.Report
	NullDates  int
}

// IngestStep reads State.Source into State.Raw.
type IngestStep struct {
	Registry  *ingest.Registry
	Options   ingest.Options
	Collector diag.Collector
}

func (s *IngestStep) Execute(state *State) error {
	t, err := s.Registry.Load(state.Source, s.Options, s.Collector)
	if err != nil {
		return err
	}
	state.Raw = t
	return nil
}

// NormalizeStep casts State.Raw into State.Normalized.
type NormalizeStep struct {
	Collector diag.Collector
}

func (s *NormalizeStep) Execute(state *State) error {
	ds, err := normalize.Normalize(state.Raw, s.Collector)
	if err != nil {
		return err
	}
	state.Normalized = ds
	state.NullDates = ds.NullDates()
	return nil
}

// ImputeStep fills and filters State.Normalized into State.Imputed.
type ImputeStep struct {
	Collector diag.Collector
}

func (s *ImputeStep) Execute(state *State) error {
	state.Imputed, state.Report = impute.Impute(state.Normalized, s.Collector)
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline with the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially and stops at the first failure.
func (p *Pipeline) Execute(state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// New builds the standard ingest, normalize, impute pipeline.
func New(reg *ingest.Registry, opts ingest.Options, c diag.Collector) *Pipeline {
	if reg == nil {
		reg = ingest.DefaultRegistry()
	}
	if c == nil {
		c = diag.Nop
	}
	return NewPipeline(
		&IngestStep{Registry: reg, Options: opts, Collector: c},
		&NormalizeStep{Collector: c},
		&ImputeStep{Collector: c},
	)
}

// Run prepares the file at path and returns every stage's output.
func (p *Pipeline) Run(path string) (*State, error) {
	state := &State{Source: path}
	if err := p.Execute(state); err != nil {
		return state, err
	}
	return state, nil
}
