package media

import (
	"context"
	"fmt"
	"log/slog"
)

// StubEngine is an Engine for tests and dry runs. Probe answers come from
// the Files map; Execute records commands and succeeds.
type StubEngine struct {
	Files      map[string]*ProbeResult
	Executed   []Command
	ProbeCalls int
	logger     *slog.Logger
}

func NewStubEngine(logger *slog.Logger) *StubEngine {
	return &StubEngine{
		Files:  make(map[string]*ProbeResult),
		logger: logger,
	}
}

func (e *StubEngine) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	e.ProbeCalls++
	if r, ok := e.Files[path]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, fmt.Errorf("stub engine: no probe result registered for %s", path)
}

func (e *StubEngine) Execute(ctx context.Context, cmd Command) (*ExecResult, error) {
	e.Executed = append(e.Executed, cmd)
	if e.logger != nil {
		e.logger.Info("engine stub: execute requested", "output", cmd.OutputPath)
	}
	return &ExecResult{Success: true}, nil
}
