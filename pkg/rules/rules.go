// Package rules evaluates agency claim-eligibility expressions written in
// CEL. An agency may attach one expression over the four weather readings;
// claims that fail it are rejected in addition to the rain threshold check.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Weather bundles the 24-hour readings a rule may reference.
type Weather struct {
	Rain     float64
	Clouds   float64
	HighTemp float64
	HighWave float64
}

// Evaluator compiles and caches CEL programs keyed by expression text.
type Evaluator struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewEvaluator builds the evaluation environment. Expressions see the four
// readings as double variables: rain, clouds, high_temp, high_wave.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("rain", cel.DoubleType),
		cel.Variable("clouds", cel.DoubleType),
		cel.Variable("high_temp", cel.DoubleType),
		cel.Variable("high_wave", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("create rule environment: %w", err)
	}
	return &Evaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

// Eligible evaluates an expression against the readings. The expression must
// produce a boolean.
func (e *Evaluator) Eligible(expr string, w Weather) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]any{
		"rain":      w.Rain,
		"clouds":    w.Clouds,
		"high_temp": w.HighTemp,
		"high_wave": w.HighWave,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate rule %q: %w", expr, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q did not produce a boolean", expr)
	}
	return result, nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile rule %q: %w", expr, issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build rule program %q: %w", expr, err)
	}

	e.mu.Lock()
	e.cache[expr] = prg
	e.mu.Unlock()
	return prg, nil
}
