// Package workflow runs the CloudFormation generation state machine in
// process: generate, review, improve until the review passes, then save.
// Every step receives the previous step's output as its event.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Yates-Labs/stepcall/internal/handler"
	"github.com/Yates-Labs/stepcall/internal/logging"
	"github.com/Yates-Labs/stepcall/internal/save"
)

var (
	ErrStepFailed    = errors.New("workflow step failed")
	ErrTooManyRounds = errors.New("quality control did not pass")
)

const (
	// DecisionField is the review field the choice state inspects.
	DecisionField = "pass_reject"

	// DecisionFail sends the state back through the improve step.
	DecisionFail = "fail"

	DefaultMaxImprovements = 3
)

// Step is a function-calling step such as *handler.Handler.
type Step interface {
	Name() string
	Handle(ctx context.Context, event json.RawMessage) (handler.Result, error)
}

// Saver is the final archive step such as *save.Handler.
type Saver interface {
	Handle(ctx context.Context, event json.RawMessage) (save.Response, error)
}

// Steps groups the workflow's steps. Save may be nil to skip archiving.
type Steps struct {
	Entry   Step
	QC      Step
	Improve Step
	Save    Saver
}

// Report describes a finished run.
type Report struct {
	// Output is the state handed to the save step.
	Output handler.Result `json:"output"`

	// Improvements counts improve/review rounds after the first review.
	Improvements int `json:"improvements"`

	// Trace lists the executed steps in order.
	Trace []string `json:"trace"`

	// Saved is the save step's response, nil when saving was skipped.
	Saved *save.Response `json:"saved,omitempty"`
}

// Runner executes the workflow.
type Runner struct {
	steps           Steps
	maxImprovements int
	logger          *slog.Logger
}

// NewRunner creates a runner. maxImprovements <= 0 selects the default.
func NewRunner(steps Steps, maxImprovements int, logger *slog.Logger) *Runner {
	if maxImprovements <= 0 {
		maxImprovements = DefaultMaxImprovements
	}
	return &Runner{
		steps:           steps,
		maxImprovements: maxImprovements,
		logger:          logging.OrNop(logger),
	}
}

// Run executes entry -> qc -> (improve -> qc)* -> save starting from input.
func (r *Runner) Run(ctx context.Context, input json.RawMessage) (*Report, error) {
	if r.steps.Entry == nil || r.steps.QC == nil || r.steps.Improve == nil {
		return nil, fmt.Errorf("%w: entry, qc and improve steps are required", ErrStepFailed)
	}

	report := &Report{}

	state, err := r.runStep(ctx, r.steps.Entry, input, report)
	if err != nil {
		return nil, err
	}
	state, err = r.runStep(ctx, r.steps.QC, state, report)
	if err != nil {
		return nil, err
	}

	for failed(report.Output) {
		if report.Improvements >= r.maxImprovements {
			return report, fmt.Errorf("%w after %d improvements", ErrTooManyRounds, report.Improvements)
		}
		report.Improvements++
		r.logger.Info("quality control failed, improving", "round", report.Improvements)

		state, err = r.runStep(ctx, r.steps.Improve, state, report)
		if err != nil {
			return nil, err
		}
		state, err = r.runStep(ctx, r.steps.QC, state, report)
		if err != nil {
			return nil, err
		}
	}

	if r.steps.Save == nil {
		r.logger.Info("workflow finished without save", "improvements", report.Improvements)
		return report, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before save: %w", err)
	}
	resp, err := r.steps.Save.Handle(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("%w: save: %w", ErrStepFailed, err)
	}
	report.Trace = append(report.Trace, "save")
	report.Saved = &resp

	r.logger.Info("workflow finished", "improvements", report.Improvements, "body", resp.Body)
	return report, nil
}

func (r *Runner) runStep(ctx context.Context, step Step, state json.RawMessage, report *Report) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before %s: %w", step.Name(), err)
	}

	r.logger.Debug("running step", "step", step.Name())
	result, err := step.Handle(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStepFailed, step.Name(), err)
	}
	report.Trace = append(report.Trace, step.Name())
	report.Output = result

	next, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: encode output: %w", ErrStepFailed, step.Name(), err)
	}
	return next, nil
}

func failed(state handler.Result) bool {
	decision, _ := state[DecisionField].(string)
	return decision == DecisionFail
}
