package autopilot

import (
	"fmt"

	"github.com/davidmdm/x/xerr"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Result tags the outcome of a single provisioning step.
type Result string

const (
	Created   Result = "created"
	Present   Result = "present"
	Installed Result = "installed"
	Skipped   Result = "skipped"
	Reported  Result = "reported"
	// Degraded steps completed with partial information. They never fail a run.
	Degraded Result = "degraded"
	// Failed steps are reported and the run continues with the next step.
	Failed Result = "failed"
	// Fatal steps halt the run.
	Fatal Result = "fatal"
)

type Outcome struct {
	Step   string
	Result Result
	Detail string
	Err    error
}

func (outcome Outcome) Failed() bool {
	return outcome.Result == Failed || outcome.Result == Fatal
}

// String formats the outcome as a single progress line.
func (outcome Outcome) String() string {
	line := outcome.Step + ": " + string(outcome.Result)
	switch {
	case outcome.Err != nil:
		line += ": " + outcome.Err.Error()
	case outcome.Detail != "":
		line += " (" + outcome.Detail + ")"
	}
	return line
}

func outcomeOf(step string, result Result, detail string) Outcome {
	return Outcome{Step: step, Result: result, Detail: detail}
}

func failed(step string, err error) Outcome {
	return Outcome{Step: step, Result: Failed, Err: err}
}

type Outcomes []Outcome

// Err aggregates every failed step into a single error, or nil when all steps succeeded.
func (outcomes Outcomes) Err() error {
	var errs []error
	for _, outcome := range outcomes {
		if outcome.Failed() {
			errs = append(errs, fmt.Errorf("%s: %w", outcome.Step, outcome.Err))
		}
	}
	return xerr.MultiErrOrderedFrom("takeoff", errs...)
}

// Table renders the outcomes as a summary table.
func (outcomes Outcomes) Table() string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleRounded)

	tbl.AppendHeader(table.Row{"step", "result", "detail"})
	for _, outcome := range outcomes {
		detail := outcome.Detail
		if outcome.Err != nil {
			detail = outcome.Err.Error()
		}
		tbl.AppendRow(table.Row{outcome.Step, outcome.Result, detail})
	}

	return tbl.Render()
}
