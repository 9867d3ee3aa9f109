package autopilot

import (
	"context"
	"fmt"

	"github.com/davidmdm/autopilot/internal"
	"github.com/davidmdm/autopilot/internal/addons"
	"github.com/davidmdm/autopilot/internal/config"
)

type TakeoffParams struct {
	Spec config.Spec
	// SkipAddons assumes the package manager and controller are already installed.
	SkipAddons bool
	// SkipStatus omits the final status report.
	SkipStatus bool
}

// Takeoff runs every provisioning step in order: session check, package manager, controller,
// namespace, deployment, service, autoscaler and finally the status report.
//
// A failed session check halts the run. Any other failed step is recorded and the run continues,
// so that a single invocation surfaces every problem. Callers obtain the exit status from Outcomes.Err.
func (commander Commander) Takeoff(ctx context.Context, params TakeoffParams) Outcomes {
	var outcomes Outcomes

	record := func(outcome Outcome) {
		fmt.Fprintln(internal.Stdout(ctx), outcome)
		outcomes = append(outcomes, outcome)
	}

	info, err := commander.k8s.Ping(ctx)
	if err != nil {
		record(Outcome{Step: "session", Result: Fatal, Err: err})
		return outcomes
	}
	record(outcomeOf("session", Present, info.GitVersion))

	chart := addons.Keda(params.Spec.KedaChartVersion)

	if params.SkipAddons {
		record(outcomeOf("package-manager", Skipped, "-skip-addons"))
		record(outcomeOf("controller/"+chart.Release, Skipped, "-skip-addons"))
	} else {
		pm := commander.EnsurePackageManager(ctx)
		record(pm)
		if pm.Failed() {
			record(outcomeOf("controller/"+chart.Release, Skipped, "package manager unavailable"))
		} else {
			record(commander.EnsureController(ctx, chart))
		}
	}

	record(commander.EnsureNamespace(ctx, params.Spec.Namespace))

	record(commander.EnsureDeployment(ctx, params.Spec))
	record(commander.EnsureService(ctx, params.Spec))
	record(commander.EnsureAutoscaler(ctx, params.Spec))

	if params.SkipStatus {
		return outcomes
	}

	report, err := commander.Status(ctx, params.Spec)
	if err != nil {
		record(failed("status", err))
		return outcomes
	}

	report.Print(ctx)

	if report.Degraded() {
		record(outcomeOf("status", Degraded, "see warnings"))
	} else {
		record(outcomeOf("status", Reported, ""))
	}

	return outcomes
}
