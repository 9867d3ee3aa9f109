// Package autopilot provisions a KEDA-scaled workload: it ensures the controller add-on is
// installed, creates the namespace, deployment, service and ScaledObject when they are absent,
// and reports the resulting status.
//
// Every resource follows check-then-create. Existing resources are never updated.
package autopilot

import (
	"context"
	"fmt"
	"time"

	kerrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/davidmdm/autopilot/internal"
	"github.com/davidmdm/autopilot/internal/addons"
	"github.com/davidmdm/autopilot/internal/config"
	"github.com/davidmdm/autopilot/internal/home"
	"github.com/davidmdm/autopilot/internal/k8s"
	"github.com/davidmdm/autopilot/internal/resource"
	"github.com/davidmdm/autopilot/internal/text"
)

type Commander struct {
	k8s        *k8s.Client
	installer  addons.Installer
	differ     text.DiffFunc
	prometheus PrometheusFactory
}

func NewCommander(client *k8s.Client, installer addons.Installer) *Commander {
	return &Commander{
		k8s:        client,
		installer:  installer,
		prometheus: NewPrometheusAPI,
	}
}

// FromKubeConfig opens a session from the kubeconfig at path.
func FromKubeConfig(path string, timeout time.Duration, installer addons.Installer) (*Commander, error) {
	client, err := k8s.NewClientFromKubeConfig(home.Expand(path), timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize k8s client: %w", err)
	}
	return NewCommander(client, installer), nil
}

// WithDrift enables drift reporting for resources that already exist. Drift is shown, never corrected.
func (commander Commander) WithDrift(differ text.DiffFunc) *Commander {
	commander.differ = differ
	return &commander
}

// WithPrometheus replaces the factory used to reach the metrics source.
func (commander Commander) WithPrometheus(factory PrometheusFactory) *Commander {
	commander.prometheus = factory
	return &commander
}

// EnsurePackageManager makes sure the package manager used to install the controller is available.
func (commander Commander) EnsurePackageManager(ctx context.Context) Outcome {
	const step = "package-manager"

	installed, err := commander.installer.EnsurePackageManager(ctx)
	if err != nil {
		return failed(step, err)
	}
	if installed {
		return outcomeOf(step, Installed, "")
	}
	return outcomeOf(step, Present, "")
}

// EnsureController installs the KEDA chart unless its operator deployment already exists.
func (commander Commander) EnsureController(ctx context.Context, chart addons.Chart) Outcome {
	step := "controller/" + chart.Release

	_, err := commander.k8s.GetDeployment(ctx, chart.Namespace, addons.KedaOperator)
	if err == nil {
		return outcomeOf(step, Present, fmt.Sprintf("deployment %s/%s found", chart.Namespace, addons.KedaOperator))
	}
	if !kerrors.IsNotFound(err) {
		return failed(step, fmt.Errorf("failed to check for %s: %w", addons.KedaOperator, err))
	}

	if err := addons.EnsureController(ctx, commander.installer, chart); err != nil {
		return failed(step, err)
	}

	return outcomeOf(step, Installed, chart.Ref())
}

// EnsureNamespace lists namespaces and creates name when it is not among them.
func (commander Commander) EnsureNamespace(ctx context.Context, name string) Outcome {
	step := "namespace/" + name

	exists, err := commander.k8s.NamespaceExists(ctx, name)
	if err != nil {
		return failed(step, err)
	}
	if exists {
		return outcomeOf(step, Present, "")
	}

	if err := commander.k8s.CreateNamespace(ctx, name); err != nil {
		if kerrors.IsAlreadyExists(err) {
			return outcomeOf(step, Present, "created concurrently")
		}
		return failed(step, fmt.Errorf("failed to create namespace: %w", err))
	}

	return outcomeOf(step, Created, "")
}

func (commander Commander) EnsureDeployment(ctx context.Context, spec config.Spec) Outcome {
	step := "deployment/" + spec.DeploymentName

	desired, err := resource.Deployment(spec)
	if err != nil {
		return failed(step, fmt.Errorf("failed to build deployment: %w", err))
	}

	live, err := commander.k8s.GetDeployment(ctx, spec.Namespace, spec.DeploymentName)
	if err == nil {
		return commander.present(ctx, step, deploymentView(desired), deploymentView(live))
	}
	if !kerrors.IsNotFound(err) {
		return failed(step, fmt.Errorf("failed to get deployment: %w", err))
	}

	return commander.create(step, commander.k8s.CreateDeployment(ctx, desired))
}

func (commander Commander) EnsureService(ctx context.Context, spec config.Spec) Outcome {
	step := "service/" + spec.ServiceName()

	desired := resource.Service(spec)

	live, err := commander.k8s.GetService(ctx, spec.Namespace, spec.ServiceName())
	if err == nil {
		return commander.present(ctx, step, serviceView(desired), serviceView(live))
	}
	if !kerrors.IsNotFound(err) {
		return failed(step, fmt.Errorf("failed to get service: %w", err))
	}

	return commander.create(step, commander.k8s.CreateService(ctx, desired))
}

// EnsureAutoscaler creates the ScaledObject when the API reports it as not found. Any other
// lookup error is treated as "exists": recreating on an ambiguous answer is worse than skipping.
func (commander Commander) EnsureAutoscaler(ctx context.Context, spec config.Spec) Outcome {
	step := "scaledobject/" + spec.ScaledObjectName()

	desired, err := resource.UnstructuredScaledObject(spec)
	if err != nil {
		return failed(step, fmt.Errorf("failed to build scaledobject: %w", err))
	}

	live, err := commander.k8s.GetScaledObject(ctx, spec.Namespace, spec.ScaledObjectName())
	switch {
	case err == nil:
		return commander.present(ctx, step, scaledObjectView(desired), scaledObjectView(live))
	case kerrors.IsNotFound(err):
		return commander.create(step, commander.k8s.CreateScaledObject(ctx, desired))
	default:
		internal.Warnf(ctx, "could not determine whether %s exists, assuming it does: %v", step, err)
		return Outcome{Step: step, Result: Degraded, Detail: "assumed present", Err: err}
	}
}

func (commander Commander) create(step string, err error) Outcome {
	if err == nil {
		return outcomeOf(step, Created, "")
	}
	if kerrors.IsAlreadyExists(err) {
		return outcomeOf(step, Present, "created concurrently")
	}
	return failed(step, fmt.Errorf("failed to create: %w", err))
}

func (commander Commander) present(ctx context.Context, step string, desired, live any) Outcome {
	if commander.differ == nil {
		return outcomeOf(step, Present, "")
	}

	diff, err := drift(commander.differ, desired, live)
	if err != nil {
		internal.Warnf(ctx, "could not compute drift for %s: %v", step, err)
		return outcomeOf(step, Present, "")
	}
	if diff == "" {
		return outcomeOf(step, Present, "in sync")
	}

	internal.Warnf(ctx, "%s differs from configuration and will not be updated:\n%s", step, diff)
	return outcomeOf(step, Present, "drifted")
}
