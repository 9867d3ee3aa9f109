// Package addons ensures the cluster-wide dependencies of a deployment are present: the helm
// package manager and the KEDA autoscaling controller.
package addons

import (
	"context"
	"fmt"
	"time"
)

// DefaultInstallTimeout bounds each installation step. Chart installs wait on image pulls, so it
// is much longer than the per-request cluster timeout.
const DefaultInstallTimeout = 5 * time.Minute

// Chart identifies a helm chart, the repository that serves it and the release it is installed as.
type Chart struct {
	RepoName  string
	RepoURL   string
	Name      string
	Release   string
	Namespace string
	Version   string
}

// Ref is the repo-qualified chart reference understood by helm, e.g. kedacore/keda.
func (chart Chart) Ref() string { return chart.RepoName + "/" + chart.Name }

const (
	// KedaOperator is the deployment whose presence marks the controller as installed.
	KedaOperator  = "keda-operator"
	KedaNamespace = "keda"
)

// Keda returns the KEDA chart pinned to version; an empty version selects the latest release.
func Keda(version string) Chart {
	return Chart{
		RepoName:  "kedacore",
		RepoURL:   "https://kedacore.github.io/charts",
		Name:      "keda",
		Release:   "keda",
		Namespace: KedaNamespace,
		Version:   version,
	}
}

// Installer performs the mutating steps of add-on installation. Implementations are expected
// to block until each step finishes and never retry.
type Installer interface {
	// EnsurePackageManager makes the package manager available, reporting whether it had to be installed.
	EnsurePackageManager(ctx context.Context) (installed bool, err error)
	AddRepo(ctx context.Context, chart Chart) error
	UpdateRepos(ctx context.Context) error
	Install(ctx context.Context, chart Chart) error
}

// EnsureController adds the chart repository, refreshes repository metadata and installs the
// chart. The first failing step aborts the remaining ones.
func EnsureController(ctx context.Context, installer Installer, chart Chart) error {
	if err := installer.AddRepo(ctx, chart); err != nil {
		return fmt.Errorf("failed to add repository %s: %w", chart.RepoName, err)
	}
	if err := installer.UpdateRepos(ctx); err != nil {
		return fmt.Errorf("failed to update repositories: %w", err)
	}
	if err := installer.Install(ctx, chart); err != nil {
		return fmt.Errorf("failed to install %s: %w", chart.Ref(), err)
	}
	return nil
}
