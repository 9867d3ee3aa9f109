package addons

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/repo"

	"github.com/davidmdm/x/xerr"

	"github.com/davidmdm/autopilot/internal"
)

// SDK installs add-ons through the helm Go SDK. No helm binary is needed, so the
// package manager step is a no-op.
type SDK struct {
	Settings *cli.EnvSettings
	Timeout  time.Duration
}

// NewSDK returns an installer for the cluster in kubeconfig. A non-positive timeout selects
// DefaultInstallTimeout.
func NewSDK(kubeconfig string, timeout time.Duration) *SDK {
	if timeout <= 0 {
		timeout = DefaultInstallTimeout
	}
	settings := cli.New()
	settings.KubeConfig = kubeconfig
	return &SDK{Settings: settings, Timeout: timeout}
}

func (SDK) EnsurePackageManager(context.Context) (bool, error) { return false, nil }

func (sdk SDK) loadRepoFile() (*repo.File, error) {
	file, err := repo.LoadFile(sdk.Settings.RepositoryConfig)
	if errors.Is(err, fs.ErrNotExist) {
		return repo.NewFile(), nil
	}
	return file, err
}

func (sdk SDK) downloadIndex(ctx context.Context, entry *repo.Entry) error {
	defer internal.DebugTimer(ctx, "download index "+entry.URL)()

	chartRepo, err := repo.NewChartRepository(entry, getter.All(sdk.Settings))
	if err != nil {
		return err
	}
	chartRepo.CachePath = sdk.Settings.RepositoryCache

	if sdk.Timeout > 0 {
		client, err := getter.NewHTTPGetter(getter.WithTimeout(sdk.Timeout))
		if err != nil {
			return err
		}
		chartRepo.Client = client
	}

	_, err = chartRepo.DownloadIndexFile()
	return err
}

func (sdk SDK) AddRepo(ctx context.Context, chart Chart) error {
	file, err := sdk.loadRepoFile()
	if err != nil {
		return fmt.Errorf("failed to load repository config: %w", err)
	}

	entry := &repo.Entry{Name: chart.RepoName, URL: chart.RepoURL}
	if err := sdk.downloadIndex(ctx, entry); err != nil {
		return fmt.Errorf("%s is not a valid chart repository: %w", chart.RepoURL, err)
	}

	file.Update(entry)

	if err := os.MkdirAll(filepath.Dir(sdk.Settings.RepositoryConfig), 0o755); err != nil {
		return err
	}
	return file.WriteFile(sdk.Settings.RepositoryConfig, 0o644)
}

func (sdk SDK) UpdateRepos(ctx context.Context) error {
	file, err := sdk.loadRepoFile()
	if err != nil {
		return fmt.Errorf("failed to load repository config: %w", err)
	}

	var errs []error
	for _, entry := range file.Repositories {
		if err := sdk.downloadIndex(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name, err))
		}
	}

	return xerr.MultiErrOrderedFrom("repository update", errs...)
}

func (sdk SDK) Install(ctx context.Context, chart Chart) error {
	actionConfig := new(action.Configuration)

	debug := func(format string, v ...any) {
		internal.Debug(ctx).Printf(format+"\n", v...)
	}

	if err := actionConfig.Init(sdk.Settings.RESTClientGetter(), chart.Namespace, os.Getenv("HELM_DRIVER"), debug); err != nil {
		return fmt.Errorf("failed to initialize helm action config: %w", err)
	}

	install := action.NewInstall(actionConfig)
	install.ReleaseName = chart.Release
	install.Namespace = chart.Namespace
	install.CreateNamespace = true
	install.Version = chart.Version
	install.Timeout = sdk.Timeout

	chartPath, err := install.ChartPathOptions.LocateChart(chart.Ref(), sdk.Settings)
	if err != nil {
		return fmt.Errorf("failed to locate chart: %w", err)
	}

	loaded, err := loader.Load(chartPath)
	if err != nil {
		return fmt.Errorf("failed to load chart: %w", err)
	}

	defer internal.DebugTimer(ctx, "helm install "+chart.Release)()

	if sdk.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sdk.Timeout)
		defer cancel()
	}

	_, err = install.RunWithContext(ctx, loaded, map[string]any{})
	return err
}
