package addons

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/repo"
)

type call struct {
	Command string
	Stdin   string
}

type fakeRunner struct {
	calls   []call
	results map[string]error
	outputs map[string]string
}

func (runner *fakeRunner) Run(_ context.Context, cmd Command) ([]byte, error) {
	var stdin string
	if cmd.Stdin != nil {
		data, _ := io.ReadAll(cmd.Stdin)
		stdin = string(data)
	}
	runner.calls = append(runner.calls, call{Command: cmd.String(), Stdin: stdin})
	return []byte(runner.outputs[cmd.String()]), runner.results[cmd.String()]
}

func (runner *fakeRunner) commands() []string {
	var result []string
	for _, call := range runner.calls {
		result = append(result, call.Command)
	}
	return result
}

func newTestCLI(runner Runner, scriptURL string) *CLI {
	return &CLI{
		Runner:     runner,
		HTTPClient: http.DefaultClient,
		ScriptURL:  scriptURL,
		Binary:     "helm",
	}
}

func TestEnsurePackageManagerPresent(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{"helm version --short": "v3.16.1+g5a5449d"}}

	installed, err := newTestCLI(runner, "http://unused.invalid").EnsurePackageManager(context.Background())
	require.NoError(t, err)
	require.False(t, installed)
	require.Equal(t, []string{"helm version --short"}, runner.commands())
}

func TestEnsurePackageManagerInstallsWhenMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#!/usr/bin/env bash\necho installing helm\n")
	}))
	defer server.Close()

	runner := &fakeRunner{
		results: map[string]error{
			"helm version --short": &exec.Error{Name: "helm", Err: exec.ErrNotFound},
		},
	}

	installed, err := newTestCLI(runner, server.URL).EnsurePackageManager(context.Background())
	require.NoError(t, err)
	require.True(t, installed)

	require.Equal(
		t,
		[]call{
			{Command: "helm version --short"},
			{Command: "bash", Stdin: "#!/usr/bin/env bash\necho installing helm\n"},
		},
		runner.calls,
	)
}

func TestEnsurePackageManagerScriptUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	runner := &fakeRunner{
		results: map[string]error{
			"helm version --short": &exec.Error{Name: "helm", Err: exec.ErrNotFound},
		},
	}

	_, err := newTestCLI(runner, server.URL).EnsurePackageManager(context.Background())
	require.ErrorContains(t, err, "failed to fetch install script")
	require.Equal(t, []string{"helm version --short"}, runner.commands())
}

func TestEnsurePackageManagerProbeFailure(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]error{"helm version --short": errors.New("exit status 2")},
		outputs: map[string]string{"helm version --short": "corrupted install"},
	}

	_, err := newTestCLI(runner, "http://unused.invalid").EnsurePackageManager(context.Background())

	var processErr *ProcessError
	require.True(t, errors.As(err, &processErr))
	require.EqualError(t, err, "helm version --short: exit status 2: corrupted install")
	require.Len(t, runner.calls, 1)
}

func TestEnsureControllerCLI(t *testing.T) {
	cases := []struct {
		Name     string
		Chart    Chart
		Failures map[string]error
		Commands []string
		Error    string
	}{
		{
			Name:  "all steps succeed",
			Chart: Keda(""),
			Commands: []string{
				"helm repo add kedacore https://kedacore.github.io/charts",
				"helm repo update",
				"helm install keda kedacore/keda --namespace keda --create-namespace",
			},
		},
		{
			Name:  "pinned version",
			Chart: Keda("2.15.1"),
			Commands: []string{
				"helm repo add kedacore https://kedacore.github.io/charts",
				"helm repo update",
				"helm install keda kedacore/keda --namespace keda --create-namespace --version 2.15.1",
			},
		},
		{
			Name:     "repo add failure aborts",
			Chart:    Keda(""),
			Failures: map[string]error{"helm repo add kedacore https://kedacore.github.io/charts": errors.New("exit status 1")},
			Commands: []string{"helm repo add kedacore https://kedacore.github.io/charts"},
			Error:    "failed to add repository kedacore: helm repo add kedacore https://kedacore.github.io/charts: exit status 1",
		},
		{
			Name:     "update failure aborts install",
			Chart:    Keda(""),
			Failures: map[string]error{"helm repo update": errors.New("exit status 1")},
			Commands: []string{
				"helm repo add kedacore https://kedacore.github.io/charts",
				"helm repo update",
			},
			Error: "failed to update repositories: helm repo update: exit status 1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			runner := &fakeRunner{results: tc.Failures}

			err := EnsureController(context.Background(), newTestCLI(runner, ""), tc.Chart)
			if tc.Error != "" {
				require.EqualError(t, err, tc.Error)
			} else {
				require.NoError(t, err)
			}

			require.Equal(t, tc.Commands, runner.commands())
		})
	}
}

func TestInstallPassesKubeConfig(t *testing.T) {
	runner := &fakeRunner{}

	installer := newTestCLI(runner, "")
	installer.KubeConfig = "/tmp/kubeconfig"

	require.NoError(t, installer.Install(context.Background(), Keda("")))
	require.Equal(
		t,
		[]string{"helm install keda kedacore/keda --namespace keda --create-namespace --kubeconfig /tmp/kubeconfig"},
		runner.commands(),
	)

	require.Equal(t, "/tmp/kubeconfig", NewCLI("/tmp/kubeconfig", 0).KubeConfig)
}

type deadlineRunner struct {
	commands  []string
	deadlines []bool
}

func (runner *deadlineRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	_, ok := ctx.Deadline()
	runner.commands = append(runner.commands, cmd.String())
	runner.deadlines = append(runner.deadlines, ok)
	return nil, nil
}

func TestNewCLITimeouts(t *testing.T) {
	installer := NewCLI("", 0)
	require.Equal(t, DefaultInstallTimeout, installer.Timeout)
	require.Equal(t, DefaultInstallTimeout, installer.HTTPClient.Timeout)

	installer = NewCLI("", 10*time.Second)
	require.Equal(t, 10*time.Second, installer.Timeout)
	require.Equal(t, 10*time.Second, installer.HTTPClient.Timeout)
}

func TestCLICommandsHaveDeadline(t *testing.T) {
	runner := &deadlineRunner{}

	installer := NewCLI("", time.Minute)
	installer.Runner = runner

	_, err := installer.EnsurePackageManager(context.Background())
	require.NoError(t, err)
	require.NoError(t, EnsureController(context.Background(), installer, Keda("")))

	require.Len(t, runner.commands, 4)
	require.Equal(t, []bool{true, true, true, true}, runner.deadlines)
}

func TestEnsurePackageManagerScriptTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	runner := &fakeRunner{
		results: map[string]error{
			"helm version --short": &exec.Error{Name: "helm", Err: exec.ErrNotFound},
		},
	}

	installer := newTestCLI(runner, server.URL)
	installer.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := installer.EnsurePackageManager(context.Background())

	require.ErrorContains(t, err, "failed to fetch install script")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, []string{"helm version --short"}, runner.commands())
}

func TestSDKIndexDownloadTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	sdk := newTestSDK(t)
	sdk.Timeout = 50 * time.Millisecond

	start := time.Now()
	err := sdk.AddRepo(context.Background(), Chart{RepoName: "slow", RepoURL: server.URL})

	require.ErrorContains(t, err, "is not a valid chart repository")
	require.Less(t, time.Since(start), 5*time.Second)

	require.Equal(t, DefaultInstallTimeout, NewSDK("", 0).Timeout)
	require.Equal(t, time.Second, NewSDK("", time.Second).Timeout)
}

func TestChartRef(t *testing.T) {
	require.Equal(t, "kedacore/keda", Keda("").Ref())
}

func newTestSDK(t *testing.T) *SDK {
	dir := t.TempDir()

	settings := cli.New()
	settings.RepositoryConfig = filepath.Join(dir, "config", "repositories.yaml")
	settings.RepositoryCache = filepath.Join(dir, "cache")

	return &SDK{Settings: settings}
}

func TestSDKRepositories(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() || r.URL.Path != "/index.yaml" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "apiVersion: v1\nentries: {}\n")
	}))
	defer server.Close()

	sdk := newTestSDK(t)

	installed, err := sdk.EnsurePackageManager(context.Background())
	require.NoError(t, err)
	require.False(t, installed)

	chart := Chart{RepoName: "local", RepoURL: server.URL, Name: "keda", Release: "keda", Namespace: "keda"}

	require.NoError(t, sdk.AddRepo(context.Background(), chart))

	file, err := repo.LoadFile(sdk.Settings.RepositoryConfig)
	require.NoError(t, err)
	require.True(t, file.Has("local"))
	require.Equal(t, server.URL, file.Get("local").URL)

	require.NoError(t, sdk.UpdateRepos(context.Background()))

	healthy.Store(false)

	require.ErrorContains(t, sdk.UpdateRepos(context.Background()), "local")
	require.ErrorContains(t, sdk.AddRepo(context.Background(), Chart{RepoName: "broken", RepoURL: server.URL}), "is not a valid chart repository")

	_, err = os.Stat(sdk.Settings.RepositoryConfig)
	require.NoError(t, err)
}
