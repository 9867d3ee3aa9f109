package addons

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/davidmdm/autopilot/internal"
)

const HelmInstallScriptURL = "https://raw.githubusercontent.com/helm/helm/main/scripts/get-helm-3"

// Command is an external process invocation.
type Command struct {
	Name  string
	Args  []string
	Stdin io.Reader
}

func (cmd Command) String() string {
	return strings.Join(append([]string{cmd.Name}, cmd.Args...), " ")
}

// Runner executes external processes and returns their combined output.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	process := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	process.Stdin = cmd.Stdin
	return process.CombinedOutput()
}

// ProcessError reports an external command that could not run or exited unsuccessfully.
type ProcessError struct {
	Command string
	Output  string
	Err     error
}

func (err *ProcessError) Error() string {
	if output := strings.TrimSpace(err.Output); output != "" {
		return fmt.Sprintf("%s: %v: %s", err.Command, err.Err, output)
	}
	return fmt.Sprintf("%s: %v", err.Command, err.Err)
}

func (err *ProcessError) Unwrap() error { return err.Err }

// CLI installs add-ons by invoking the helm binary.
type CLI struct {
	Runner     Runner
	HTTPClient *http.Client
	ScriptURL  string
	Binary     string
	// KubeConfig is passed to the install command when set.
	KubeConfig string
	// Timeout bounds each command and the script download. Zero means no bound.
	Timeout time.Duration
}

// NewCLI returns a CLI installer running real processes against the cluster in kubeconfig.
// A non-positive timeout selects DefaultInstallTimeout.
func NewCLI(kubeconfig string, timeout time.Duration) *CLI {
	if timeout <= 0 {
		timeout = DefaultInstallTimeout
	}
	return &CLI{
		Runner:     ExecRunner{},
		HTTPClient: &http.Client{Timeout: timeout},
		ScriptURL:  HelmInstallScriptURL,
		Binary:     "helm",
		KubeConfig: kubeconfig,
		Timeout:    timeout,
	}
}

func (cli CLI) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if cli.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, cli.Timeout)
}

func (cli CLI) run(ctx context.Context, cmd Command) error {
	defer internal.DebugTimer(ctx, cmd.String())()

	ctx, cancel := cli.deadline(ctx)
	defer cancel()

	output, err := cli.Runner.Run(ctx, cmd)
	if err != nil {
		return &ProcessError{Command: cmd.String(), Output: string(output), Err: err}
	}
	internal.Debug(ctx).Printf("%s", output)
	return nil
}

func (cli CLI) EnsurePackageManager(ctx context.Context) (bool, error) {
	probe := Command{Name: cli.Binary, Args: []string{"version", "--short"}}

	probeCtx, cancel := cli.deadline(ctx)
	defer cancel()

	output, err := cli.Runner.Run(probeCtx, probe)
	if err == nil {
		internal.Debug(ctx).Printf("found %s %s\n", cli.Binary, bytes.TrimSpace(output))
		return false, nil
	}
	if !errors.Is(err, exec.ErrNotFound) {
		return false, &ProcessError{Command: probe.String(), Output: string(output), Err: err}
	}

	script, err := cli.fetchScript(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to fetch install script: %w", err)
	}

	if err := cli.run(ctx, Command{Name: "bash", Stdin: bytes.NewReader(script)}); err != nil {
		return false, err
	}

	return true, nil
}

func (cli CLI) fetchScript(ctx context.Context) ([]byte, error) {
	ctx, cancel := cli.deadline(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cli.ScriptURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := cli.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status fetching %s: %s", cli.ScriptURL, resp.Status)
	}

	return io.ReadAll(resp.Body)
}

func (cli CLI) AddRepo(ctx context.Context, chart Chart) error {
	return cli.run(ctx, Command{Name: cli.Binary, Args: []string{"repo", "add", chart.RepoName, chart.RepoURL}})
}

func (cli CLI) UpdateRepos(ctx context.Context) error {
	return cli.run(ctx, Command{Name: cli.Binary, Args: []string{"repo", "update"}})
}

func (cli CLI) Install(ctx context.Context, chart Chart) error {
	args := []string{"install", chart.Release, chart.Ref(), "--namespace", chart.Namespace, "--create-namespace"}
	if chart.Version != "" {
		args = append(args, "--version", chart.Version)
	}
	if cli.KubeConfig != "" {
		args = append(args, "--kubeconfig", cli.KubeConfig)
	}
	return cli.run(ctx, Command{Name: cli.Binary, Args: args})
}
