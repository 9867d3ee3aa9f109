package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/davidmdm/autopilot/internal"
	"github.com/davidmdm/autopilot/internal/addons"
	"github.com/davidmdm/autopilot/internal/config"
	"github.com/davidmdm/autopilot/internal/k8s"
)

const document = `
kubeconfig_path: /does/not/exist/kubeconfig
namespace: task1
deployment_name: my-deployment
image: nginx:1.27
cpu_request: 100m
memory_request: 128Mi
cpu_limit: 500m
memory_limit: 256Mi
ports: [80]
service_port: 80
service_type: ClusterIP
hpa_min_replicas: 1
hpa_max_replicas: 10
prometheus_server_address: http://prometheus.monitoring.svc:9090
metric_name: http_requests_total
prometheus_query: sum(rate(http_requests_total{app="my-deployment"}[2m]))
hpa_threshold: 100
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testEnvironment() Environment {
	return Environment{Config: "config.yaml", Installer: "cli", Timeout: k8s.DefaultTimeout}
}

func TestGetTakeoffParams(t *testing.T) {
	cases := []struct {
		Name     string
		Args     []string
		Expected TakeoffParams
		Error    string
	}{
		{
			Name: "defaults from environment",
			Args: nil,
			Expected: TakeoffParams{
				GlobalSettings: GlobalSettings{ConfigPath: "config.yaml", Timeout: k8s.DefaultTimeout},
				Installer:      "cli",
				InstallTimeout: addons.DefaultInstallTimeout,
			},
		},
		{
			Name: "positional config and flags",
			Args: []string{"-installer", "sdk", "-install-timeout", "2m", "-skip-addons", "-drift", "-timeout", "5s", "-kubeconfig", "/tmp/kc", "./prod.yaml"},
			Expected: TakeoffParams{
				GlobalSettings: GlobalSettings{ConfigPath: "./prod.yaml", KubeConfigPath: "/tmp/kc", Timeout: 5 * time.Second},
				Installer:      "sdk",
				InstallTimeout: 2 * time.Minute,
				SkipAddons:     true,
				Drift:          true,
			},
		},
		{
			Name:  "unknown installer",
			Args:  []string{"-installer", "brew"},
			Error: `invalid installer "brew": must be one of cli, sdk`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			env := testEnvironment()

			params, err := GetTakeoffParams(GlobalSettings{ConfigPath: env.Config, Timeout: env.Timeout}, env, tc.Args)
			if tc.Error != "" {
				require.EqualError(t, err, tc.Error)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.Expected, *params)
		})
	}
}

func TestGlobalFlagsSurviveSubcommand(t *testing.T) {
	settings := GlobalSettings{ConfigPath: "from-root.yaml", Debug: true, Timeout: time.Minute}

	params, err := GetBlackboxParams(settings, nil)
	require.NoError(t, err)
	require.Equal(t, settings, params.GlobalSettings)

	params, err = GetBlackboxParams(settings, []string{"-debug=false", "other.yaml"})
	require.NoError(t, err)
	require.False(t, params.Debug)
	require.Equal(t, "other.yaml", params.ConfigPath)
}

func TestKubeConfigOverride(t *testing.T) {
	spec := config.Spec{CredentialsPath: "/from/config"}

	require.Equal(t, "/from/config", GlobalSettings{}.KubeConfig(spec))
	require.Equal(t, "/from/flag", GlobalSettings{KubeConfigPath: "/from/flag"}.KubeConfig(spec))
}

func TestRenderToStdout(t *testing.T) {
	var stdout bytes.Buffer
	ctx := internal.WithStdout(context.Background(), &stdout)

	params, err := GetRenderParams(GlobalSettings{}, []string{writeConfig(t, document)})
	require.NoError(t, err)

	require.NoError(t, Render(ctx, *params))

	var kinds []string
	decoder := yaml.NewDecoder(&stdout)
	for {
		var resource map[string]any
		if err := decoder.Decode(&resource); err != nil {
			break
		}
		kinds = append(kinds, resource["kind"].(string))
	}

	require.Equal(t, []string{"Namespace", "Deployment", "Service", "ScaledObject"}, kinds)
}

func TestRenderToDirectory(t *testing.T) {
	out := filepath.Join(t.TempDir(), "manifests")

	params, err := GetRenderParams(GlobalSettings{}, []string{"-out", out, writeConfig(t, document)})
	require.NoError(t, err)

	var stdout bytes.Buffer
	require.NoError(t, Render(internal.WithStdout(context.Background(), &stdout), *params))

	require.Equal(
		t,
		strings.Join([]string{
			filepath.Join(out, "_.core.v1.namespace.task1.yaml"),
			filepath.Join(out, "task1.apps.v1.deployment.my-deployment.yaml"),
			filepath.Join(out, "task1.core.v1.service.my-deployment-service.yaml"),
			filepath.Join(out, "task1.keda.sh.v1alpha1.scaledobject.my-deployment-scaledobject.yaml"),
		}, "\n")+"\n",
		stdout.String(),
	)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)

	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	require.ElementsMatch(
		t,
		[]string{
			"_.core.v1.namespace.task1.yaml",
			"task1.apps.v1.deployment.my-deployment.yaml",
			"task1.core.v1.service.my-deployment-service.yaml",
			"task1.keda.sh.v1alpha1.scaledobject.my-deployment-scaledobject.yaml",
		},
		names,
	)
}

func TestTakeoffRejectsInvalidConfigBeforeConnecting(t *testing.T) {
	path := writeConfig(t, strings.Replace(document, "hpa_min_replicas: 1", "hpa_min_replicas: 11", 1))

	params, err := GetTakeoffParams(GlobalSettings{}, testEnvironment(), []string{path})
	require.NoError(t, err)

	err = TakeOff(context.Background(), *params)

	var cfgErr *config.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	require.ErrorContains(t, err, "hpa_min_replicas (11) must not exceed hpa_max_replicas (10)")
}

func TestTakeoffSessionFailure(t *testing.T) {
	params, err := GetTakeoffParams(GlobalSettings{}, testEnvironment(), []string{writeConfig(t, document)})
	require.NoError(t, err)

	err = TakeOff(context.Background(), *params)

	var connErr *k8s.ConnectionError
	require.True(t, errors.As(err, &connErr))
	require.True(t, strings.HasPrefix(err.Error(), "fatal: "))
}

func TestBlackboxSessionFailure(t *testing.T) {
	params, err := GetBlackboxParams(GlobalSettings{}, []string{writeConfig(t, document)})
	require.NoError(t, err)

	err = Blackbox(context.Background(), *params)

	var connErr *k8s.ConnectionError
	require.True(t, errors.As(err, &connErr))
	require.False(t, internal.IsWarning(err))
}
