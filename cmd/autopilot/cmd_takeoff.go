package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/davidmdm/autopilot/internal"
	"github.com/davidmdm/autopilot/internal/addons"
	"github.com/davidmdm/autopilot/internal/home"
	"github.com/davidmdm/autopilot/internal/text"
	"github.com/davidmdm/autopilot/pkg/autopilot"
)

type TakeoffParams struct {
	GlobalSettings
	Installer      string
	InstallTimeout time.Duration
	SkipAddons     bool
	SkipStatus     bool
	Drift          bool
}

//go:embed cmd_takeoff_help.txt
var takeoffHelp string

func init() {
	takeoffHelp = strings.TrimSpace(internal.Colorize(takeoffHelp))
}

func GetTakeoffParams(settings GlobalSettings, env Environment, args []string) (*TakeoffParams, error) {
	flagset := flag.NewFlagSet("takeoff", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), takeoffHelp)
		flagset.PrintDefaults()
	}

	params := TakeoffParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.StringVar(&params.Installer, "installer", env.Installer, "how the KEDA chart is installed: cli shells out to helm, sdk uses the embedded helm library")
	flagset.DurationVar(&params.InstallTimeout, "install-timeout", addons.DefaultInstallTimeout, "timeout applied to each add-on installation step")
	flagset.BoolVar(&params.SkipAddons, "skip-addons", false, "assume helm and the KEDA controller are already installed")
	flagset.BoolVar(&params.SkipStatus, "skip-status", false, "do not print the status report after provisioning")
	flagset.BoolVar(&params.Drift, "drift", false, "show how existing resources differ from the configuration. Existing resources are never updated")

	flagset.Parse(args)

	if path := flagset.Arg(0); path != "" {
		params.ConfigPath = path
	}

	if params.ConfigPath == "" {
		return nil, fmt.Errorf("config path is required as -config or first positional arg")
	}

	switch params.Installer {
	case "cli", "sdk":
	default:
		return nil, fmt.Errorf("invalid installer %q: must be one of cli, sdk", params.Installer)
	}

	return &params, nil
}

func TakeOff(ctx context.Context, params TakeoffParams) error {
	spec, err := loadSpec(params.GlobalSettings)
	if err != nil {
		return err
	}

	ctx = params.Context(ctx)

	kubeconfig := home.Expand(params.KubeConfig(spec))

	var installer addons.Installer = addons.NewCLI(kubeconfig, params.InstallTimeout)
	if params.Installer == "sdk" {
		installer = addons.NewSDK(kubeconfig, params.InstallTimeout)
	}

	commander, err := autopilot.FromKubeConfig(kubeconfig, params.Timeout, installer)
	if err != nil {
		return sessionError(err)
	}

	if params.Drift {
		differ := text.Diff
		if params.Color {
			differ = text.DiffColorized
		}
		commander = commander.WithDrift(differ)
	}

	outcomes := commander.Takeoff(ctx, autopilot.TakeoffParams{
		Spec:       spec,
		SkipAddons: params.SkipAddons,
		SkipStatus: params.SkipStatus,
	})

	fmt.Fprintln(internal.Stdout(ctx), outcomes.Table())

	return outcomes.Err()
}
