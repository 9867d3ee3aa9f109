package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"strings"

	"github.com/davidmdm/autopilot/internal"
	"github.com/davidmdm/autopilot/pkg/autopilot"
)

type BlackboxParams struct {
	GlobalSettings
}

//go:embed cmd_blackbox_help.txt
var blackboxHelp string

func init() {
	blackboxHelp = strings.TrimSpace(internal.Colorize(blackboxHelp))
}

func GetBlackboxParams(settings GlobalSettings, args []string) (*BlackboxParams, error) {
	flagset := flag.NewFlagSet("blackbox", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), blackboxHelp)
		flagset.PrintDefaults()
	}

	params := BlackboxParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)
	flagset.Parse(args)

	if path := flagset.Arg(0); path != "" {
		params.ConfigPath = path
	}

	if params.ConfigPath == "" {
		return nil, fmt.Errorf("config path is required as -config or first positional arg")
	}

	return &params, nil
}

// Blackbox prints the status report for an already provisioned deployment. A degraded report is a
// warning: it is printed but does not fail the command.
func Blackbox(ctx context.Context, params BlackboxParams) error {
	spec, err := loadSpec(params.GlobalSettings)
	if err != nil {
		return err
	}

	ctx = params.Context(ctx)

	commander, err := autopilot.FromKubeConfig(params.KubeConfig(spec), params.Timeout, nil)
	if err != nil {
		return sessionError(err)
	}

	report, err := commander.Status(ctx, spec)
	if err != nil {
		return err
	}

	report.Print(ctx)

	if report.Degraded() {
		return internal.Warning(fmt.Sprintf("status for %s is degraded: %d warning(s)", spec.DeploymentName, len(report.Warnings)))
	}

	return nil
}
