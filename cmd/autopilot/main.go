package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/davidmdm/x/xcontext"

	"github.com/davidmdm/autopilot/internal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		if internal.IsWarning(err) {
			return
		}
		os.Exit(1)
	}
}

//go:embed cmd_help.txt
var rootHelp string

func init() {
	rootHelp = strings.TrimSpace(internal.Colorize(rootHelp))
}

func run() error {
	ctx, done := xcontext.WithSignalCancelation(context.Background(), syscall.SIGINT)
	defer done()

	env, err := LoadEnvironment()
	if err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}

	settings := env.Settings()
	RegisterGlobalFlags(flag.CommandLine, &settings)

	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), rootHelp)
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}

	flag.Parse()

	if len(flag.Args()) == 0 {
		flag.Usage()
		return fmt.Errorf("no command provided")
	}

	subcmdArgs := flag.Args()[1:]

	switch cmd := flag.Arg(0); cmd {
	case "takeoff", "up", "apply":
		{
			params, err := GetTakeoffParams(settings, env, subcmdArgs)
			if err != nil {
				return err
			}
			return TakeOff(ctx, *params)
		}
	case "blackbox", "status":
		{
			params, err := GetBlackboxParams(settings, subcmdArgs)
			if err != nil {
				return err
			}
			return Blackbox(ctx, *params)
		}
	case "render", "test-run":
		{
			params, err := GetRenderParams(settings, subcmdArgs)
			if err != nil {
				return err
			}
			return Render(ctx, *params)
		}
	case "version":
		{
			return Version()
		}
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}
