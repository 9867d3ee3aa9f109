package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/davidmdm/autopilot/internal"
	"github.com/davidmdm/autopilot/pkg/autopilot"
)

type RenderParams struct {
	GlobalSettings
	Out string
}

//go:embed cmd_render_help.txt
var renderHelp string

func init() {
	renderHelp = strings.TrimSpace(internal.Colorize(renderHelp))
}

func GetRenderParams(settings GlobalSettings, args []string) (*RenderParams, error) {
	flagset := flag.NewFlagSet("render", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), renderHelp)
		flagset.PrintDefaults()
	}

	params := RenderParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)
	flagset.StringVar(&params.Out, "out", "-", "directory to write one file per resource to, or - for stdout")
	flagset.Parse(args)

	if path := flagset.Arg(0); path != "" {
		params.ConfigPath = path
	}

	if params.ConfigPath == "" {
		return nil, fmt.Errorf("config path is required as -config or first positional arg")
	}

	return &params, nil
}

// Render validates the configuration and prints the resources takeoff would create. It never
// contacts a cluster.
func Render(ctx context.Context, params RenderParams) error {
	spec, err := loadSpec(params.GlobalSettings)
	if err != nil {
		return err
	}

	resources, err := autopilot.Render(spec)
	if err != nil {
		return err
	}

	if params.Out == "" || params.Out == "-" {
		encoder := yaml.NewEncoder(internal.Stdout(ctx))
		encoder.SetIndent(2)
		for _, resource := range resources {
			if err := encoder.Encode(resource.Object); err != nil {
				return fmt.Errorf("failed to encode %s: %w", internal.Canonical(resource), err)
			}
		}
		return encoder.Close()
	}

	for i, name := range internal.CanonicalNameList(resources) {
		path := filepath.Join(params.Out, name+".yaml")
		if err := internal.WriteYAML(path, resources[i].Object); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintln(internal.Stdout(ctx), path)
	}

	return nil
}
