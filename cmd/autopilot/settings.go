package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/davidmdm/conf"
	"golang.org/x/term"

	"github.com/davidmdm/autopilot/internal"
	"github.com/davidmdm/autopilot/internal/config"
	"github.com/davidmdm/autopilot/internal/k8s"
	"github.com/davidmdm/autopilot/pkg/autopilot"
)

// Environment holds the defaults that may be provided through environment variables.
type Environment struct {
	Config    string
	Installer string
	Timeout   time.Duration
}

func LoadEnvironment() (env Environment, err error) {
	conf.Var(conf.Environ, &env.Config, "AUTOPILOT_CONFIG", conf.Default[string]("config.yaml"))
	conf.Var(conf.Environ, &env.Installer, "AUTOPILOT_INSTALLER", conf.Default[string]("cli"))
	conf.Var(conf.Environ, &env.Timeout, "AUTOPILOT_TIMEOUT", conf.Default[time.Duration](k8s.DefaultTimeout))
	err = conf.Environ.Parse()
	return
}

func (env Environment) Settings() GlobalSettings {
	return GlobalSettings{
		ConfigPath: env.Config,
		Timeout:    env.Timeout,
		Color:      term.IsTerminal(int(os.Stdout.Fd())),
	}
}

type GlobalSettings struct {
	ConfigPath     string
	KubeConfigPath string
	Timeout        time.Duration
	Debug          bool
	Color          bool
}

// RegisterGlobalFlags registers the shared flags using the current values of settings as defaults,
// so that flags given before the subcommand survive being registered again on its flagset.
func RegisterGlobalFlags(flagset *flag.FlagSet, settings *GlobalSettings) {
	flagset.StringVar(&settings.ConfigPath, "config", settings.ConfigPath, "path to the deployment configuration file")
	flagset.StringVar(&settings.KubeConfigPath, "kubeconfig", settings.KubeConfigPath, "path to kube config; overrides kubeconfig_path from the configuration file")
	flagset.DurationVar(&settings.Timeout, "timeout", settings.Timeout, "timeout applied to every cluster request")
	flagset.BoolVar(&settings.Debug, "debug", settings.Debug, "print debug timings and step results to stderr")
	flagset.BoolVar(&settings.Color, "color", settings.Color, "use colored output")
}

// Context attaches the output settings to ctx.
func (settings GlobalSettings) Context(ctx context.Context) context.Context {
	ctx = internal.WithDebugFlag(ctx, &settings.Debug)
	return internal.WithColor(ctx, settings.Color)
}

// KubeConfig returns the kubeconfig path to use for spec.
func (settings GlobalSettings) KubeConfig(spec config.Spec) string {
	return cmp.Or(settings.KubeConfigPath, spec.CredentialsPath)
}

func loadSpec(settings GlobalSettings) (config.Spec, error) {
	if settings.ConfigPath == "" {
		return config.Spec{}, fmt.Errorf("-config is required")
	}
	return config.Load(settings.ConfigPath)
}

func sessionError(err error) error {
	return fmt.Errorf("%s: %w", autopilot.Fatal, err)
}
