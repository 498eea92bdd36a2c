// Shared setup for the verbs: configuration, logging, tracing, and the collapse engine.

package command

import (
	"context"
	"fmt"
	"io"
	"os"

	"sacctcollapse/collapse"
	"sacctcollapse/common"
	"sacctcollapse/config"
	"sacctcollapse/status"
	"sacctcollapse/tracing"
)

// Env is what every verb gets from the root command.  The persistent flags write into it.
type Env struct {
	ConfigFile string
	LogLevel   string
	Stdout     io.Writer
	Stderr     io.Writer
	Log        status.Logger
}

func NewEnv() *Env {
	return &Env{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Log:    common.Log,
	}
}

// Config loads the configuration named by --config, or by the defaults file, or the default
// lookup, and applies the log level: the flag wins over the defaults file, which wins over the
// configuration.
func (e *Env) Config() (*config.Config, error) {
	common.ApplyDefault(&e.ConfigFile, common.DefaultConfig)
	cfg, err := common.GetConfig(e.ConfigFile)
	if err != nil {
		return nil, err
	}

	level := e.LogLevel
	common.ApplyDefault(&level, common.DefaultLogLevel)
	if level == "" {
		level = cfg.LogLevel
	}
	l, err := status.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	e.Log.SetLevel(l)
	e.Log.SetStderr(e.Stderr)
	return cfg, nil
}

// StartTracing installs the span exporter if tracing is enabled.  The returned function is always
// safe to call.
func (e *Env) StartTracing(cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.Tracing.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	return tracing.Init(cfg.Tracing.ServiceName, e.Stderr)
}

// Engine builds the engine for the named variant, or the configured one if the name is empty.
func (e *Env) Engine(cfg *config.Config, variant string) (*collapse.Engine, error) {
	if variant == "" {
		variant = cfg.Variant
	}
	costs, err := cfg.CostTable()
	if err != nil {
		return nil, fmt.Errorf("cost table: %w", err)
	}
	v, err := collapse.ByName(variant, costs, e.Log)
	if err != nil {
		return nil, err
	}
	return collapse.NewEngine(v, e.Log), nil
}
