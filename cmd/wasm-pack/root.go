package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-pack/bindgen"
	"github.com/wippyai/wasm-pack/files"
	"github.com/wippyai/wasm-pack/internal/config"
	"github.com/wippyai/wasm-pack/js"
	"github.com/wippyai/wasm-pack/loader"
	"github.com/wippyai/wasm-pack/python"
)

// app carries the settings shared by every subcommand.
type app struct {
	cfg     config.Config
	cfgFile string
	verbose bool
	log     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.Default(), log: zap.NewNop()}

	root := &cobra.Command{
		Use:   "wasm-pack",
		Short: "Generate npm and pip packages from WebAssembly containers",
		Long: `wasm-pack reads a WebAssembly container (or a directory holding a
wasmer.toml) and turns its libraries and commands into a package
that can be installed with npm or pip.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./"+config.FileName+")")

	root.AddCommand(
		newGenerateCmd(a, javascript),
		newGenerateCmd(a, pythonLang),
		newShowCmd(a),
		newBrowseCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, _, err := config.Load(config.LoadOptions{File: a.cfgFile})
	if err != nil {
		return err
	}
	a.cfg = *cfg
	if cmd.Flags().Changed("verbose") {
		a.cfg.Verbose = a.verbose
	}

	log, err := newLogger(a.cfg.Verbose)
	if err != nil {
		return err
	}
	a.log = log

	loader.SetLogger(log.Named("loader"))
	bindgen.SetLogger(log.Named("bindgen"))
	js.SetLogger(log.Named("js"))
	python.SetLogger(log.Named("python"))
	files.SetLogger(log.Named("files"))
	return nil
}

// newLogger returns a debug-level development logger when verbose is set
// and a console logger that only reports warnings otherwise.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	return cfg.Build()
}
