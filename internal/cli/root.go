// Package cli defines the elongate command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fmueller/elongate/internal/config"
	"github.com/fmueller/elongate/internal/logging"
	"github.com/fmueller/elongate/internal/pipeline"
	"github.com/fmueller/elongate/internal/version"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

const skipConfigLoad = "skipConfigLoad"

type appState struct {
	configPath       string
	tempo            int
	inputFile        string
	outputFile       string
	transcoder       string
	stretcher        string
	intermediate     string
	keepIntermediate bool
	verbose          bool
	jsonLogs         bool
	noProgress       bool

	cfg    config.Config
	logger *zap.Logger
	out    io.Writer

	lookupEnv   func(string) (string, bool)
	newPipeline func(cfg config.Config) *pipeline.Pipeline
}

// NewRootCmd returns the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&appState{})
}

func newRootCmd(app *appState) *cobra.Command {
	defaults := config.Default()
	app.tempo = defaults.Tempo
	app.inputFile = defaults.InputFile
	app.outputFile = defaults.OutputFile
	app.transcoder = defaults.Transcoder
	app.stretcher = defaults.Stretcher

	cmd := &cobra.Command{
		Use:           "elongate",
		Short:         "Change the tempo of an audio file and rescale its alignment file to match",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if app.out == nil {
				app.out = cmd.OutOrStdout()
			}
			if cmd.Annotations[skipConfigLoad] == "true" {
				return app.initLogger(config.Default())
			}
			return app.loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runPipeline(cmd.Context())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindTempoFlags(cmd, app)
	bindToolFlags(cmd, app)
	bindLoggingFlags(cmd, app)
	cmd.PersistentFlags().StringVar(&app.configPath, "config", "", "Config file path (default: elongate.toml beside the executable)")

	cmd.AddCommand(newRescaleCmd(app))
	cmd.AddCommand(newCheckCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindTempoFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.IntVarP(&app.tempo, "tempo", "t", app.tempo, "The new tempo for the audio in percent; use negative numbers to slow the audio down")
	flags.StringVarP(&app.inputFile, "input-file", "i", app.inputFile, "Input audio file; its alignment file is the same path with an .ali extension")
	flags.StringVarP(&app.outputFile, "output-file", "o", app.outputFile, "Output audio file; the rescaled alignment is written beside it")
}

func bindToolFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.transcoder, "transcoder", app.transcoder, "Transcoder binary")
	flags.StringVar(&app.stretcher, "stretcher", app.stretcher, "Tempo stretch binary")
	flags.StringVar(&app.intermediate, "intermediate", app.intermediate, "Fixed intermediate WAV path (default: unique file per run in the temp dir)")
	flags.BoolVar(&app.keepIntermediate, "keep-intermediate", app.keepIntermediate, "Keep the per-run intermediate file")
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	flags.BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

// overrides collects only the flags the user actually passed.
func (a *appState) overrides(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	flags := cmd.Flags()
	if flags.Changed("tempo") {
		o.Tempo = &a.tempo
	}
	if flags.Changed("input-file") {
		o.InputFile = &a.inputFile
	}
	if flags.Changed("output-file") {
		o.OutputFile = &a.outputFile
	}
	if flags.Changed("transcoder") {
		o.Transcoder = &a.transcoder
	}
	if flags.Changed("stretcher") {
		o.Stretcher = &a.stretcher
	}
	if flags.Changed("intermediate") {
		o.Intermediate = &a.intermediate
	}
	if flags.Changed("keep-intermediate") {
		o.KeepIntermediate = &a.keepIntermediate
	}
	if flags.Changed("json") && a.jsonLogs {
		format := "json"
		o.LogFormat = &format
	}
	return o
}

func (a *appState) loadConfig(cmd *cobra.Command) error {
	cfg, src, err := config.Load(config.LoadOptions{
		Path:      a.configPath,
		LookupEnv: a.lookupEnv,
		Overrides: a.overrides(cmd),
	})
	if err != nil {
		return err
	}

	if err := a.initLogger(cfg); err != nil {
		return err
	}
	a.cfg = cfg

	if src.Exists {
		a.log().Debug("loaded config file", zap.String("path", src.Path))
	} else {
		a.log().Info("config file not found; using defaults, environment and flags", zap.String("path", src.Path))
	}
	return nil
}

func (a *appState) initLogger(cfg config.Config) error {
	logger, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Verbose: a.verbose,
		JSON:    cfg.Log.Format == "json" || a.jsonLogs,
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *appState) runPipeline(ctx context.Context) error {
	return a.pipeline(a.cfg).Run(ctx, a.cfg)
}

func (a *appState) pipeline(cfg config.Config) *pipeline.Pipeline {
	var p *pipeline.Pipeline
	if a.newPipeline != nil {
		p = a.newPipeline(cfg)
	} else {
		p = pipeline.New(cfg, a.log(), a.outWriter())
	}
	if p.Logger == nil {
		p.Logger = a.log()
	}
	if p.Out == nil {
		p.Out = a.outWriter()
	}
	if p.Spinner == nil && a.progressEnabled() {
		p.Spinner = func(description string) func() {
			return startSpinner(true, description)
		}
	}
	return p
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) outWriter() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}
