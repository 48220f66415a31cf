// Package cli implements the read-aloud command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/book-expert/logger"
	"github.com/book-expert/read-aloud/internal/config"
	"github.com/book-expert/read-aloud/internal/pipeline"
	"github.com/book-expert/read-aloud/internal/rules"
	"github.com/book-expert/read-aloud/internal/subst"
	"github.com/book-expert/read-aloud/internal/transform"
	"github.com/book-expert/read-aloud/internal/units"
	"github.com/spf13/cobra"
)

// ErrInvalidFlag is returned when a flag value cannot be used.
var ErrInvalidFlag = errors.New("invalid flag value")

const (
	bootstrapLogFile = "read-aloud-bootstrap.log"
	logFile          = "read-aloud.log"
)

// RootOptions holds the flags shared by every command.
type RootOptions struct {
	ConfigPath string
	RulesFile  string
	SubstFile  string
	RegexFlags string
	LogRules   bool
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "read-aloud",
		Short: "Read text files aloud, one unit at a time",
		Long: `read-aloud splits a text into units with a transformation rules file,
rewrites each unit with a substitution rules file and speaks it through an
external speech program under keyboard control.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "configuration file (default: project configuration)")
	flags.StringVarP(&opts.RulesFile, "rules", "r", "", "transformation rules file")
	flags.StringVarP(&opts.SubstFile, "subst", "s", "", "substitution rules file")
	flags.StringVar(&opts.RegexFlags, "regex-flags", "", "flags applied to every pattern rule (i, m, s, U)")
	flags.BoolVar(&opts.LogRules, "log-rules", false, "log every protection and replacement made by the transformation rules")

	cmd.AddCommand(newReadCommand(opts))
	cmd.AddCommand(newTransformCommand(opts))
	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSubmitCommand(opts))

	return cmd
}

// app is the state shared by a command run: configuration and logger.
type app struct {
	cfg  *config.Config
	log  *logger.Logger
	opts *RootOptions
	out  io.Writer
	errw io.Writer
}

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

// newApp loads the configuration with a bootstrap logger, then opens the
// final logger in the configured directory.
func newApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = bootstrapLog.Close()
	}()

	bootstrapLog.Info("Bootstrap logger created.")

	cfg, err := loadConfig(opts, bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return nil, err
	}

	err = applyFlags(cfg, opts)
	if err != nil {
		return nil, err
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, logFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return nil, err
	}

	return &app{
		cfg:  cfg,
		log:  finalLog,
		opts: opts,
		out:  cmd.OutOrStdout(),
		errw: cmd.ErrOrStderr(),
	}, nil
}

func loadConfig(opts *RootOptions, bootstrapLog *logger.Logger) (*config.Config, error) {
	if opts.ConfigPath != "" {
		cfg, err := config.LoadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}

		return cfg, nil
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		if errors.Is(err, config.ErrInvalidConfig) {
			return nil, err
		}

		bootstrapLog.Warn("No project configuration, using defaults: %v", err)

		defaults := config.Default()

		return &defaults, nil
	}

	return cfg, nil
}

// applyFlags lets command line flags override the configuration.
func applyFlags(cfg *config.Config, opts *RootOptions) error {
	if opts.RulesFile != "" {
		cfg.Rules.TransformationFile = opts.RulesFile
	}

	if opts.SubstFile != "" {
		cfg.Rules.SubstitutionFile = opts.SubstFile
	}

	if opts.RegexFlags != "" {
		if !rules.ValidateFlags(opts.RegexFlags) {
			return fmt.Errorf("%w: --regex-flags %q", ErrInvalidFlag, opts.RegexFlags)
		}

		cfg.Rules.RegexFlags = opts.RegexFlags
	}

	return nil
}

func (a *app) Close() {
	err := a.log.Close()
	if err != nil {
		fmt.Fprintf(a.errw, "error closing logger: %v\n", err)
	}
}

// loadTransformation parses the transformation rules. Any failure is fatal.
func (a *app) loadTransformation() (*rules.Ruleset, error) {
	path := a.cfg.Rules.TransformationFile
	if path == "" {
		return nil, nil
	}

	ruleset, err := rules.ParseFile(path, a.cfg.ParseOptions())
	if err != nil {
		a.log.Error("Failed to load transformation rules: %v", err)

		return nil, fmt.Errorf("failed to load transformation rules: %w", err)
	}

	a.log.Info("Loaded %d transformation section(s) from %s", len(ruleset.Sections), path)

	return ruleset, nil
}

// loadSubstitution parses the substitution rules. A failure is reported and
// substitution is disabled.
func (a *app) loadSubstitution() *subst.Engine {
	path := a.cfg.Rules.SubstitutionFile
	if path == "" {
		return subst.PassThrough()
	}

	engine, err := subst.Load(path, a.cfg.ParseOptions())
	if err != nil {
		a.log.Warn("Substitutions disabled: %v", err)
		fmt.Fprintf(a.errw, "Warning: %v; substitutions are disabled.\n", err)

		return subst.PassThrough()
	}

	a.log.Info("Loaded substitution rules from %s", path)

	return engine
}

// pipeline builds the segmenting pipeline from the configuration.
func (a *app) pipeline() (*pipeline.Pipeline, error) {
	separator, err := a.cfg.SeparatorRegexp()
	if err != nil {
		return nil, err
	}

	transformation, err := a.loadTransformation()
	if err != nil {
		return nil, err
	}

	p := &pipeline.Pipeline{
		Transformation: transformation,
		Substitution:   a.loadSubstitution(),
		Splitter:       units.Splitter{Separator: separator},
		Engine:         transform.Engine{Trace: nil, Changed: nil},
	}

	if a.opts.LogRules {
		p.Engine.Trace = a.traceRule
	}

	return p, nil
}

func (a *app) traceRule(event transform.Event) {
	switch event.Kind {
	case transform.EventProtected:
		a.log.Info("section %d: protected [%d,%d) %q", event.Section, event.Span.Start, event.Span.End, event.Text)
	case transform.EventApplied:
		a.log.Info("section %d: %s:%d replaced %q at %d with %q",
			event.Section, event.Rule.Source.File, event.Rule.Source.Line, event.Text, event.Span.Start, event.Replacement)
	case transform.EventSkipped:
		a.log.Info("section %d: %s:%d skipped protected match %q at %d",
			event.Section, event.Rule.Source.File, event.Rule.Source.Line, event.Text, event.Span.Start)
	}
}
