// Package cmd implements the pme CLI commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eykd/prosemark-elements/internal/element"
	"github.com/eykd/prosemark-elements/internal/embed"
)

// envPrefix prefixes every environment override, e.g. PME_ELEMENTS.
const envPrefix = "PME"

// Config is the resolved CLI configuration: flags override environment
// variables, which override the config file.
type Config struct {
	Elements  string `mapstructure:"elements"`
	Verbose   bool   `mapstructure:"verbose"`
	LogFormat string `mapstructure:"log_format"`
}

// app carries what every subcommand needs once the root has run.
type app struct {
	io    DocumentIO
	v     *viper.Viper
	cfg   Config
	log   *slog.Logger
	embed *embed.Embed
}

// NewRootCmd creates the root pme command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newDefaultDocumentIO())
}

func newRootCmd(io DocumentIO) *cobra.Command {
	a := &app{io: io, v: viper.New()}
	root := &cobra.Command{
		Use:               "pme",
		Short:             "pme - validate and edit documents with structured elements",
		Args:              cobra.NoArgs,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              rootRunE,
	}
	flags := root.PersistentFlags()
	flags.String("config", "", "config file (YAML)")
	flags.String("elements", "", "element definitions file (YAML)")
	flags.Bool("verbose", false, "log debug diagnostics to stderr")
	flags.String("log-format", "text", "log format: text or json")
	bindFlags(a.v, flags, map[string]string{
		"elements":   "elements",
		"verbose":    "verbose",
		"log_format": "log-format",
	})
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(newValidateCmd(a))
	root.AddCommand(newSyncCmd(a))
	root.AddCommand(newRenderCmd(a))
	root.AddCommand(newParseCmd(a))
	root.AddCommand(newSchemaCmd(a))
	root.AddCommand(newInsertCmd(a))
	root.AddCommand(newElementCmd(a))
	root.AddCommand(newRepeaterCmd(a))
	return root
}

// bindFlags binds each config key to the flag of the same meaning.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if f := flags.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

func rootRunE(cmd *cobra.Command, _ []string) error {
	return cmd.Help()
}

// setup resolves the configuration, the logger and the element registry.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.HasSubCommands() {
		return nil
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		a.v.SetConfigFile(path)
		a.v.SetConfigType("yaml")
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	if err := a.v.Unmarshal(&a.cfg); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	a.log = newLogger(cmd, a.cfg)

	if a.cfg.Elements == "" {
		return fmt.Errorf("no element definitions: set --elements or %s_ELEMENTS", envPrefix)
	}
	data, err := a.io.ReadDefinitions(cmd.Context(), a.cfg.Elements)
	if err != nil {
		return fmt.Errorf("reading element definitions: %w", err)
	}
	specs, err := element.ParseDefinitions(data)
	if err != nil {
		return fmt.Errorf("%s: %w", sanitizePath(a.cfg.Elements), err)
	}
	reg, err := element.NewRegistry(specs...)
	if err != nil {
		return fmt.Errorf("%s: %w", sanitizePath(a.cfg.Elements), err)
	}
	a.embed, err = embed.New(embed.Config{Registry: reg, Logger: a.log})
	if err != nil {
		return err
	}
	a.log.Debug("loaded element definitions", "path", a.cfg.Elements, "elements", len(specs))
	return nil
}

func newLogger(cmd *cobra.Command, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if cfg.Verbose {
		opts.Level = slog.LevelDebug
	}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), opts))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), opts))
}

// emitFailure writes an io-or-parse failure diagnostic and returns a non-nil
// error so the caller exits with non-zero code. When jsonMode is true the
// diagnostic is written as an OpResult JSON object to stdout; otherwise it
// is written as a human-readable message to stderr.
func emitFailure(cmd *cobra.Command, jsonMode bool, origErr error) error {
	if jsonMode {
		diags := []Diagnostic{{Severity: SeverityError, Code: CodeIOOrParseFailure, Message: origErr.Error()}}
		out := OpResult{Version: "1", Changed: false, Diagnostics: diags}
		_ = json.NewEncoder(cmd.OutOrStdout()).Encode(out)
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: I/O or parse failure: %v (%s)\n", origErr, CodeIOOrParseFailure)
	}
	return fmt.Errorf("operation failed: %w", origErr)
}

// printDiagnostics writes each diagnostic to stderr in human-readable form.
func printDiagnostics(cmd *cobra.Command, diags []Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s (%s)\n", d.Severity, sanitizePath(d.Message), d.Code)
	}
}
