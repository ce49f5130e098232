// Package commands implements the cabinet command line.
package commands

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/reoring/cabinet"
	"github.com/reoring/cabinet/i18n"
	"github.com/reoring/cabinet/schemafile"
)

type globalOptions struct {
	schemaPath string
	logLevel   string
	lang       string
}

// Execute runs the root command.
func Execute(ctx context.Context, version string) error {
	return NewRootCommand(version).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "cabinet",
		Short: "Hydrate raw JSON/YAML into typed record graphs",
		Long: `cabinet builds typed records from weakly typed input.

Record types are declared in a YAML or JSON schema file. Scalars are cast
best-effort, absent fields are defaulted and nested records are built once,
on first access.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd.ErrOrStderr(), opts.logLevel)
			if opts.lang != "" {
				i18n.SetLanguage(opts.lang)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.schemaPath, "schema", "s", "", "type declaration file (.yaml, .yml or .json)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", os.Getenv("LOG_LEVEL"), "trace, debug, info, warn or error (env LOG_LEVEL)")
	root.PersistentFlags().StringVar(&opts.lang, "lang", "", "message language (en, ja)")

	root.AddCommand(newHydrateCommand(opts))
	root.AddCommand(newSchemaCommand(opts))
	root.AddCommand(newTypesCommand(opts))
	return root
}

// setupLogging points both the global logger and the library logger at a
// console writer on w.
func setupLogging(w io.Writer, level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).Level(lvl).With().Timestamp().Logger()
	cabinet.SetLogger(log.Logger)
}

// loadRegistry reads the schema file into a fresh registry.
func loadRegistry(opts *globalOptions) (*cabinet.Registry, []*cabinet.RecordType, error) {
	if opts.schemaPath == "" {
		return nil, nil, errMissingSchema
	}
	f, err := schemafile.Load(opts.schemaPath)
	if err != nil {
		return nil, nil, err
	}
	reg := cabinet.NewRegistry()
	types, err := f.Register(reg, schemafile.Hooks{})
	if err != nil {
		return nil, nil, err
	}
	log.Debug().Str("schema", opts.schemaPath).Int("types", len(types)).Msg("schema loaded")
	return reg, types, nil
}

// lookupType resolves --type against reg; a bare short name matches when it
// is unambiguous.
func lookupType(reg *cabinet.Registry, name string) (*cabinet.RecordType, error) {
	if name == "" {
		return nil, errMissingType
	}
	if t, ok := reg.Lookup(name); ok {
		return t, nil
	}
	var found *cabinet.RecordType
	for _, t := range reg.Types() {
		if t.ShortName() == name {
			if found != nil {
				return nil, &ambiguousTypeError{name: name}
			}
			found = t
		}
	}
	if found == nil {
		return nil, cabinet.Issue{Code: cabinet.CodeUnknownType, Type: cabinet.QualifiedName(name), Message: i18n.T(cabinet.CodeUnknownType, nil)}
	}
	return found, nil
}
