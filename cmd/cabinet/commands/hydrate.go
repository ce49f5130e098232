package commands

import (
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reoring/cabinet"
	"github.com/reoring/cabinet/source"
)

type hydrateOptions struct {
	typeName    string
	input       string
	inputFormat string
	output      string
	strict      bool
}

func newHydrateCommand(g *globalOptions) *cobra.Command {
	opts := &hydrateOptions{}
	cmd := &cobra.Command{
		Use:   "hydrate",
		Short: "Build a record from input and print it fully resolved",
		Example: `  # JSON from a file
  cabinet hydrate --schema types.yaml --type Booking --input booking.json

  # YAML from stdin, YAML out
  cat booking.yaml | cabinet hydrate -s types.yaml -t '\Travel\Booking' --input-format yaml -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := loadRegistry(g)
			if err != nil {
				return err
			}
			typ, err := lookupType(reg, opts.typeName)
			if err != nil {
				return err
			}
			raw, err := readInput(cmd.InOrStdin(), opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rec, err := cabinet.New(ctx, typ, raw)
			if err != nil {
				return err
			}
			log.Debug().Str("type", typ.Name()).Int("fields", len(typ.Schema())).Msg("record constructed")
			return writeRecord(cmd.OutOrStdout(), rec, opts.output)
		},
	}
	cmd.Flags().StringVarP(&opts.typeName, "type", "t", "", "record type to build")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "-", "input file, - for stdin")
	cmd.Flags().StringVar(&opts.inputFormat, "input-format", "", "json or yaml (defaults to the input file extension)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "json", "json or yaml")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "reject repeated keys in JSON input")
	return cmd
}

func readInput(stdin io.Reader, opts *hydrateOptions) (map[string]any, error) {
	format := source.FormatFromPath(opts.input)
	if opts.inputFormat != "" {
		f, err := source.ParseFormat(opts.inputFormat)
		if err != nil {
			return nil, err
		}
		format = f
	}
	read := source.Read
	if opts.strict {
		read = source.ReadStrict
	}
	if opts.input == "-" || opts.input == "" {
		return read(stdin, format)
	}
	fh, err := os.Open(opts.input)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return read(fh, format)
}

func writeRecord(w io.Writer, rec *cabinet.Record, output string) error {
	format, err := source.ParseFormat(output)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if format == source.FormatYAML {
		if b, err = jsonToYAML(b); err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

// jsonToYAML re-encodes a JSON document as block-style YAML. Going through
// yaml.Node keeps the key order of the JSON document.
func jsonToYAML(b []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	blockStyle(&doc)
	return yaml.Marshal(&doc)
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
