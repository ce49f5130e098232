package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/reoring/cabinet"
)

type typeSummary struct {
	Name    string          `json:"name"`
	Extends string          `json:"extends,omitempty"`
	Fields  []cabinet.Field `json:"fields"`
}

func newTypesCommand(g *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List the declared record types and their merged schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, types, err := loadRegistry(g)
			if err != nil {
				return err
			}
			out := make([]typeSummary, 0, len(types))
			for _, t := range types {
				s := typeSummary{Name: t.Name(), Fields: t.Schema()}
				if p := t.Parent(); p != nil {
					s.Extends = p.Name()
				}
				out = append(out, s)
			}
			if asJSON {
				b, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tEXTENDS\tFIELDS")
			for _, s := range out {
				fields := make([]string, len(s.Fields))
				for i, f := range s.Fields {
					fields[i] = f.Name + ":" + f.Type
				}
				ext := s.Extends
				if ext == "" {
					ext = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, ext, strings.Join(fields, " "))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
