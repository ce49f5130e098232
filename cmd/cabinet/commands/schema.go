package commands

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newSchemaCommand(g *globalOptions) *cobra.Command {
	var typeName string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of a record type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := loadRegistry(g)
			if err != nil {
				return err
			}
			typ, err := lookupType(reg, typeName)
			if err != nil {
				return err
			}
			s, err := typ.JSONSchema()
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
			return err
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "record type to describe")
	return cmd
}
