package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/sra-fetch/pkg/types"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the exported columns and the comparators each accepts",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FIELD\tKIND\tCOMPARATORS")
		for _, name := range types.Columns {
			kind := types.FieldKinds[name]
			fmt.Fprintf(tw, "%s\t%s\t%s\n", name, kind, strings.Join(comparatorsFor(kind), " "))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
}

// comparatorsFor returns the comparators a field of kind k accepts.
func comparatorsFor(k types.FieldKind) []string {
	var out []string
	for _, op := range types.Comparators {
		switch op {
		case types.OpLess, types.OpGreater, types.OpLessEqual, types.OpGreaterEqual:
			if !k.IsOrdered() {
				continue
			}
		case types.OpContains, types.OpMatches:
			if k != types.KindText && k != types.KindList {
				continue
			}
		}
		out = append(out, string(op))
	}
	return out
}
