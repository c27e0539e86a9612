package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DrewBradfordXYZ/cbmgmt-go/dispatch"
)

// opsCmd represents the ops command
var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List the published operation tags",
	Long: `List the published operation tags grouped by family.

Example:
  cbmgmt ops`,
	Run: func(cmd *cobra.Command, args []string) {
		listOperations(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(opsCmd)
}

// familyTitle turns "user_management" into "User Management".
func familyTitle(family string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(family, "_", " "))
}

func listOperations(w io.Writer) {
	families := make([]string, 0, len(dispatch.Families))
	for f := range dispatch.Families {
		families = append(families, f)
	}
	sort.Strings(families)

	for i, f := range families {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s:\n", familyTitle(f))
		for _, op := range dispatch.Families[f] {
			fmt.Fprintf(w, "  %s\n", op)
		}
	}
}
