package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/oapi-pipeline/internal/docvalidate"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document>",
		Short: "Check a Swagger 2.0 document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strict, err := cmd.Flags().GetBool("strict")
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			issues, err := (&docvalidate.OASValidator{Strict: strict}).ValidateBytes(data)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(issues) == 0 {
				fmt.Fprintf(out, "%s is valid\n", args[0])
				return nil
			}
			for _, issue := range issues {
				fmt.Fprintf(out, "%s\t%s\n", issue.Severity, issue)
			}
			return fmt.Errorf("%s has %d issues", args[0], len(issues))
		},
	}
	cmd.Flags().Bool("strict", false, "Enable checks beyond the specification's requirements")
	return cmd
}
