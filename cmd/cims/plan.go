package main

import (
	"github.com/spf13/cobra"
)

func newPlanCommand(opts *rootOptions) *cobra.Command {
	out := OutputConfig{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Net BOQ demand against stock and open orders and suggest purchases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.svc.Planning.Plan(cmd.Context(), out.ProjectID)
			if err != nil {
				return err
			}
			return generateOutput(cmd.OutOrStdout(), result, out)
		},
	}
	cmd.Flags().StringVarP(&out.ProjectID, "project", "p", "", "plan a single project (default: all active projects)")
	cmd.Flags().StringVarP(&out.Format, "format", "f", "text", "output format: text, json or csv")
	cmd.Flags().StringVarP(&out.OutputDir, "output", "o", "", "write files to this directory instead of stdout")
	cmd.Flags().BoolVarP(&out.Verbose, "verbose", "v", false, "include allocations and report written files")
	return cmd
}
