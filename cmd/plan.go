package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-efidisk/pkg/app"
	"github.com/deploymenttheory/go-efidisk/pkg/app/plan"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the image layout without writing anything",
		Long: `Compute the layout for the given sizes and print where the protective MBR,
both GPT copies and both partitions would be placed. No file is touched.

Examples:
  efidisk plan
  efidisk plan --lba-size 4096 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd)
		},
	}

	addLayoutFlags(cmd.Flags())
	return cmd
}

func runPlan(cmd *cobra.Command) error {
	ctx, stop, err := newContext(cmd)
	if err != nil {
		return err
	}
	defer stop()

	settings, err := loadSettings(ctx, cmd)
	if err != nil {
		return err
	}

	response, err := plan.Handle(ctx, &plan.Request{Layout: app.FromSettings(settings)})
	if err != nil {
		return err
	}
	return plan.FormatOutput(ctx.Stdout, response, ctx.OutputFormat)
}
