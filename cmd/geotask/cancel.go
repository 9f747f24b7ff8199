package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"geotask/pkg/gpjob"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Request cancellation of a submitted job",
	Long: `Cancel asks the service to stop a running job. Cancellation is advisory:
a job that already finished keeps its outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: doCancel,
}

func doCancel(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	handle := gpjob.Handle(args[0])

	client := newServiceClient()
	if err := client.Cancel(ctx, handle); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job %s\n", handle)
	return nil
}
