package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"geotask/pkg/gpjob"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the current status of a submitted job",
	Args:  cobra.ExactArgs(1),
	RunE:  doStatus,
}

func doStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	handle := gpjob.Handle(args[0])

	client := newServiceClient()
	snap, err := client.FetchStatus(ctx, handle)
	if err != nil {
		return err
	}

	if snap.Message != "" {
		fmt.Fprintf(out, "%s: %s (%s)\n", handle, snap.Status, snap.Message)
	} else {
		fmt.Fprintf(out, "%s: %s\n", handle, snap.Status)
	}

	if snap.Status == gpjob.StatusSucceeded {
		result, err := client.FetchResult(ctx, handle)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Layer:  %s\n", result.LayerURL)
		fmt.Fprintf(out, "Extent: [%g, %g, %g, %g] (wkid %d)\n",
			result.Extent.XMin, result.Extent.YMin, result.Extent.XMax, result.Extent.YMax, result.Extent.WKID)
	}
	return nil
}
