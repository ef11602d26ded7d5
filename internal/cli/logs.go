package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/facegate/internal/facegate/service"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect the access log",
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the most recent access events",
	Args:  cobra.NoArgs,
	RunE:  runLogsList,
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every access event",
	Args:  cobra.NoArgs,
	RunE:  runLogsClear,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsListCmd, logsClearCmd)

	logsListCmd.Flags().IntP("limit", "n", service.DefaultEventLimit, "Number of events to show")
	logsListCmd.Flags().StringP("output", "o", "table", "Output format: table, json or yaml")

	logsClearCmd.Flags().Bool("yes", false, "Confirm deleting the whole access log")
}

func runLogsList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	events, err := a.access.ListEvents(cmd.Context(), mustGetInt(cmd, "limit"))
	if err != nil {
		return err
	}

	return writeOutput(cmd.OutOrStdout(), mustGetString(cmd, "output"), events, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "TIME\tIDENTITY\tNAME\tRESULT\tSESSION")
		for _, e := range events {
			result := "DENIED"
			if e.Granted {
				result = "GRANTED"
			}
			name := e.Name
			if name == "" {
				name = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				e.OccurredAt.Local().Format(time.DateTime), e.IdentityKey, name, result, e.SessionID)
		}
	})
}

func runLogsClear(cmd *cobra.Command, _ []string) error {
	if !mustGetBool(cmd, "yes") {
		return errors.New("refusing to clear the access log without --yes")
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.access.ClearEvents(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d access events\n", n)
	return nil
}
