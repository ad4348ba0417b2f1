package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	domain "github.com/oshokin/node-sentinel/internal/domain/upgrade"
)

// printOutcome renders one orchestration outcome as an aligned block.
func printOutcome(out io.Writer, outcome *domain.Outcome) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Component:\t%s\n", outcome.Component)
	fmt.Fprintf(w, "Operation:\t%s\n", outcome.Operation)
	fmt.Fprintf(w, "Status:\t%s\n", outcome.Status)

	if outcome.TargetVersion != "" {
		fmt.Fprintf(w, "Target version:\t%s\n", outcome.TargetVersion)
	}

	if outcome.ResultingVersion != "" {
		fmt.Fprintf(w, "Resulting version:\t%s\n", outcome.ResultingVersion)
	}

	if outcome.BackupID != "" {
		fmt.Fprintf(w, "Backup:\t%s\n", outcome.BackupID)
	}

	if outcome.Failure != nil {
		fmt.Fprintf(w, "Failure:\t%s: %s\n", outcome.Failure.Kind, outcome.Failure.Message)
	}

	if outcome.RollbackFailure != nil {
		fmt.Fprintf(w, "Rollback failure:\t%s: %s\n",
			outcome.RollbackFailure.Kind, outcome.RollbackFailure.Message)
	}

	fmt.Fprintf(w, "Duration:\t%s\n", outcome.FinishedAt.Sub(outcome.StartedAt).Round(time.Millisecond))

	_ = w.Flush()
}

// yesNo renders a boolean for table cells.
func yesNo(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}

// orDash substitutes a dash for empty table cells.
func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
