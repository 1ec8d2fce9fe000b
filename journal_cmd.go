package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/fxfer/internal/txn"
)

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect and recover the undo journal",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded transactions",
		Args:  cobra.NoArgs,
		RunE:  runJournalList,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "recover",
		Short: "Roll back transactions left open by an interrupted run",
		Args:  cobra.NoArgs,
		RunE:  runJournalRecover,
	})

	return cmd
}

// openJournal opens the configured journal directly, without a Session, so
// recover can report ErrBusy instead of skipping it.
func openJournal(cmd *cobra.Command, cc *CLIContext) (*txn.Journal, error) {
	if !cc.Cfg.Journal.Enabled {
		return nil, errors.New("journal is disabled (remove --no-journal or set [journal] enabled = true)")
	}

	return txn.Open(cmd.Context(), cc.Cfg.Journal.Dir, cc.Logger)
}

// journalJSONOutput is the JSON output schema for journal list.
type journalJSONOutput struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	PID        int    `json:"pid"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
	Operations int    `json:"operations"`
}

func runJournalList(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	j, err := openJournal(cmd, cc)
	if err != nil {
		return err
	}
	defer j.Close()

	records, err := j.List(cmd.Context())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	if cc.Flags.JSON {
		out := make([]journalJSONOutput, 0, len(records))
		for _, r := range records {
			out = append(out, journalJSONOutput{
				ID:         r.ID,
				State:      r.State,
				PID:        r.PID,
				StartedAt:  formatStamp(r.StartedAt),
				FinishedAt: formatStamp(r.FinishedAt),
				Operations: r.Operations,
			})
		}

		return writeJSON(w, out)
	}

	if len(records) == 0 {
		cc.Statusf("No transactions recorded.\n")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.ID, r.State, strconv.Itoa(r.PID),
			formatTime(r.StartedAt), formatTime(r.FinishedAt), strconv.Itoa(r.Operations),
		})
	}

	printTable(w, []string{"ID", "STATE", "PID", "STARTED", "FINISHED", "OPS"}, rows)

	return nil
}

func runJournalRecover(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	j, err := openJournal(cmd, cc)
	if err != nil {
		return err
	}
	defer j.Close()

	n, err := j.Recover(cmd.Context())
	if errors.Is(err, txn.ErrBusy) {
		return fmt.Errorf("another fxfer process is using the journal in %s; retry when it exits", j.Dir())
	}

	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return writeJSON(cmd.OutOrStdout(), struct {
			Recovered int `json:"recovered"`
		}{n})
	}

	cc.Statusf("Recovered %d interrupted transaction(s).\n", n)

	return nil
}
