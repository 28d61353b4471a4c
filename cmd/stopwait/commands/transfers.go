package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/skycoin/stopwait/pkg/transferlog"
)

func init() {
	transfersCmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the latest n transfers, 0 shows all")
}

var limit int

var transfersCmd = &cobra.Command{
	Use:   "transfers [id]",
	Short: "Lists recorded transfers, or shows one in detail",
	Args:  cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		cfg.startProfiler().
			startLogger().
			readConfig().
			applyConfig().
			openStore()
		defer cfg.close()

		if len(args) == 1 {
			id, err := uuid.Parse(args[0])
			if err != nil {
				cfg.logger.Fatalf("Invalid transfer ID: %s", err)
			}
			entry, err := cfg.store.Entry(id)
			if err != nil {
				cfg.logger.Fatal(err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(entry); err != nil {
				cfg.logger.Fatal(err)
			}
			return
		}

		entries, err := cfg.store.Entries()
		if err != nil {
			cfg.logger.Fatal(err)
		}
		if limit > 0 && limit < len(entries) {
			entries = entries[len(entries)-limit:]
		}
		if err := printEntries(entries); err != nil {
			cfg.logger.Fatal(err)
		}
	},
}

func printEntries(entries []*transferlog.Entry) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 5, ' ', tabwriter.TabIndent)
	if _, err := fmt.Fprintln(w, "id\tdirection\tpeer\tsize\tfragments\tstarted\tduration\tstatus"); err != nil {
		return err
	}
	for _, e := range entries {
		status := "ok"
		if e.Error != "" {
			status = e.Error
		}
		_, err := fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			e.ID, e.Direction, e.Peer, e.Size, e.Fragments, e.Started.Format("2006-01-02 15:04:05"), e.Duration, status)
		if err != nil {
			return err
		}
	}
	return w.Flush()
}
