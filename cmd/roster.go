package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/spf13/cobra"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "List enrolled students",
	Long: `List the students in the roster file in enrollment order.

With --check every reference photo is encoded and students whose photo has
no detectable face are flagged.`,
	Args: cobra.NoArgs,
	RunE: runRoster,
}

var unenrollCmd = &cobra.Command{
	Use:   "unenroll <name>",
	Short: "Remove a student from the roster",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnenroll,
}

func init() {
	rootCmd.AddCommand(rosterCmd)
	rootCmd.AddCommand(unenrollCmd)

	rosterCmd.Flags().Bool("json", false, "Output as JSON")
	rosterCmd.Flags().Bool("check", false, "Encode reference photos and report failures")
	addRecognitionFlags(rosterCmd)
}

// RosterEntry is one student in the roster listing.
type RosterEntry struct {
	Name      string     `json:"name"`
	PhotoPath string     `json:"photo_path"`
	Size      int64      `json:"size,omitempty"`
	Modified  *time.Time `json:"modified,omitempty"`
	Status    string     `json:"status,omitempty"`
}

func runRoster(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	check := mustGetBool(cmd, "check")

	p, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	students := p.store.All()
	entries := make([]RosterEntry, len(students))
	for i, s := range students {
		entries[i] = RosterEntry{Name: s.Name, PhotoPath: s.PhotoPath}
		if info, err := os.Stat(s.PhotoPath); err == nil {
			mod := info.ModTime()
			entries[i].Size = info.Size()
			entries[i].Modified = &mod
		} else {
			entries[i].Status = "photo missing"
		}

		if check && entries[i].Status == "" {
			entries[i].Status = "ok"
			if _, err := p.references.Reference(context.Background(), s.PhotoPath); err != nil {
				entries[i].Status = err.Error()
			}
		}
	}

	if jsonOutput {
		return outputJSON(entries)
	}

	if len(entries) == 0 {
		fmt.Printf("No students enrolled in %s\n", p.store.Path())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tPHOTO\tSIZE\tMODIFIED\tSTATUS")
	for i, e := range entries {
		size, modified := "-", "-"
		if e.Modified != nil {
			size = humanize.Bytes(uint64(e.Size)) //nolint:gosec // file sizes are non-negative
			modified = humanize.Time(*e.Modified)
		}
		status := e.Status
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, e.Name, e.PhotoPath, size, modified, status)
	}
	w.Flush()

	fmt.Printf("\n%d student(s) in %s\n", len(entries), p.store.Path())
	return nil
}

func runUnenroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	store, err := openRoster(cfg)
	if err != nil {
		return err
	}

	rec, err := unenroll(store, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Removed %s, %d student(s) left\n", rec.Name, store.Len())
	return nil
}

// unenroll removes a student looked up the way the HTTP API does, so
// "jiri-novak" finds "Jiří Novák".
func unenroll(store *roster.Store, name string) (roster.StudentRecord, error) {
	rec, ok := store.Get(name)
	if !ok {
		return roster.StudentRecord{}, fmt.Errorf("student %q is not enrolled", name)
	}
	if err := store.Remove(rec.Name); err != nil {
		return roster.StudentRecord{}, fmt.Errorf("removing student: %w", err)
	}
	return rec, nil
}
