package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/h2non/filetype"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [name] [photo]",
	Short: "Enroll a student with a reference photo",
	Long: `Add a student to the roster, or replace the reference photo of a student
who is already enrolled. Names are matched ignoring case and accents.

With --dir every image in the directory is enrolled; the file name without
extension is the student name (underscores become spaces).

Examples:
  face-attendance enroll "Alice Smith" photos/alice.jpg
  face-attendance enroll --dir photos/`,
	Args: func(cmd *cobra.Command, args []string) error {
		if mustGetString(cmd, "dir") != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("dir", "", "Enroll every image in a directory")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	store, err := openRoster(cfg)
	if err != nil {
		return err
	}

	if dir := mustGetString(cmd, "dir"); dir != "" {
		return enrollDir(store, dir)
	}

	rec, err := store.Enroll(args[0], args[1])
	if err != nil {
		return fmt.Errorf("enrolling student: %w", err)
	}
	fmt.Printf("Enrolled %s (%s)\n", rec.Name, rec.PhotoPath)
	fmt.Printf("Roster now has %d student(s)\n", store.Len())
	return nil
}

// studentNameFromFile turns "alice_smith.jpg" into "alice smith".
func studentNameFromFile(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
}

// listImages returns the image files in dir in lexical order.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		header := make([]byte, 261)
		f, err := os.Open(path) //nolint:gosec // directory chosen by the operator
		if err != nil {
			continue
		}
		n, _ := f.Read(header)
		_ = f.Close()
		if filetype.IsImage(header[:n]) {
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files, nil
}

func enrollDir(store *roster.Store, dir string) error {
	files, err := listImages(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("No images found in %s\n", dir)
		return nil
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Enrolling students"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var failed []string
	for _, path := range files {
		if _, err := store.Enroll(studentNameFromFile(path), path); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", filepath.Base(path), err))
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Println()

	fmt.Printf("Enrolled %d of %d photo(s)\n", len(files)-len(failed), len(files))
	for _, f := range failed {
		fmt.Printf("  failed: %s\n", f)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d photo(s) could not be enrolled", len(failed))
	}
	return nil
}
