package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/spf13/cobra"
)

const (
	displayWindow = "window"
	displayNone   = "none"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Take attendance from the camera",
	Long: `Start a session, watch the camera and record every enrolled student the
first time they are recognized. Press Esc in the window or Ctrl+C to stop; the
attendance log is then exported to the spreadsheet.

--display selects where annotated frames go: "window" opens an OpenCV window,
"none" discards them and any other value is a directory that receives one
JPEG per frame. A --frames replay defaults to "none".

Examples:
  face-attendance run
  face-attendance run --device 1 --export monday.xlsx
  face-attendance run --frames recordings/lesson1
  face-attendance run --frames recordings/lesson1 --display annotated/`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("device", -1, "Camera device index (overrides CAMERA_DEVICE)")
	runCmd.Flags().String("frames", "", "Replay frames from a directory instead of a camera")
	runCmd.Flags().String("display", displayWindow, "Frame display: window, none, or an output directory")
	runCmd.Flags().String("export", "", "Spreadsheet to write on exit (overrides ATTENDANCE_EXPORT_PATH)")
	runCmd.Flags().Bool("no-export", false, "Do not export the attendance log on exit")
	addRecognitionFlags(runCmd)
}

// resolveDisplay picks the frame display. A replay without an explicit
// --display runs headless.
func resolveDisplay(display string, explicit bool, framesDir string) string {
	if !explicit && framesDir != "" {
		return displayNone
	}
	return display
}

// openSink creates the frame display for the --display value.
func openSink(display string) (camera.Sink, error) {
	switch display {
	case displayWindow:
		win, err := camera.NewWindow("Face Attendance")
		if err != nil {
			return nil, err
		}
		return win, nil
	case displayNone, "":
		return camera.DiscardSink{}, nil
	default:
		sink, err := camera.NewFileSink(display)
		if err != nil {
			return nil, err
		}
		return sink, nil
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	device := mustGetInt(cmd, "device")
	if device < 0 {
		device = p.cfg.Camera.Device
	}
	framesDir := mustGetString(cmd, "frames")
	if framesDir == "" {
		framesDir = p.cfg.Camera.FramesDir
	}
	exportPath := mustGetString(cmd, "export")
	if exportPath == "" {
		exportPath = p.cfg.Export.Path
	}
	noExport := mustGetBool(cmd, "no-export")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if p.store.Len() == 0 {
		fmt.Fprintln(os.Stderr, "Warning: the roster is empty, every face will be Unknown")
	}
	printReferenceErrors(p.warmUp(ctx, true))

	src, err := sourceFactory(device, framesDir, p.cfg)(ctx)
	if err != nil {
		return fmt.Errorf("opening frame source: %w", err)
	}
	defer src.Close()

	display := resolveDisplay(mustGetString(cmd, "display"), cmd.Flags().Changed("display"), framesDir)
	sink, err := openSink(display)
	if err != nil {
		return fmt.Errorf("opening display: %w", err)
	}
	defer sink.Close()

	processor := p.newProcessor()
	session := processor.Session()
	id, err := session.Start()
	if err != nil {
		return err
	}

	events := session.AddListener()
	defer session.RemoveListener(events)
	go func() {
		for ev := range events {
			if rec, ok := ev.Data.(attendance.Record); ok && ev.Type == attendance.EventRecord {
				fmt.Printf("  %s %s  %s present\n", rec.Date, rec.Time, rec.Name)
			}
		}
	}()

	fmt.Printf("Session %s started with %d enrolled student(s). Press Ctrl+C to stop.\n", id, p.store.Len())
	runErr := camera.Run(ctx, src, sink, processor.Handle)
	_ = session.Stop()

	records := session.Records()
	fmt.Printf("\nSession ended: %d of %d student(s) present\n", len(records), p.store.Len())

	if !noExport {
		if err := session.Export(exportPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if runErr == nil {
				runErr = err
			}
		} else if info, err := os.Stat(exportPath); err == nil {
			fmt.Printf("Attendance exported to %s (%s)\n", exportPath, humanize.Bytes(uint64(info.Size()))) //nolint:gosec // file sizes are non-negative
		}
	}

	return runErr
}
