package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control API",
	Long: `Start the HTTP control API. Sessions are started and stopped over the API;
the camera (or CAMERA_FRAMES_DIR replay) is opened when a session starts.
New attendance records are streamed at /api/v1/attendance/events.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("warm-up", true, "Encode reference photos before accepting requests")
	addRecognitionFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	if port := mustGetInt(cmd, "port"); port > 0 {
		p.cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		p.cfg.Web.Host = host
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if mustGetBool(cmd, "warm-up") {
		printReferenceErrors(p.warmUp(ctx, false))
	}

	processor := p.newProcessor()
	controller := attendance.NewController(processor,
		sourceFactory(p.cfg.Camera.Device, p.cfg.Camera.FramesDir, p.cfg), nil)

	server := web.NewServer(p.cfg, web.Services{
		Roster:     p.store,
		References: p.references,
		Processor:  processor,
		Controller: controller,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance API on http://%s:%d\n", p.cfg.Web.Host, p.cfg.Web.Port)
	fmt.Printf("Roster: %s (%d students)\n", p.store.Path(), p.store.Len())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
