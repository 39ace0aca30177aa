package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/facerec"
	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <photo>",
	Short: "Recognize the students in a photo",
	Long: `Detect the faces in a photo and match them against the roster. Nothing is
written to the attendance log.

Examples:
  face-attendance identify class.jpg
  face-attendance identify class.jpg --annotate class-annotated.jpg
  face-attendance identify class.jpg --strategy closest --json`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().String("annotate", "", "Write a copy of the photo with labelled boxes to this JPEG file")
	identifyCmd.Flags().Bool("json", false, "Output as JSON")
	addRecognitionFlags(identifyCmd)
}

// IdentifyResult is the JSON output of the identify command.
type IdentifyResult struct {
	Photo           string                   `json:"photo"`
	Faces           []attendance.Recognition `json:"faces"`
	ReferenceErrors []string                 `json:"reference_errors,omitempty"`
}

func runIdentify(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	annotatePath := mustGetString(cmd, "annotate")

	p, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	img, err := facerec.DecodeImageFile(args[0])
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	recs, refErrs, err := p.newProcessor().Identify(context.Background(), img)
	if err != nil {
		return fmt.Errorf("identifying faces: %w", err)
	}

	if annotatePath != "" {
		data, err := facerec.EncodeJPEG(attendance.Annotate(img, recs))
		if err != nil {
			return fmt.Errorf("encoding annotated photo: %w", err)
		}
		if err := os.WriteFile(annotatePath, data, 0o600); err != nil {
			return fmt.Errorf("writing annotated photo: %w", err)
		}
	}

	if jsonOutput {
		result := IdentifyResult{Photo: args[0], Faces: recs}
		if result.Faces == nil {
			result.Faces = []attendance.Recognition{}
		}
		for _, e := range refErrs {
			result.ReferenceErrors = append(result.ReferenceErrors, e.Error())
		}
		return outputJSON(result)
	}

	printReferenceErrors(refErrs)

	if len(recs) == 0 {
		fmt.Println("No faces found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tIDENTITY\tDISTANCE\tBOX")
	for i, r := range recs {
		distance := "-"
		if r.Identity != facerec.Unknown {
			distance = fmt.Sprintf("%.3f", r.Distance)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%v\n", i+1, r.Identity, distance, r.BBox)
	}
	w.Flush()

	if annotatePath != "" {
		fmt.Printf("\nAnnotated photo written to %s\n", annotatePath)
	}
	return nil
}
