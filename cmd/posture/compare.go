package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZDP-Q/PostureCorrection/internal/analyzer"
	"github.com/ZDP-Q/PostureCorrection/internal/app"
	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

var compareJSON bool

var compareCmd = &cobra.Command{
	Use:   "compare REFERENCE LIVE",
	Short: "Compare two poses given as images or JSON pose files",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := newSession(cmd, sessionOptions{})
		if err != nil {
			return err
		}
		defer cleanup()

		ref, err := loadPose(session, args[0])
		if err != nil {
			return err
		}
		live, err := loadPose(session, args[1])
		if err != nil {
			return err
		}

		c, err := comparePoses(session, ref, live)
		if err != nil {
			return err
		}
		if compareJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(c)
		}
		printComparison(cmd.OutOrStdout(), c)
		return nil
	},
}

func init() {
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(compareCmd)
}

// comparison is the outcome of one reference/live pair.
type comparison struct {
	Result    pose.MatchResult  `json:"result"`
	Feedback  analyzer.Feedback `json:"feedback"`
	Reference pose.AngleSet     `json:"reference_angles"`
	Live      pose.AngleSet     `json:"live_angles"`
}

// loadPose reads a pose from a JSON file or detects it in an image.
func loadPose(session *app.Session, path string) (pose.Pose, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return readPoseFile(path)
	}

	p, err := session.DetectImage(path)
	if err != nil {
		return pose.Pose{}, fmt.Errorf("%s: %w", path, err)
	}
	if !p.Detected() {
		return pose.Pose{}, fmt.Errorf("%s: %w", path, app.ErrNoPerson)
	}
	return p, nil
}

// readPoseFile decodes a {"landmarks": [...]} document.
func readPoseFile(path string) (pose.Pose, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pose.Pose{}, err
	}
	var p pose.Pose
	if err := json.Unmarshal(data, &p); err != nil {
		return pose.Pose{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func comparePoses(session *app.Session, ref, live pose.Pose) (comparison, error) {
	a, err := analyzer.Resolve(session.Container())
	if err != nil {
		return comparison{}, err
	}
	refAngles, err := a.ExtractPoseAngles(ref)
	if err != nil {
		return comparison{}, fmt.Errorf("reference: %w", err)
	}
	liveAngles, err := a.ExtractPoseAngles(live)
	if err != nil {
		return comparison{}, fmt.Errorf("live: %w", err)
	}

	result := a.CompareAngles(refAngles, liveAngles)
	return comparison{
		Result:    result,
		Feedback:  analyzer.GenerateFeedback(result, refAngles, liveAngles),
		Reference: refAngles,
		Live:      liveAngles,
	}, nil
}

func formatAngle(s pose.AngleSet, joint string) string {
	deg, ok := s.Get(joint)
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.1f", deg)
}

func printComparison(out io.Writer, c comparison) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "JOINT\tREFERENCE\tLIVE\tDIFF\tMATCH")
	fmt.Fprintln(w, "-----\t---------\t----\t----\t-----")

	for _, joint := range c.Reference.Names() {
		diff, match := "-", "-"
		if d, ok := c.Result.Details[joint]; ok {
			diff = fmt.Sprintf("%.1f", d)
			match = "no"
			if c.Result.PerJoint[joint] {
				match = "yes"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", joint,
			formatAngle(c.Reference, joint), formatAngle(c.Live, joint), diff, match)
	}
	w.Flush()

	fmt.Fprintf(out, "\nScore: %.0f%% (%d/%d joints)\n", c.Result.Score*100, c.Result.Matched(), c.Result.Evaluated())
	fmt.Fprintln(out, c.Feedback.Status)
	for _, h := range c.Feedback.Hints {
		fmt.Fprintf(out, "  - %s\n", h.Message)
	}
}
