package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"github.com/ZDP-Q/PostureCorrection/internal/app"
	"github.com/ZDP-Q/PostureCorrection/internal/capture"
	"github.com/ZDP-Q/PostureCorrection/internal/pose"
)

var batchOpts struct {
	MinScore float64
}

var batchCmd = &cobra.Command{
	Use:   "batch REFERENCE DIR",
	Short: "Score every image in a directory against one reference",
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

		images, err := capture.ListImages(args[1])
		if err != nil {
			return err
		}
		if len(images) == 0 {
			return fmt.Errorf("no images in %s", args[1])
		}

		bar := progressbar.NewOptions(len(images),
			progressbar.OptionSetDescription("Comparing"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)

		var rows []batchRow
		for start := 0; start < len(images); start += batchChunk {
			select {
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			default:
			}

			chunk := images[start:min(start+batchChunk, len(images))]
			rows = append(rows, scoreImages(session, ref, chunk)...)
			bar.Add(len(chunk))
		}
		bar.Finish()

		printBatch(cmd.OutOrStdout(), rows, batchOpts.MinScore)
		return nil
	},
}

func init() {
	batchCmd.Flags().Float64Var(&batchOpts.MinScore, "min-score", 0.75, "score below which an image is flagged")
	rootCmd.AddCommand(batchCmd)
}

// batchChunk is how many decoded images are held and detected at once.
const batchChunk = 8

// batchRow is the outcome for one image.
type batchRow struct {
	Path      string
	Score     float64
	Evaluated int
	Status    string
	Err       error
}

// scoreImages decodes paths, detects them as one batch and compares each
// pose with ref. Rows keep the order of paths.
func scoreImages(session *app.Session, ref pose.Pose, paths []string) []batchRow {
	rows := make([]batchRow, len(paths))
	frames := make([]*gocv.Mat, 0, len(paths))
	index := make([]int, 0, len(paths))

	for i, path := range paths {
		rows[i].Path = path
		frame, err := capture.LoadImage(path)
		if err != nil {
			rows[i].Err = err
			continue
		}
		frames = append(frames, frame)
		index = append(index, i)
	}
	defer func() {
		for _, f := range frames {
			f.Close()
		}
	}()
	if len(frames) == 0 {
		return rows
	}

	poses, err := session.DetectFrames(frames)
	if err != nil {
		for _, i := range index {
			rows[i].Err = err
		}
		return rows
	}

	for j, live := range poses {
		row := &rows[index[j]]
		if !live.Detected() {
			row.Err = fmt.Errorf("%s: %w", row.Path, app.ErrNoPerson)
			continue
		}
		c, err := comparePoses(session, ref, live)
		if err != nil {
			row.Err = err
			continue
		}
		row.Score = c.Result.Score
		row.Evaluated = c.Result.Evaluated()
		row.Status = c.Feedback.Status
	}
	return rows
}

func printBatch(out io.Writer, rows []batchRow, minScore float64) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "IMAGE\tSCORE\tJOINTS\tSTATUS")
	fmt.Fprintln(w, "-----\t-----\t------\t------")

	var scores []float64
	flagged, failed := 0, 0
	for _, r := range rows {
		name := filepath.Base(r.Path)
		if r.Err != nil {
			failed++
			reason := r.Err.Error()
			if errors.Is(r.Err, app.ErrNoPerson) {
				reason = "no person detected"
			}
			fmt.Fprintf(w, "%s\t-\t-\t%s\n", name, reason)
			continue
		}

		scores = append(scores, r.Score)
		mark := ""
		if r.Score < minScore {
			flagged++
			mark = " !"
		}
		fmt.Fprintf(w, "%s\t%.0f%%%s\t%d\t%s\n", name, r.Score*100, mark, r.Evaluated, r.Status)
	}
	w.Flush()

	fmt.Fprintf(out, "\n%d images, %d failed, %d below %.0f%%\n", len(rows), failed, flagged, minScore*100)
	if len(scores) > 0 {
		mean, std := stat.MeanStdDev(scores, nil)
		if len(scores) == 1 {
			std = 0
		}
		fmt.Fprintf(out, "Mean score: %.1f%% (sd %.1f)\n", mean*100, std*100)
	}
}
