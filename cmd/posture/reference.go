package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ZDP-Q/PostureCorrection/internal/app"
	"github.com/ZDP-Q/PostureCorrection/internal/pose"
	"github.com/ZDP-Q/PostureCorrection/internal/store"
)

var referenceCmd = &cobra.Command{
	Use:     "reference",
	Aliases: []string{"ref"},
	Short:   "Manage stored reference poses",
}

var referenceSaveActivate bool

var referenceSaveCmd = &cobra.Command{
	Use:   "save NAME FILE...",
	Short: "Store a reference pose averaged from one or more images or pose files",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := newSession(cmd, sessionOptions{Store: true})
		if err != nil {
			return err
		}
		defer cleanup()

		name, files := args[0], args[1:]
		bar := progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Detecting"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)

		var samples []pose.Pose
		for _, f := range files {
			p, err := loadPose(session, f)
			bar.Add(1)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping %s: %v\n", filepath.Base(f), err)
				continue
			}
			samples = append(samples, p)
		}
		bar.Finish()

		if len(samples) == 0 {
			return app.ErrNoPerson
		}

		ref, err := session.SaveTrainedReference(name, strings.Join(files, ","), samples)
		if err != nil {
			return err
		}
		fmt.Printf("Saved reference %q (%s) from %d sample(s)\n", ref.Name, ref.ID, ref.Samples)

		if referenceSaveActivate {
			if err := session.ActivateReference(ref.ID); err != nil {
				return err
			}
			fmt.Println("Reference is now active")
		}
		return nil
	},
}

var referenceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reference poses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := newSession(cmd, sessionOptions{Store: true})
		if err != nil {
			return err
		}
		defer cleanup()

		refs, err := session.Store().References().List()
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			fmt.Println("No references stored.")
			return nil
		}

		active := session.ReferenceID()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSAMPLES\tACTIVE\tCREATED")
		fmt.Fprintln(w, "--\t----\t-------\t------\t-------")
		for _, r := range refs {
			mark := ""
			if r.ID == active {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.ID, r.Name, r.Samples, mark, r.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var referenceDeleteCmd = &cobra.Command{
	Use:   "delete ID|NAME",
	Short: "Delete a stored reference pose",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := newSession(cmd, sessionOptions{Store: true})
		if err != nil {
			return err
		}
		defer cleanup()

		ref, err := findReference(session.Store(), args[0])
		if err != nil {
			return err
		}
		if err := session.DeleteReference(ref.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted reference %q\n", ref.Name)
		return nil
	},
}

var referenceActivateCmd = &cobra.Command{
	Use:   "activate ID|NAME",
	Short: "Make a stored reference the one live frames are compared against",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := newSession(cmd, sessionOptions{Store: true})
		if err != nil {
			return err
		}
		defer cleanup()

		ref, err := findReference(session.Store(), args[0])
		if err != nil {
			return err
		}
		if err := session.ActivateReference(ref.ID); err != nil {
			return err
		}
		fmt.Printf("Activated reference %q\n", ref.Name)
		return nil
	},
}

// findReference looks key up as an ID first and then as a name.
func findReference(st *store.Store, key string) (*store.Reference, error) {
	ref, err := st.References().GetByID(key)
	if err == nil {
		return ref, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	ref, err = st.References().GetByName(key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("reference %q: %w", key, store.ErrNotFound)
	}
	return ref, err
}

func init() {
	referenceSaveCmd.Flags().BoolVar(&referenceSaveActivate, "activate", false, "make the new reference active")
	referenceCmd.AddCommand(referenceSaveCmd, referenceListCmd, referenceDeleteCmd, referenceActivateCmd)
	rootCmd.AddCommand(referenceCmd)
}
