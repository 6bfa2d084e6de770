package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZDP-Q/PostureCorrection/internal/component"
)

var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "List the registered implementations of every component",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := newSession(cmd, sessionOptions{Store: true})
		if err != nil {
			return err
		}
		defer cleanup()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tNAME\tACTIVE\tDESCRIPTION")
		fmt.Fprintln(w, "--------\t----\t------\t-----------")
		for _, c := range session.Components() {
			active := ""
			if c.Active {
				active = "*"
			}
			name := c.Name
			if c.Default {
				name += " (default)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Category, name, active, c.Description)
		}
		return w.Flush()
	},
}

var componentsSelectCmd = &cobra.Command{
	Use:   "select CATEGORY NAME",
	Short: "Choose the implementation used for a category and remember it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, err := component.ParseCategory(args[0])
		if err != nil {
			return err
		}

		session, cleanup, err := newSession(cmd, sessionOptions{Store: true})
		if err != nil {
			return err
		}
		defer cleanup()

		switch category {
		case component.CategoryDetector:
			err = session.SelectDetector(args[1])
		case component.CategoryAnalyzer:
			err = session.SelectAnalyzer(args[1])
		default:
			return fmt.Errorf("the %s implementation cannot be changed at runtime", category)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Selected %s %q\n", category, args[1])
		return nil
	},
}

func init() {
	componentsCmd.AddCommand(componentsSelectCmd)
	rootCmd.AddCommand(componentsCmd)
}
