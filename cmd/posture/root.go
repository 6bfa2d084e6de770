package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZDP-Q/PostureCorrection/internal/app"
	"github.com/ZDP-Q/PostureCorrection/internal/bootstrap"
	"github.com/ZDP-Q/PostureCorrection/internal/component"
	"github.com/ZDP-Q/PostureCorrection/internal/config"
	"github.com/ZDP-Q/PostureCorrection/internal/plugin"
	"github.com/ZDP-Q/PostureCorrection/internal/store"
)

// Version is the application version.
const Version = "0.1.0"

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	ConfigPath string
	DataDir    string
	Detector   string
	Analyzer   string
}

var rootOpts rootOptions

// containerKey carries the component container in a command's context.
type containerKey struct{}

// withContainer stores c in the context of cmd and its RunE.
func withContainer(cmd *cobra.Command, c *component.Container) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, containerKey{}, c))
}

// containerFrom returns the container built by the root command, or nil
// outside a command run.
func containerFrom(cmd *cobra.Command) *component.Container {
	if ctx := cmd.Context(); ctx != nil {
		if c, ok := ctx.Value(containerKey{}).(*component.Container); ok {
			return c
		}
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:           "posture",
	Short:         "Pose comparison against reference poses",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The config component reads its file from the environment when
		// it is first resolved.
		if rootOpts.ConfigPath != "" {
			if err := os.Setenv("POSTURE_CONFIG", rootOpts.ConfigPath); err != nil {
				return err
			}
		}
		if rootOpts.DataDir != "" {
			if err := os.Setenv("POSTURE_DATA_DIR", rootOpts.DataDir); err != nil {
				return err
			}
		}

		c, err := bootstrap.New()
		if err != nil {
			return err
		}
		withContainer(cmd, c)
		if _, err := config.Resolve(c); err != nil {
			return err
		}

		return applySelections(c)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if c := containerFrom(cmd); c != nil {
			c.Close()
		}
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&rootOpts.ConfigPath, "config", "c", "", "JSON config file (overrides POSTURE_CONFIG)")
	flags.StringVar(&rootOpts.DataDir, "data-dir", "", "directory holding the database and plugins (default ~/.posture)")
	flags.StringVar(&rootOpts.Detector, "detector", "", "detector implementation (see 'posture components')")
	flags.StringVar(&rootOpts.Analyzer, "analyzer", "", "analyzer implementation (see 'posture components')")
}

// applySelections makes the --detector and --analyzer flags take effect.
// It runs again after a session restores saved selections so the flags
// win over them.
func applySelections(c *component.Container) error {
	if rootOpts.Detector != "" {
		if err := c.Select(component.CategoryDetector, rootOpts.Detector); err != nil {
			return err
		}
	}
	if rootOpts.Analyzer != "" {
		if err := c.Select(component.CategoryAnalyzer, rootOpts.Analyzer); err != nil {
			return err
		}
	}
	return nil
}

// settings returns the resolved configuration.
func settings(c *component.Container) config.Settings {
	if c == nil {
		return config.Defaults()
	}
	cfg, err := config.Resolve(c)
	if err != nil {
		return config.Defaults()
	}
	return cfg.Snapshot()
}

// openStore opens the database in the configured data directory.
func openStore(c *component.Container) (*store.Store, error) {
	dataDir := settings(c).Server.DataDir
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return store.New(filepath.Join(dataDir, "posture.db"))
}

// sessionOptions controls what newSession wires in.
type sessionOptions struct {
	Store   bool
	Plugins bool
}

// newSession builds a session over the container of cmd and restores
// what the store remembers. The returned cleanup closes everything
// newSession opened.
func newSession(cmd *cobra.Command, opts sessionOptions) (*app.Session, func(), error) {
	container := containerFrom(cmd)
	if container == nil {
		return nil, nil, fmt.Errorf("%s: no component container", cmd.Name())
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	sessionOpts := app.Options{Container: container}

	if opts.Store {
		st, err := openStore(container)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { st.Close() })
		sessionOpts.Store = st
	}

	if alerts := settings(container).Alerts; opts.Plugins && alerts.Enabled {
		manager := plugin.NewManager(alerts.PluginDir)
		if err := manager.Discover(); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("discover plugins: %w", err)
		}
		sessionOpts.Plugins = manager
	}

	session, err := app.New(sessionOpts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, session.Close)

	if err := session.Restore(); err != nil {
		cleanup()
		return nil, nil, err
	}
	if err := applySelections(container); err != nil {
		cleanup()
		return nil, nil, err
	}
	if rootOpts.Analyzer != "" {
		if err := session.LoadReferences(); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return session, cleanup, nil
}
