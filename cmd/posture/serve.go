package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZDP-Q/PostureCorrection/internal/component"
	"github.com/ZDP-Q/PostureCorrection/internal/config"
	"github.com/ZDP-Q/PostureCorrection/internal/server"
	"github.com/ZDP-Q/PostureCorrection/internal/tray"
)

type serveOptions struct {
	Addr     string
	Static   string
	Input    string
	NoCamera bool
	NoTray   bool
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the live pipeline with the web UI and API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, serveOpts)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveOpts.Addr, "addr", "a", "", "listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&serveOpts.Static, "static", "", "directory with the web UI")
	serveCmd.Flags().StringVarP(&serveOpts.Input, "input", "i", "", "video file to analyze instead of the camera")
	serveCmd.Flags().BoolVar(&serveOpts.NoCamera, "no-camera", false, "serve the API without opening the camera")
	serveCmd.Flags().BoolVar(&serveOpts.NoTray, "no-tray", false, "do not show the system tray icon")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	c := containerFrom(cmd)
	if c == nil {
		return errors.New("serve: no component container")
	}
	if opts.Input != "" {
		if err := setInput(c, opts.Input); err != nil {
			return err
		}
	}
	cfg := settings(c)

	session, cleanup, err := newSession(cmd, sessionOptions{Store: true, Plugins: true})
	if err != nil {
		return err
	}
	defer cleanup()

	if !opts.NoCamera {
		if err := session.Start(); err != nil {
			return fmt.Errorf("start camera: %w", err)
		}
	}

	addr := opts.Addr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	staticDir := opts.Static
	if staticDir == "" {
		staticDir = cfg.Server.StaticDir
	}
	if staticDir == "" {
		staticDir = findWebDir(cfg.Server.DataDir)
	}
	if staticDir != "" {
		log.Printf("Serving static files from: %s", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir:  staticDir,
		ConfigPath: rootOpts.ConfigPath,
		Session:    session,
	}).Handler(addr)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var t *tray.Tray
	if !opts.NoTray {
		t = tray.New()
		t.OnToggle(session.SetEnabled)
		t.OnSettings(func() { openBrowser(browserURL(addr)) })
		t.OnQuit(cancel)

		frames, unsubscribe := session.Subscribe()
		defer unsubscribe()
		go t.Follow(frames)

		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// Blocks until quit from the menu or the context ends.
		t.Run()
		cancel()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	log.Println("Shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

// findWebDir searches for the web directory in common locations.
// It checks "web", "../web" and "../../web" relative to the working
// directory, then dataDir/web.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web"}
	if dataDir != "" {
		candidates = append(candidates, filepath.Join(dataDir, "web"))
	}

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

// setInput points the camera settings at a video file.
func setInput(c *component.Container, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	cfg, err := config.Resolve(c)
	if err != nil {
		return err
	}
	return cfg.Set("camera.path", path)
}

// browserURL turns a listen address into a URL a browser can open.
func browserURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}
