package commands

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live stream and classification API",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Mudra - Hand Sign Classification")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := store.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("initialize store: %w", err)
			}
			defer st.Close()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			cam := capture.NewCamera(cfg.Camera)
			cam.SetFPS(cfg.StreamFPS)

			webDir := cfg.StaticDir
			if webDir == "" {
				webDir = findWebDir()
			}
			if webDir != "" {
				log.Printf("Serving static files from: %s", webDir)
			}

			srv := server.New(server.Config{
				StaticDir: webDir,
				App:       a,
				Store:     st,
				Device:    capture.NewDevice(cam),
			})

			log.Printf("Starting server on %s (camera %q)", cfg.Addr, cfg.Camera)
			return srv.ListenAndServe(ctx, cfg.Addr)
		},
	}

	f := cmd.Flags()
	f.String("addr", "", "listen address (MUDRA_ADDR)")
	f.String("camera", "", "camera index, video file or stream URL (MUDRA_CAMERA)")
	f.String("static", "", "static web directory (MUDRA_STATIC_DIR)")
	f.Int("fps", 0, "stream frame rate (MUDRA_STREAM_FPS)")
	f.Duration("frame-timeout", 0, "per-frame processing budget (MUDRA_FRAME_TIMEOUT)")
	return cmd
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.mudra/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeWebDir := filepath.Join(config.DataDir(), "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
