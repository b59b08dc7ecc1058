// Package commands implements the mudra command line.
package commands

import (
	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/spf13/cobra"
)

var (
	envFiles []string
	cfg      config.Config
)

// Execute runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:          "mudra",
		Short:        "Live hand-sign classification service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(envFiles...)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd, &c); err != nil {
				return err
			}
			cfg = c
			return cfg.Validate()
		},
	}

	pf := root.PersistentFlags()
	pf.StringSliceVar(&envFiles, "env-file", nil, "env files to load (default .env)")
	pf.String("model", "", "model artifact path (MUDRA_MODEL_PATH)")
	pf.String("labels", "", "comma-separated label table (MUDRA_LABELS)")
	pf.String("db", "", "sqlite database path (MUDRA_DB_PATH)")
	pf.Int("max-hands", 0, "maximum hands per frame (MUDRA_MAX_HANDS)")
	pf.Int("pool", 0, "single-shot detector pool size (MUDRA_DETECTOR_POOL)")

	root.AddCommand(serveCmd(), classifyCmd(), trainCmd())
	return root.Execute()
}

// applyFlags overrides config values with flags set on the command line.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	fs := cmd.Flags()
	var err error

	str := func(name string, dst *string) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if err == nil && fs.Changed(name) {
			*dst, err = fs.GetInt(name)
		}
	}

	str("model", &c.ModelPath)
	str("labels", &c.Labels)
	str("db", &c.DBPath)
	num("max-hands", &c.MaxHands)
	num("pool", &c.DetectorPool)

	// serve-only flags
	str("addr", &c.Addr)
	str("camera", &c.Camera)
	str("static", &c.StaticDir)
	num("fps", &c.StreamFPS)
	if err == nil && fs.Changed("frame-timeout") {
		c.FrameTimeout, err = fs.GetDuration("frame-timeout")
	}

	return err
}

// newApp builds the application from the loaded config.
func newApp() (*app.App, error) {
	labels, err := cfg.LabelTable()
	if err != nil {
		return nil, err
	}
	return app.New(app.Config{
		ModelPath:    cfg.ModelPath,
		Labels:       labels,
		Detector:     cfg.DetectorConfig(),
		PoolSize:     cfg.DetectorPool,
		StreamFPS:    cfg.StreamFPS,
		FrameTimeout: cfg.FrameTimeout,
	}), nil
}
