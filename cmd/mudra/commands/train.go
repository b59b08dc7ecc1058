package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"
)

func trainCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Build a centroid model from recorded samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = cfg.ModelPath
			}

			labels, err := cfg.LabelTable()
			if err != nil {
				return err
			}

			st, err := store.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("initialize store: %w", err)
			}
			defer st.Close()

			recorded, err := st.Samples().List("")
			if err != nil {
				return err
			}
			if len(recorded) == 0 {
				return fmt.Errorf("no samples recorded in %s", st.Path())
			}

			samples := make([]gesture.Sample, 0, len(recorded))
			for _, s := range recorded {
				samples = append(samples, gesture.Sample{Label: s.Label, Features: gesture.FeatureVector(s.Features)})
			}

			bar := pb.StartNew(len(samples))
			trainer := gesture.NewTrainer(labels)
			trainer.OnSample = func() { bar.Increment() }
			centroids, err := trainer.TrainCentroids(samples)
			bar.Finish()
			if err != nil {
				return err
			}

			for i, c := range centroids {
				if c == nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: no samples for %s\n", labels.Lookup(i+1))
				}
			}

			model, err := classifier.NewCentroidModel(gesture.FeatureLength, centroids)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
				return err
			}
			if err := classifier.Save(out, model); err != nil {
				return fmt.Errorf("save model: %w", err)
			}

			_, info, err := classifier.Load(out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s model to %s (%d samples, digest %s)\n", info.Kind, out, len(samples), info.Digest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "model output path (defaults to the configured model path)")
	return cmd
}
