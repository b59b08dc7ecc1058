package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ayusman/mudra/internal/app"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
)

func classifyCmd() *cobra.Command {
	var annotated string

	cmd := &cobra.Command{
		Use:   "classify <image>",
		Short: "Classify the hand sign in a single image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var pred *app.Prediction
			if annotated == "" {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				pred, err = a.Classify(cmd.Context(), data)
				if err != nil {
					return err
				}
			} else {
				pred, err = classifyAnnotated(cmd, a, args[0], annotated)
				if err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pred)
		},
	}

	cmd.Flags().StringVarP(&annotated, "out", "o", "", "write the annotated image to this path")
	return cmd
}

func classifyAnnotated(cmd *cobra.Command, a *app.App, in, out string) (*app.Prediction, error) {
	frame := gocv.IMRead(in, gocv.IMReadColor)
	if frame.Empty() {
		frame.Close()
		return nil, fmt.Errorf("%w: cannot read %s", app.ErrDecodeFailure, in)
	}
	defer frame.Close()

	res, err := a.ClassifyFrame(cmd.Context(), &frame)
	if err != nil {
		return nil, err
	}

	if !gocv.IMWrite(out, frame) {
		return nil, fmt.Errorf("write annotated image %s", out)
	}
	return app.Summarize(res), nil
}
