package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/openfluke/catnet/dataset"
	"github.com/openfluke/catnet/gpu"
	"github.com/openfluke/catnet/nn"
)

var (
	predictModel   string
	predictModelID string
	predictData    string
	predictPrefix  string
	predictSize    int
	predictGPU     bool
	predictLabel   int
)

// predictCmd classifies single images or a whole labelled split
var predictCmd = &cobra.Command{
	Use:   "predict [image...]",
	Short: "Classify images with a trained model",
	Long: `Classifies each image argument, or with --data a whole labelled split,
for which the accuracy is reported.

Example:
  catnet predict --model catnet_model.json my_cat.jpg
  catnet predict --model catnet_model.json --data datasets/catvnoncat.npz --prefix test`,
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVar(&predictModel, "model", "catnet_model.json", "trained model bundle")
	f.StringVar(&predictModelID, "model-id", "", "model id inside the bundle (default: first)")
	f.StringVar(&predictData, "data", "", "labelled split to evaluate (.npz, .npy or image directory)")
	f.StringVar(&predictPrefix, "prefix", "test", "array prefix inside an .npz split")
	f.IntVar(&predictSize, "image-size", dataset.DefaultImageSize, "resize images to NxN")
	f.BoolVar(&predictGPU, "gpu", false, "run the forward pass on the GPU when one is available")
	f.IntVar(&predictLabel, "label", -1, "true label of the image arguments, printed alongside")
}

// predictor is satisfied by both *nn.Network and *gpu.Predictor.
type predictor interface {
	Predict(X mat.Matrix) (probs, labels *mat.Dense, err error)
}

func openPredictor(network *nn.Network) (predictor, func()) {
	if !predictGPU {
		return network, func() {}
	}
	p, err := gpu.NewPredictor(network, gpu.DefaultBatchSize)
	if err != nil {
		if errors.Is(err, gpu.ErrNoGPU) {
			logger.Warn("no GPU available, using CPU", zap.Error(err))
		} else {
			logger.Warn("GPU setup failed, using CPU", zap.Error(err))
		}
		return network, func() {}
	}
	return p, p.Close
}

func runPredict(cmd *cobra.Command, args []string) error {
	if predictData == "" && len(args) == 0 {
		return fmt.Errorf("give image paths or --data")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	names := &dataset.Set{Classes: dataset.DefaultClasses}
	applyClasses(cfg.Data.Classes, names)

	network, err := nn.LoadModel(predictModel, predictModelID)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	p, closeFn := openPredictor(network)
	defer closeFn()
	out := cmd.OutOrStdout()

	if predictData != "" {
		set, err := dataset.Load(dataset.Source{Path: predictData, Prefix: predictPrefix, Size: predictSize})
		if err != nil {
			return err
		}
		applyClasses(cfg.Data.Classes, set)
		_, labels, err := p.Predict(set.X)
		if err != nil {
			return err
		}
		acc, err := nn.Accuracy(labels, set.Y)
		if err != nil {
			return err
		}
		wrong, err := nn.Mislabeled(labels, set.Y)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Accuracy: %.4f (%d/%d mislabeled)\n", acc, len(wrong), set.Len())
		for _, j := range wrong {
			fmt.Fprintf(out, "example %d: predicted %q, labelled %q\n",
				j, set.ClassName(int(labels.At(0, j))), set.ClassName(int(set.Y.At(0, j))))
		}
	}

	for _, path := range args {
		X, _, err := dataset.LoadImage(path, predictSize)
		if err != nil {
			return err
		}
		if r, _ := X.Dims(); r != network.Dims.Input {
			return fmt.Errorf("%s: %d features at size %d, model expects %d", path, r, predictSize, network.Dims.Input)
		}
		probs, labels, err := p.Predict(X)
		if err != nil {
			return err
		}
		label := int(labels.At(0, 0))
		fmt.Fprintf(out, "%s: y = %d (p = %.4f), the model predicts a %q picture.\n",
			path, label, probs.At(0, 0), names.ClassName(label))
		if predictLabel == 0 || predictLabel == 1 {
			fmt.Fprintf(out, "%s: labelled %q\n", path, names.ClassName(predictLabel))
		}
	}
	return nil
}
