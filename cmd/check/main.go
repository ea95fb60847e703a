// Command check validates a facecap ONNX model file against the head's
// expected tensor contract, and optionally runs a smoke inference.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nvr-ai/go-facecap/inference/providers"
	"github.com/nvr-ai/go-facecap/models"
	"github.com/nvr-ai/go-facecap/models/facecap"
	"github.com/nvr-ai/go-facecap/models/model"
)

func main() {
	size := flag.Int("size", 640, "network input size (pixels, square)")
	run := flag.Bool("run", false, "run one zero-input inference as a smoke test")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: check [-size N] [-run] <model_path>")
		os.Exit(1)
	}
	modelPath := flag.Arg(0)

	info, err := os.Stat(modelPath)
	if os.IsNotExist(err) {
		log.Fatalf("Model file does not exist: %s", modelPath)
	}
	if err != nil {
		log.Fatalf("Cannot stat model file: %v", err)
	}

	fmt.Printf("🚀 Checking facecap ONNX model: %s\n", modelPath)
	fmt.Printf("📁 File size: %.2f MB\n", float64(info.Size())/(1024*1024))

	faceModel, err := models.NewModel(model.NewModelArgs{
		Name: model.ModelNameFacecapV2N,
		Path: modelPath,
	})
	if err != nil {
		log.Fatalf("Failed to build model: %v", err)
	}
	hm, ok := faceModel.(interface{ Head() *facecap.Head })
	if !ok {
		log.Fatalf("Model %s does not expose an anchor head", faceModel.Options().Name)
	}
	head := hm.Head()
	layout := head.Layout()

	opts := faceModel.Options()
	fmt.Printf("🧩 Model: %s (family %s)\n", opts.Name, opts.Family)
	fmt.Printf("   Input node:  %s  (1, 3, %d, %d)\n", opts.Inputs[0], *size, *size)
	for i, stride := range head.Strides() {
		fmt.Printf("   Output node: %s  (1, %d, %d, %d)  stride %d\n",
			opts.Outputs[i], layout.TotalChannels(), *size/stride, *size/stride, stride)
	}

	if err := providers.InitializeRuntime(); err != nil {
		fmt.Printf("⚠️  Could not initialize ONNX Runtime: %v\n", err)
		fmt.Println("This is expected if the ONNX Runtime shared library is not installed.")
		fmt.Println("The model file itself appears to be accessible.")
		os.Exit(0)
	}
	fmt.Println("✅ ONNX Runtime environment initialized successfully")

	if !*run {
		fmt.Println("🎉 Basic validation passed!")
		return
	}

	provider, err := providers.NewBackendProvider(providers.CPUProviderBackend)
	if err != nil {
		log.Fatalf("Failed to create CPU provider: %v", err)
	}

	outputShapes := make([][]int64, 0, len(head.Strides()))
	for _, stride := range head.Strides() {
		outputShapes = append(outputShapes, []int64{
			1, int64(layout.TotalChannels()), int64(*size / stride), int64(*size / stride),
		})
	}

	start := time.Now()
	session, err := providers.NewSession(provider, providers.NewSessionArgs{
		ModelPath:    modelPath,
		InputName:    opts.Inputs[0],
		OutputNames:  opts.Outputs,
		InputShape:   []int64{1, 3, int64(*size), int64(*size)},
		OutputShapes: outputShapes,
	})
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer session.Close()
	fmt.Printf("✅ Session created in %v\n", time.Since(start).Round(time.Millisecond))

	start = time.Now()
	if err := session.Run(); err != nil {
		log.Fatalf("Inference failed: %v", err)
	}
	fmt.Printf("✅ Smoke inference completed in %v\n", time.Since(start).Round(time.Millisecond))

	for i, out := range session.OutputTensors() {
		fmt.Printf("   Output %d shape: %v\n", i, out.Shape())
	}
	fmt.Println("🎉 Model is runnable!")
}
