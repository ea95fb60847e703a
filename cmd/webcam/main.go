package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-facecap/images"
	"github.com/nvr-ai/go-facecap/inference"
	"github.com/nvr-ai/go-facecap/inference/detectors"
	"github.com/nvr-ai/go-facecap/inference/providers"
	"github.com/nvr-ai/go-facecap/models/model"
)

func main() {
	modelPath := flag.String("model", "facecap-v2-n.onnx", "path to the facecap ONNX model")
	device := flag.Int("device", 0, "video capture device ID")
	confidence := flag.Float64("confidence", 0.5, "detection confidence threshold")
	flag.Parse()

	config := detectors.DefaultConfig()
	config.ModelPath = *modelPath
	config.ConfidenceThreshold = float32(*confidence)

	engine, err := inference.NewEngineBuilder().
		WithProvider(providers.Config{Backend: providers.CPUProviderBackend}).
		WithModel(model.NewModelArgs{Name: config.ModelName, Path: config.ModelPath}).
		WithDetector(config).
		Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer engine.Close()

	// open webcam
	webcam, err := gocv.OpenVideoCapture(*device)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer webcam.Close()

	// open display window
	window := gocv.NewWindow("Face Capture")
	defer window.Close()

	// prepare image matrix
	img := gocv.NewMat()
	defer img.Close()

	// color for the rect when faces detected
	green := color.RGBA{0, 255, 0, 0}

	// FPS tracking variables
	fps := 0.0
	frameCount := 0
	lastTime := time.Now()

	ctx := context.Background()

	fmt.Printf("engine: %s | start reading camera device: %v\n", engine.Type(), *device)
	for {
		if ok := webcam.Read(&img); !ok {
			fmt.Printf("cannot read device %v\n", *device)
			return
		}
		if img.Empty() {
			continue
		}

		// Update FPS calculation
		frameCount++
		currentTime := time.Now()
		elapsed := currentTime.Sub(lastTime).Seconds()

		// Calculate FPS every second
		if elapsed >= 1.0 {
			fps = float64(frameCount) / elapsed
			frameCount = 0
			lastTime = currentTime
		}

		// detect faces
		frame, err := images.MatToImage(img)
		if err != nil {
			fmt.Println(err)
			continue
		}
		faces, err := engine.Predict(ctx, frame)
		if err != nil {
			fmt.Println(err)
			continue
		}
		fmt.Printf("found %d faces | FPS: %.2f\n", len(faces), fps)

		// draw a rectangle around each face with its capture quality
		for _, face := range faces {
			rect := face.Box.ToImageRect()
			gocv.Rectangle(&img, rect, green, 3)
			label := fmt.Sprintf("q%.2f", face.Quality)
			gocv.PutText(&img, label, image.Pt(rect.Min.X, rect.Min.Y-6),
				gocv.FontHersheyPlain, 1.2, green, 2)
		}

		// show the image in the window, and wait 1 millisecond
		window.IMShow(img)
		window.WaitKey(1)
	}
}
