package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/achene/infercast/internal/frame"
)

// TypeYOLOv5 is the registry name of the YOLOv5 detection model.
const TypeYOLOv5 = "yolov5"

// DefaultYOLOEndpoint is where the local inference service is expected
// to listen. Override with the INFERCAST_YOLO_ENDPOINT environment
// variable.
const DefaultYOLOEndpoint = "http://127.0.0.1:8571/detect"

// Detection is one object reported by the inference service.
// Coordinates are pixel positions in the submitted frame.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
}

type detectResponse struct {
	Detections []Detection `json:"detections"`
}

// YOLOv5 runs detection by posting JPEG-compressed frames to a local
// inference HTTP service and drawing the returned boxes onto the frame.
type YOLOv5 struct {
	endpoint string
	client   *http.Client
}

// NewYOLOv5 returns an unloaded YOLOv5 model talking to the default or
// environment-configured endpoint.
func NewYOLOv5() *YOLOv5 {
	endpoint := os.Getenv("INFERCAST_YOLO_ENDPOINT")
	if endpoint == "" {
		endpoint = DefaultYOLOEndpoint
	}
	return &YOLOv5{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Load verifies the weights file exists. The weights are consumed by
// the inference service, not this process, but a missing path is a
// configuration mistake worth failing fast on.
func (m *YOLOv5) Load(path string) error {
	if path == "" {
		return fmt.Errorf("yolov5: weights path required")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("yolov5: weights not accessible: %w", err)
	}
	return nil
}

// Name implements Model.
func (m *YOLOv5) Name() string {
	return TypeYOLOv5
}

// Run submits the frame for detection and draws the resulting boxes in
// place.
func (m *YOLOv5) Run(f *frame.Frame) error {
	if f == nil || f.Data == nil {
		return fmt.Errorf("yolov5: nil frame")
	}

	img, err := toImage(f)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return fmt.Errorf("yolov5: encoding frame: %w", err)
	}

	resp, err := m.client.Post(m.endpoint, "image/jpeg", &buf)
	if err != nil {
		return fmt.Errorf("yolov5: inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("yolov5: inference service returned %d: %s", resp.StatusCode, body)
	}

	var result detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("yolov5: decoding response: %w", err)
	}

	for _, d := range result.Detections {
		drawBox(f, d)
	}
	return nil
}

func toImage(f *frame.Frame) (image.Image, error) {
	switch f.Format {
	case frame.FormatRGB24:
		img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
		for y := 0; y < f.Height; y++ {
			src := y * f.Stride
			dst := y * img.Stride
			for x := 0; x < f.Width; x++ {
				img.Pix[dst+x*4] = f.Data[src+x*3]
				img.Pix[dst+x*4+1] = f.Data[src+x*3+1]
				img.Pix[dst+x*4+2] = f.Data[src+x*3+2]
				img.Pix[dst+x*4+3] = 0xFF
			}
		}
		return img, nil
	case frame.FormatGray8:
		img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
		for y := 0; y < f.Height; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+f.Width], f.Data[y*f.Stride:])
		}
		return img, nil
	default:
		return nil, fmt.Errorf("yolov5: unsupported frame format %q", f.Format)
	}
}

// drawBox outlines a detection rectangle directly in the frame buffer.
func drawBox(f *frame.Frame, d Detection) {
	x1, y1 := clamp(d.X1, 0, f.Width-1), clamp(d.Y1, 0, f.Height-1)
	x2, y2 := clamp(d.X2, 0, f.Width-1), clamp(d.Y2, 0, f.Height-1)
	if x2 <= x1 || y2 <= y1 {
		return
	}

	for x := x1; x <= x2; x++ {
		setPixel(f, x, y1)
		setPixel(f, x, y2)
	}
	for y := y1; y <= y2; y++ {
		setPixel(f, x1, y)
		setPixel(f, x2, y)
	}
}

func setPixel(f *frame.Frame, x, y int) {
	switch f.Format {
	case frame.FormatRGB24:
		i := y*f.Stride + x*3
		f.Data[i] = 0x00
		f.Data[i+1] = 0xFF
		f.Data[i+2] = 0x00
	case frame.FormatGray8:
		f.Data[y*f.Stride+x] = 0xFF
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
