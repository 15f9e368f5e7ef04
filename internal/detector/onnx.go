package detector

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"

	"github.com/keagan/autoreframe/internal/geometry"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

// Inner-lip landmarks in the 468-point face mesh.
const (
	upperLipLandmark = 13
	lowerLipLandmark = 14
	meshLandmarks    = 468
)

// ONNXConfig points at the face and landmark models.
type ONNXConfig struct {
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string

	// FaceModel is an UltraFace-style detector (input 1x3xHxW, outputs
	// scores [1,N,2] and boxes [1,N,4] in normalized corner form).
	FaceModel       string
	FaceInputWidth  int
	FaceInputHeight int
	FaceInputName   string
	ScoresName      string
	BoxesName       string

	// LandmarkModel is optional; without it mouth openness stays 0.
	LandmarkModel     string
	LandmarkInputSize int
	LandmarkInputName string
	LandmarkName      string

	ConfidenceThreshold float64
	NMSThreshold        float64
	MaxFaces            int
}

// DefaultONNXConfig returns settings for the 320x240 UltraFace release and a
// 192x192 face mesh export.
func DefaultONNXConfig() ONNXConfig {
	return ONNXConfig{
		FaceModel:           "./models/version-RFB-320.onnx",
		FaceInputWidth:      320,
		FaceInputHeight:     240,
		FaceInputName:       "input",
		ScoresName:          "scores",
		BoxesName:           "boxes",
		LandmarkInputSize:   192,
		LandmarkInputName:   "input",
		LandmarkName:        "landmarks",
		ConfidenceThreshold: 0.7,
		NMSThreshold:        0.3,
		MaxFaces:            6,
	}
}

// ONNXDetector runs face detection and optional mouth landmarks with onnxruntime.
type ONNXDetector struct {
	logger   zerolog.Logger
	config   ONNXConfig
	face     *ort.DynamicAdvancedSession
	landmark *ort.DynamicAdvancedSession
	anchors  int
}

// NewONNXDetector loads the configured models.
func NewONNXDetector(logger zerolog.Logger, cfg ONNXConfig) (*ONNXDetector, error) {
	if _, err := os.Stat(cfg.FaceModel); err != nil {
		return nil, fmt.Errorf("face model not found: %s: %w", cfg.FaceModel, err)
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	face, err := ort.NewDynamicAdvancedSession(
		cfg.FaceModel,
		[]string{cfg.FaceInputName},
		[]string{cfg.ScoresName, cfg.BoxesName},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create face session: %w", err)
	}

	d := &ONNXDetector{
		logger:  logger.With().Str("component", "onnx-detector").Logger(),
		config:  cfg,
		face:    face,
		anchors: ultraFaceAnchors(cfg.FaceInputWidth, cfg.FaceInputHeight),
	}

	if cfg.LandmarkModel != "" {
		if _, err := os.Stat(cfg.LandmarkModel); err != nil {
			d.logger.Warn().Err(err).Str("model", cfg.LandmarkModel).Msg("landmark model missing, mouth openness disabled")
		} else {
			lm, err := ort.NewDynamicAdvancedSession(
				cfg.LandmarkModel,
				[]string{cfg.LandmarkInputName},
				[]string{cfg.LandmarkName},
				nil,
			)
			if err != nil {
				face.Destroy()
				return nil, fmt.Errorf("failed to create landmark session: %w", err)
			}
			d.landmark = lm
		}
	}

	d.logger.Info().
		Str("face_model", cfg.FaceModel).
		Str("landmark_model", cfg.LandmarkModel).
		Int("anchors", d.anchors).
		Msg("face models loaded")

	return d, nil
}

// Detect returns faces in absolute frame pixels.
func (d *ONNXDetector) Detect(ctx context.Context, frame *image.RGBA) ([]Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := frame.Bounds()
	w, h := d.config.FaceInputWidth, d.config.FaceInputHeight

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(h), int64(w)),
		planarPixels(resize.Resize(uint(w), uint(h), frame, resize.Bilinear), 127, 128))
	if err != nil {
		return nil, fmt.Errorf("failed to create face input tensor: %w", err)
	}
	defer input.Destroy()

	scores, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(d.anchors), 2))
	if err != nil {
		return nil, fmt.Errorf("failed to create scores tensor: %w", err)
	}
	defer scores.Destroy()

	boxes, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(d.anchors), 4))
	if err != nil {
		return nil, fmt.Errorf("failed to create boxes tensor: %w", err)
	}
	defer boxes.Destroy()

	if err := d.face.Run([]ort.Value{input}, []ort.Value{scores, boxes}); err != nil {
		return nil, fmt.Errorf("face inference failed: %w", err)
	}

	fw, fh := float64(bounds.Dx()), float64(bounds.Dy())
	sd, bd := scores.GetData(), boxes.GetData()

	var candidates []Face
	for i := 0; i < d.anchors; i++ {
		conf := float64(sd[i*2+1])
		if conf < d.config.ConfidenceThreshold {
			continue
		}
		x0 := geometry.Clamp(float64(bd[i*4])*fw, 0, fw)
		y0 := geometry.Clamp(float64(bd[i*4+1])*fh, 0, fh)
		x1 := geometry.Clamp(float64(bd[i*4+2])*fw, 0, fw)
		y1 := geometry.Clamp(float64(bd[i*4+3])*fh, 0, fh)
		if x1 <= x0 || y1 <= y0 {
			continue
		}
		candidates = append(candidates, Face{
			Box: geometry.Rect{
				X:      x0 + float64(bounds.Min.X),
				Y:      y0 + float64(bounds.Min.Y),
				Width:  x1 - x0,
				Height: y1 - y0,
			},
			Confidence: conf,
		})
	}

	faces := suppress(candidates, d.config.NMSThreshold)
	if d.config.MaxFaces > 0 && len(faces) > d.config.MaxFaces {
		faces = faces[:d.config.MaxFaces]
	}

	if d.landmark != nil {
		for i := range faces {
			openness, err := d.mouthOpenness(frame, faces[i].Box)
			if err != nil {
				d.logger.Debug().Err(err).Int("face", i).Msg("landmark inference failed")
				continue
			}
			faces[i].MouthOpenness = openness
		}
	}

	return faces, nil
}

// mouthOpenness measures the inner-lip gap relative to the face crop height.
func (d *ONNXDetector) mouthOpenness(frame *image.RGBA, box geometry.Rect) (float64, error) {
	rect := image.Rect(
		int(box.X), int(box.Y),
		int(math.Ceil(box.X+box.Width)), int(math.Ceil(box.Y+box.Height)),
	).Intersect(frame.Bounds())
	if rect.Empty() {
		return 0, fmt.Errorf("face box outside frame")
	}

	size := d.config.LandmarkInputSize
	crop := frame.SubImage(rect)
	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)),
		planarPixels(resize.Resize(uint(size), uint(size), crop, resize.Bilinear), 0, 255))
	if err != nil {
		return 0, fmt.Errorf("failed to create landmark input tensor: %w", err)
	}
	defer input.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, meshLandmarks*3))
	if err != nil {
		return 0, fmt.Errorf("failed to create landmark tensor: %w", err)
	}
	defer out.Destroy()

	if err := d.landmark.Run([]ort.Value{input}, []ort.Value{out}); err != nil {
		return 0, fmt.Errorf("landmark inference failed: %w", err)
	}

	pts := out.GetData()
	upper := geometry.Point{X: float64(pts[upperLipLandmark*3]), Y: float64(pts[upperLipLandmark*3+1])}
	lower := geometry.Point{X: float64(pts[lowerLipLandmark*3]), Y: float64(pts[lowerLipLandmark*3+1])}

	return upper.Distance(lower) / float64(size), nil
}

// Close releases both sessions and the runtime environment.
func (d *ONNXDetector) Close() error {
	d.logger.Info().Msg("closing face models")
	if d.landmark != nil {
		if err := d.landmark.Destroy(); err != nil {
			return err
		}
	}
	if d.face != nil {
		if err := d.face.Destroy(); err != nil {
			return err
		}
	}
	return ort.DestroyEnvironment()
}

// planarPixels converts img to CHW float32 data normalized as (v-mean)/scale.
func planarPixels(img image.Image, mean, scale float32) []float32 {
	b := img.Bounds()
	plane := b.Dx() * b.Dy()
	data := make([]float32, 3*plane)

	idx := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			data[idx] = (float32(r>>8) - mean) / scale
			data[plane+idx] = (float32(g>>8) - mean) / scale
			data[2*plane+idx] = (float32(bl>>8) - mean) / scale
			idx++
		}
	}
	return data
}

// ultraFaceAnchors counts the prior boxes UltraFace generates for an input size.
func ultraFaceAnchors(width, height int) int {
	strides := []int{8, 16, 32, 64}
	perLevel := []int{3, 2, 2, 3}

	total := 0
	for i, s := range strides {
		fw := int(math.Ceil(float64(width) / float64(s)))
		fh := int(math.Ceil(float64(height) / float64(s)))
		total += fw * fh * perLevel[i]
	}
	return total
}
