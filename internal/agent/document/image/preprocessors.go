package image

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Preprocessor transforms an image before OCR.
type Preprocessor interface {
	Process(img image.Image) (image.Image, error)
}

// Pipeline decodes once, applies each step and re-encodes as PNG.
// Input that needs no change is passed through untouched.
type Pipeline struct {
	steps []Preprocessor
}

func NewPipeline(steps ...Preprocessor) *Pipeline {
	return &Pipeline{steps: steps}
}

func (p *Pipeline) Run(data []byte) ([]byte, error) {
	if len(p.steps) == 0 {
		return data, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	out := img
	for _, step := range p.steps {
		if out, err = step.Process(out); err != nil {
			return nil, err
		}
	}
	if out == img {
		return data, nil
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// 缩放处理器
type DownscaleProcessor struct {
	maxSide int
}

// NewDownscaleProcessor keeps both sides within maxSide pixels; 0 disables it.
func NewDownscaleProcessor(maxSide int) *DownscaleProcessor {
	return &DownscaleProcessor{maxSide: maxSide}
}

func (p *DownscaleProcessor) Process(img image.Image) (image.Image, error) {
	if p.maxSide <= 0 {
		return img, nil
	}
	b := img.Bounds()
	if b.Dx() <= p.maxSide && b.Dy() <= p.maxSide {
		return img, nil
	}
	return imaging.Fit(img, p.maxSide, p.maxSide, imaging.Lanczos), nil
}

// 灰度处理器
type GrayscaleProcessor struct{}

func NewGrayscaleProcessor() *GrayscaleProcessor {
	return &GrayscaleProcessor{}
}

func (p *GrayscaleProcessor) Process(img image.Image) (image.Image, error) {
	return imaging.Grayscale(img), nil
}
