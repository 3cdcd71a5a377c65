package inference

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Layout is the channel ordering a model expects.
type Layout string

const (
	NCHW Layout = "NCHW"
	NHWC Layout = "NHWC"
)

// Fit controls how a frame is brought to the model's input size.
type Fit int

const (
	// FitStretch resizes without preserving aspect ratio.
	FitStretch Fit = iota
	// FitCenterCrop scales the short side then crops the centre.
	FitCenterCrop
	// FitPad letterboxes onto a square canvas of the pad colour.
	FitPad
)

// Preprocess describes one model's input conventions.
type Preprocess struct {
	Width    int
	Height   int
	Layout   Layout
	Fit      Fit
	PadColor color.Color
	// Raw keeps 0..255 channel values instead of scaling to 0..1.
	Raw  bool
	BGR  bool
	Mean [3]float32
	Std  [3]float32
}

// LoadImage decodes an image file, applying EXIF orientation.
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// ToTensor converts img into a [1,C,H,W] or [1,H,W,C] tensor.
func ToTensor(img image.Image, p Preprocess) Tensor {
	w, h := p.Width, p.Height
	var fitted *image.NRGBA
	switch p.Fit {
	case FitCenterCrop:
		fitted = imaging.Fill(img, w, h, imaging.Center, imaging.CatmullRom)
	case FitPad:
		bg := p.PadColor
		if bg == nil {
			bg = color.White
		}
		scaled := imaging.Fit(img, w, h, imaging.CatmullRom)
		fitted = imaging.PasteCenter(imaging.New(w, h, bg), scaled)
	default:
		fitted = imaging.Resize(img, w, h, imaging.CatmullRom)
	}

	std := p.Std
	for i := range std {
		if std[i] == 0 {
			std[i] = 1
		}
	}

	n := w * h
	data := make([]float32, 3*n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := fitted.PixOffset(x, y)
			px := [3]float32{
				float32(fitted.Pix[off]),
				float32(fitted.Pix[off+1]),
				float32(fitted.Pix[off+2]),
			}
			if p.BGR {
				px[0], px[2] = px[2], px[0]
			}
			idx := y*w + x
			for c := 0; c < 3; c++ {
				v := px[c]
				if !p.Raw {
					v /= 255
				}
				v = (v - p.Mean[c]) / std[c]
				if p.Layout == NHWC {
					data[idx*3+c] = v
				} else {
					data[c*n+idx] = v
				}
			}
		}
	}

	shape := []int64{1, 3, int64(h), int64(w)}
	if p.Layout == NHWC {
		shape = []int64{1, int64(h), int64(w), 3}
	}
	return Tensor{Shape: shape, Data: data}
}
