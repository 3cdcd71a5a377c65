package inference

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToTensorLayouts(t *testing.T) {
	img := imaging.New(8, 4, color.NRGBA{R: 255, G: 0, B: 51, A: 255})

	nchw := ToTensor(img, Preprocess{Width: 2, Height: 2, Layout: NCHW})
	assert.Equal(t, []int64{1, 3, 2, 2}, nchw.Shape)
	require.Len(t, nchw.Data, 12)
	assert.InDelta(t, 1.0, nchw.Data[0], 1e-3)
	assert.InDelta(t, 0.0, nchw.Data[4], 1e-3)
	assert.InDelta(t, 0.2, nchw.Data[8], 1e-3)

	nhwc := ToTensor(img, Preprocess{Width: 2, Height: 2, Layout: NHWC, Raw: true, BGR: true})
	assert.Equal(t, []int64{1, 2, 2, 3}, nhwc.Shape)
	assert.InDelta(t, 51, nhwc.Data[0], 1)
	assert.InDelta(t, 0, nhwc.Data[1], 1)
	assert.InDelta(t, 255, nhwc.Data[2], 1)
}

func TestToTensorNormalizes(t *testing.T) {
	img := imaging.New(4, 4, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	out := ToTensor(img, Preprocess{
		Width: 1, Height: 1, Layout: NCHW, Fit: FitCenterCrop,
		Mean: [3]float32{0.5, 0.5, 0.5},
		Std:  [3]float32{0.5, 0.5, 0.5},
	})
	for _, v := range out.Data {
		assert.InDelta(t, 1.0, v, 1e-3)
	}
}

func TestToTensorPadUsesPadColor(t *testing.T) {
	img := imaging.New(4, 2, color.NRGBA{A: 255})
	out := ToTensor(img, Preprocess{Width: 4, Height: 4, Layout: NHWC, Fit: FitPad, Raw: true})
	// Top-left pixel falls in the white letterbox band.
	assert.InDelta(t, 255, out.Data[0], 1)
	// Centre row is the black source image.
	assert.InDelta(t, 0, out.Data[(2*4+1)*3], 1)
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, imaging.Save(imaging.New(3, 2, color.White), path))
	img, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())

	_, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
