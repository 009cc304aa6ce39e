// Package process turns one raw UYVY frame into a display-ready RGBA image:
// color-space decode, grayscale reduction, auto-gain, color mapping, resize.
//
// Render is a pure function of (frame, table); it holds no state across
// frames and runs only on the render thread.
package process

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/dannen/lepton-viewer-rpi/internal/lut"
	"github.com/dannen/lepton-viewer-rpi/internal/types"
)

// ErrTableValidation reports a custom table that failed its shape
// precondition at render time. The frame is still rendered, as grayscale.
var ErrTableValidation = errors.New("custom table failed render-time validation")

// Processor renders frames at the display's native resolution.
type Processor struct {
	dispWidth  int
	dispHeight int
}

// New creates a processor targeting the given display resolution.
func New(displayWidth, displayHeight int) *Processor {
	return &Processor{dispWidth: displayWidth, dispHeight: displayHeight}
}

// Render converts a raw frame to a false-color RGBA image using table.
//
// A custom table failing its 256x3 precondition degrades the frame to
// grayscale and returns ErrTableValidation alongside the usable image;
// the render loop logs it and keeps going.
func (p *Processor) Render(f *types.Frame, table lut.Table) (*image.RGBA, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("frame %d has invalid dimensions %dx%d (%d bytes)",
			f.Seq, f.Width, f.Height, len(f.Data))
	}

	raw, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC2, f.Data)
	if err != nil {
		return nil, fmt.Errorf("wrap frame buffer: %w", err)
	}
	defer raw.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(raw, &bgr, gocv.ColorYUVToBGRUYVY)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	agc := autoGain(gray)
	defer agc.Close()

	colored := gocv.NewMat()
	defer colored.Close()
	tableErr := applyTable(agc, &colored, table)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(colored, &resized, image.Pt(p.dispWidth, p.dispHeight), 0, 0, gocv.InterpolationLinear)

	rgba := gocv.NewMat()
	defer rgba.Close()
	gocv.CvtColor(resized, &rgba, gocv.ColorBGRToRGBA)

	img := image.NewRGBA(image.Rect(0, 0, p.dispWidth, p.dispHeight))
	data, err := rgba.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("read rendered pixels: %w", err)
	}
	copy(img.Pix, data)

	return img, tableErr
}

// autoGain rescales intensities so the observed minimum maps to 0 and the
// maximum to 255. A flat frame is returned unchanged; there is no division
// by zero path.
func autoGain(gray gocv.Mat) gocv.Mat {
	minVal, maxVal, _, _ := gocv.MinMaxLoc(gray)
	if maxVal <= minVal {
		return gray.Clone()
	}

	alpha := 255.0 / (maxVal - minVal)
	beta := -minVal * alpha
	out := gocv.NewMat()
	gray.ConvertToWithParams(&out, gocv.MatTypeCV8U, alpha, beta)
	return out
}

// applyTable maps intensities to color. Builtin ids go straight to the
// external colormap primitive; custom tables are re-checked against their
// precondition first and fall back to grayscale when it does not hold.
func applyTable(agc gocv.Mat, dst *gocv.Mat, table lut.Table) error {
	if table.Kind == lut.KindBuiltin {
		gocv.ApplyColorMap(agc, dst, gocv.ColormapTypes(table.ID))
		return nil
	}

	if err := table.Validate(); err != nil {
		gocv.CvtColor(agc, dst, gocv.ColorGrayToBGR)
		return fmt.Errorf("%w: %s", ErrTableValidation, err)
	}

	lutMat, err := gocv.NewMatFromBytes(lut.EntryCount, 1, gocv.MatTypeCV8UC3, table.Data)
	if err != nil {
		gocv.CvtColor(agc, dst, gocv.ColorGrayToBGR)
		return fmt.Errorf("%w: wrap table: %s", ErrTableValidation, err)
	}
	defer lutMat.Close()

	gocv.ApplyCustomColorMap(agc, dst, lutMat)
	return nil
}
