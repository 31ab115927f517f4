package render

import (
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	errs "github.com/matzehuels/barsheet/pkg/errors"
)

// Thumbnail writes a copy of the PNG at src scaled to width pixels, keeping
// the aspect ratio. Images already narrower than width are copied unscaled.
func Thumbnail(src, dst string, width int) error {
	if width <= 0 {
		return errs.New(errs.ErrCodeArgument, "thumbnail width must be positive (got %d)", width)
	}

	in, err := os.Open(src)
	if err != nil {
		return errs.Wrap(errs.ErrCodeInvalidInput, err, "open preview")
	}
	defer in.Close()

	img, err := png.Decode(in)
	if err != nil {
		return errs.Wrap(errs.ErrCodeInvalidInput, err, "decode preview %s", src)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > width {
		h = max(1, h*width/w)
		w = width
	}
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, draw.Src, nil)

	return writePNG(dst, scaled)
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.ErrCodeFileWriteFailed, err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errs.Wrap(errs.ErrCodeFlushFailed, cerr, "close %s", path)
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return errs.Wrap(errs.ErrCodeFileWriteFailed, err, "encode %s", path)
	}
	return nil
}
