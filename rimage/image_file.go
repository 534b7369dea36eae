package rimage

import (
	"image"
	// register PNG so image.Decode understands 16 bit depth PNGs.
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"golang.org/x/image/tiff"
)

// ReadDepthMapFromFile reads a 16 bit depth image (PNG or TIFF) from disk.
func ReadDepthMapFromFile(fn string) (*DepthMap, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening depth file %q", fn)
	}
	defer func() {
		//nolint:errcheck,gosec
		f.Close()
	}()

	var img image.Image
	switch strings.ToLower(filepath.Ext(fn)) {
	case ".tif", ".tiff":
		img, err = tiff.Decode(f)
	default:
		img, _, err = image.Decode(f)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding depth file %q", fn)
	}
	return ConvertImageToDepthMap(img)
}

// ReadImageFromFile reads a color image from disk, honoring EXIF orientation.
func ReadImageFromFile(fn string) (image.Image, error) {
	img, err := imaging.Open(fn, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "error reading image %q", fn)
	}
	return img, nil
}

// ReadMaskFromFile reads a mask image from disk; non-black pixels are eligible.
func ReadMaskFromFile(fn string) (*Mask, error) {
	img, err := ReadImageFromFile(fn)
	if err != nil {
		return nil, err
	}
	return NewMaskFromImage(img)
}

// WriteDepthMapToFile writes a depth map as a 16 bit TIFF.
func WriteDepthMapToFile(dm *DepthMap, fn string) error {
	img := image.NewGray16(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			img.Pix[img.PixOffset(x, y)] = uint8(dm.GetDepth(x, y) >> 8)
			img.Pix[img.PixOffset(x, y)+1] = uint8(dm.GetDepth(x, y) & 0xff)
		}
	}
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrapf(err, "error creating depth file %q", fn)
	}
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		//nolint:errcheck,gosec
		f.Close()
		return errors.Wrapf(err, "error encoding depth file %q", fn)
	}
	return f.Close()
}
