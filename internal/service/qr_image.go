package service

import (
	"bytes"
	"fmt"
	"image"

	"edupro/internal/model"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// maxQRSide bounds the stored donation image on both axes.
const maxQRSide = 512

// NormalizeDonationQR decodes an uploaded PNG, JPEG or WebP image, shrinks
// it to fit maxQRSide and re-encodes it as PNG.
func NormalizeDonationQR(up *model.Upload) ([]byte, error) {
	if up == nil || len(up.Data) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	var (
		img image.Image
		err error
	)
	if up.Ext() == ".webp" {
		img, err = webp.Decode(bytes.NewReader(up.Data))
	} else {
		img, err = imaging.Decode(bytes.NewReader(up.Data), imaging.AutoOrientation(true))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img = imaging.Fit(img, maxQRSide, maxQRSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
