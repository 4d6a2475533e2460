package qr

import (
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNoQRCode is returned when no QR code can be located in the image.
var ErrNoQRCode = errors.New("no QR code found in image")

// DecodeImage decodes the first QR code found in an uploaded photo.
// TRY_HARDER makes the reader scan rotated and low-contrast captures, which
// covers most handheld phone shots.
func DecodeImage(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", err
	}
	return Decode(img)
}

// Decode decodes the first QR code found in a decoded image.
func Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}

	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", ErrNoQRCode
	}
	return result.GetText(), nil
}
