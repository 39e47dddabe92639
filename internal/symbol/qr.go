// Package symbol decodes QR codes from camera frames.
package symbol

import (
	"errors"
	"image"
	"math"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"sam/internal/capture"
)

// boxPadding widens the finder-pattern hull so the drawn box covers the code.
const boxPadding = 12

// QRDecoder implements capture.Decoder. It is safe for use by one goroutine.
type QRDecoder struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewQRDecoder returns a decoder tuned for live frames.
func NewQRDecoder() *QRDecoder {
	return &QRDecoder{
		reader: qrcode.NewQRCodeReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode returns at most one detection. Frames without a readable code
// yield (nil, nil).
func (d *QRDecoder) Decode(img image.Image) ([]capture.Detection, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, err
	}
	result, err := d.reader.Decode(bmp, d.hints)
	d.reader.Reset()
	if err != nil {
		if isMiss(err) {
			return nil, nil
		}
		return nil, err
	}
	text := result.GetText()
	if text == "" {
		return nil, nil
	}
	return []capture.Detection{{
		Payload: text,
		Bounds:  hull(result.GetResultPoints(), img.Bounds()),
	}}, nil
}

// isMiss reports decoder errors that only mean "no usable code in view".
func isMiss(err error) bool {
	var notFound gozxing.NotFoundException
	var checksum gozxing.ChecksumException
	var format gozxing.FormatException
	return errors.As(err, &notFound) || errors.As(err, &checksum) || errors.As(err, &format)
}

func hull(points []gozxing.ResultPoint, frame image.Rectangle) image.Rectangle {
	if len(points) == 0 {
		return image.Rectangle{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		minX = math.Min(minX, p.GetX())
		minY = math.Min(minY, p.GetY())
		maxX = math.Max(maxX, p.GetX())
		maxY = math.Max(maxY, p.GetY())
	}
	r := image.Rect(
		int(minX)-boxPadding, int(minY)-boxPadding,
		int(maxX)+boxPadding, int(maxY)+boxPadding,
	)
	return r.Intersect(frame)
}
