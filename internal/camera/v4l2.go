// Package camera opens V4L2 capture devices and converts their frames into
// images for the capture loop.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"sync"

	"github.com/blackjack/webcam"

	"sam/internal/capture"
	"sam/internal/config"
	"sam/internal/logging"
)

// FourCC codes for the pixel formats we can decode.
const (
	formatYUYV  webcam.PixelFormat = 0x56595559
	formatMJPEG webcam.PixelFormat = 0x47504A4D
)

const (
	bufferCount     = 4
	waitTimeoutSecs = 1
)

// ErrUnsupportedFormat is returned when a device offers neither YUYV nor MJPEG.
var ErrUnsupportedFormat = errors.New("camera offers no supported pixel format")

// Opener opens devices addressed by index through the configured pattern.
type Opener struct {
	pattern string
	width   uint32
	height  uint32
	logger  *slog.Logger
}

// NewOpener builds an opener from process configuration.
func NewOpener(cfg *config.Config, logger *slog.Logger) *Opener {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Opener{
		pattern: cfg.Camera.DevicePattern,
		width:   uint32(cfg.Camera.Width),
		height:  uint32(cfg.Camera.Height),
		logger:  logging.NewComponentLogger(logger, "camera"),
	}
}

// Open implements capture.Opener.
func (o *Opener) Open(index int) (capture.Device, error) {
	path := fmt.Sprintf(o.pattern, index)
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	format, err := pickFormat(cam.GetSupportedFormats())
	if err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	actual, w, h, err := cam.SetImageFormat(format, o.width, o.height)
	if err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("set format on %s: %w", path, err)
	}
	if err := cam.SetBufferCount(bufferCount); err != nil {
		o.logger.Debug("set buffer count failed", logging.String("device", path), logging.Error(err))
	}
	if err := cam.StartStreaming(); err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("start streaming on %s: %w", path, err)
	}

	o.logger.Info("camera opened",
		logging.String("device", path),
		logging.String("format", fourCC(actual)),
		logging.Int("width", int(w)),
		logging.Int("height", int(h)),
	)
	return &device{cam: cam, format: actual, width: int(w), height: int(h), path: path}, nil
}

func pickFormat(supported map[webcam.PixelFormat]string) (webcam.PixelFormat, error) {
	for _, candidate := range []webcam.PixelFormat{formatYUYV, formatMJPEG} {
		if _, ok := supported[candidate]; ok {
			return candidate, nil
		}
	}
	return 0, ErrUnsupportedFormat
}

func fourCC(f webcam.PixelFormat) string {
	return string([]byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)})
}

type device struct {
	mu     sync.Mutex
	cam    *webcam.Webcam
	format webcam.PixelFormat
	width  int
	height int
	path   string
	closed bool
}

func (d *device) ReadFrame(ctx context.Context) (image.Image, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return nil, os.ErrClosed
		}
		cam := d.cam
		d.mu.Unlock()

		err := cam.WaitForFrame(waitTimeoutSecs)
		var timeout *webcam.Timeout
		switch {
		case err == nil:
		case errors.As(err, &timeout):
			continue
		default:
			return nil, fmt.Errorf("wait for frame on %s: %w", d.path, err)
		}

		raw, err := cam.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("read frame on %s: %w", d.path, err)
		}
		if len(raw) == 0 {
			continue
		}
		return d.decode(raw)
	}
}

func (d *device) decode(raw []byte) (image.Image, error) {
	switch d.format {
	case formatMJPEG:
		return jpeg.Decode(bytes.NewReader(raw))
	case formatYUYV:
		return YUYVToImage(raw, d.width, d.height)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	stopErr := d.cam.StopStreaming()
	closeErr := d.cam.Close()
	return errors.Join(stopErr, closeErr)
}

// YUYVToImage copies a packed 4:2:2 frame into a YCbCr image.
func YUYVToImage(raw []byte, width, height int) (*image.YCbCr, error) {
	if width <= 0 || height <= 0 || width%2 != 0 {
		return nil, fmt.Errorf("invalid YUYV geometry %dx%d", width, height)
	}
	if len(raw) < width*height*2 {
		return nil, fmt.Errorf("short YUYV frame: %d bytes for %dx%d", len(raw), width, height)
	}
	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := 0; y < height; y++ {
		row := raw[y*width*2 : (y+1)*width*2]
		yOff := y * img.YStride
		cOff := y * img.CStride
		for x := 0; x < width/2; x++ {
			px := row[x*4 : x*4+4]
			img.Y[yOff+2*x] = px[0]
			img.Cb[cOff+x] = px[1]
			img.Y[yOff+2*x+1] = px[2]
			img.Cr[cOff+x] = px[3]
		}
	}
	return img, nil
}

// ListDevices returns the device nodes that exist for indexes [0, max).
func ListDevices(pattern string, max int) []string {
	var found []string
	for i := 0; i < max; i++ {
		path := fmt.Sprintf(pattern, i)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			found = append(found, path)
		}
	}
	return found
}
