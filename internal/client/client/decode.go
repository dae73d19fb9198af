package client

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/dmitrijs2005/randpic/internal/common"
)

type decodedImage struct {
	format string
	width  int
	height int
}

// decodeFunc is swapped in tests to simulate slow decoders.
var decodeFunc = func(data []byte) (decodedImage, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return decodedImage{}, err
	}
	b := img.Bounds()
	return decodedImage{format: format, width: b.Dx(), height: b.Dy()}, nil
}

// validateImage fully decodes data. The decode runs in its own goroutine and
// is abandoned if it outlives timeout or ctx.
func validateImage(ctx context.Context, data []byte, timeout time.Duration) (decodedImage, error) {
	if len(data) == 0 {
		return decodedImage{}, fmt.Errorf("%w: empty body", common.ErrInvalidImage)
	}

	type result struct {
		img decodedImage
		err error
	}
	decode := decodeFunc
	done := make(chan result, 1)
	go func() {
		img, err := decode(data)
		done <- result{img: img, err: err}
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case r := <-done:
		if r.err != nil {
			return decodedImage{}, fmt.Errorf("%w: %v", common.ErrInvalidImage, r.err)
		}
		if r.img.width <= 0 || r.img.height <= 0 {
			return decodedImage{}, fmt.Errorf("%w: zero dimension %dx%d", common.ErrInvalidImage, r.img.width, r.img.height)
		}
		return r.img, nil
	case <-expired:
		return decodedImage{}, fmt.Errorf("%w after %s", common.ErrDecodeTimeout, timeout)
	case <-ctx.Done():
		return decodedImage{}, ctx.Err()
	}
}
