package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
)

// Screenshotter captures the screen as PNG.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// gray is a grayscale image as a flat luminance slice.
type gray struct {
	w, h int
	pix  []uint8
}

func toGray(img image.Image) gray {
	b := img.Bounds()
	g := gray{w: b.Dx(), h: b.Dy(), pix: make([]uint8, b.Dx()*b.Dy())}
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			r, gg, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// ITU-R 601 luma on 16-bit channels.
			g.pix[y*g.w+x] = uint8((299*r + 587*gg + 114*bb) / 1000 >> 8)
		}
	}
	return g
}

func decodePNG(data []byte) (gray, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return gray{}, err
	}
	return toGray(img), nil
}

// TemplateMatcher finds a template inside a larger image by normalized sum
// of absolute luminance differences. A score of 1 is a pixel-exact match.
type TemplateMatcher struct{}

// Match returns the best placement of tmpl in screen with a score of at least
// confidence.
func (TemplateMatcher) Match(screen, tmpl image.Image, confidence float64) (schemas.Region, float64, bool) {
	return match(toGray(screen), toGray(tmpl), confidence)
}

func match(s, t gray, confidence float64) (schemas.Region, float64, bool) {
	if t.w == 0 || t.h == 0 || t.w > s.w || t.h > s.h {
		return schemas.Region{}, 0, false
	}
	maxSAD := float64(255 * t.w * t.h)
	// Any placement whose running sum exceeds limit cannot reach confidence.
	limit := int64((1 - confidence) * maxSAD)
	best := int64(-1)
	bestX, bestY := 0, 0

	for y := 0; y+t.h <= s.h; y++ {
	candidate:
		for x := 0; x+t.w <= s.w; x++ {
			var sad int64
			for ty := 0; ty < t.h; ty++ {
				row := s.pix[(y+ty)*s.w+x:]
				trow := t.pix[ty*t.w:]
				for tx := 0; tx < t.w; tx++ {
					d := int64(row[tx]) - int64(trow[tx])
					if d < 0 {
						d = -d
					}
					sad += d
				}
				if sad > limit {
					continue candidate
				}
			}
			if best < 0 || sad < best {
				best, bestX, bestY = sad, x, y
				if sad == 0 {
					return schemas.Region{X: bestX, Y: bestY, W: t.w, H: t.h}, 1, true
				}
				limit = sad
			}
		}
	}
	if best < 0 {
		return schemas.Region{}, 0, false
	}
	return schemas.Region{X: bestX, Y: bestY, W: t.w, H: t.h}, 1 - float64(best)/maxSAD, true
}

// ScreenLocator locates reference images in fresh screenshots.
type ScreenLocator struct {
	screen  Screenshotter
	matcher TemplateMatcher
}

var _ Locator = (*ScreenLocator)(nil)

// NewScreenLocator creates a locator over screen.
func NewScreenLocator(screen Screenshotter) *ScreenLocator {
	return &ScreenLocator{screen: screen}
}

func (l *ScreenLocator) Locate(ctx context.Context, reference []byte, confidence float64) (schemas.Region, bool, error) {
	tmpl, err := decodePNG(reference)
	if err != nil {
		return schemas.Region{}, false, fmt.Errorf("decoding reference image: %w", err)
	}
	shot, err := l.screen.Screenshot(ctx)
	if err != nil {
		return schemas.Region{}, false, fmt.Errorf("capturing screen: %w", err)
	}
	screen, err := decodePNG(shot)
	if err != nil {
		return schemas.Region{}, false, fmt.Errorf("decoding screenshot: %w", err)
	}
	region, _, ok := match(screen, tmpl, confidence)
	return region, ok, nil
}
