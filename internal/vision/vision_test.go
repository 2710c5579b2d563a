package vision

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/clipboard"
	"github.com/xkilldash9x/autofill-cli/internal/mocks"
	"go.uber.org/zap/zaptest"
)

var fieldRegion = schemas.Region{X: 100, Y: 100, W: 200, H: 30}

func TestClipboardVision_ReadText(t *testing.T) {
	cb := clipboard.NewMemory("user data")
	form := mocks.NewForm(cb, &mocks.FormField{Region: fieldRegion, Text: "Иванов"})
	v := NewClipboardVision(form, cb, nil, zaptest.NewLogger(t))

	text, err := v.ReadText(context.Background(), fieldRegion)
	require.NoError(t, err)
	assert.Equal(t, "Иванов", text)

	got, _ := cb.Get()
	assert.Equal(t, "user data", got, "clipboard must be restored")
}

func TestClipboardVision_EmptyFieldCopiesNothing(t *testing.T) {
	cb := clipboard.NewMemory("keep")
	form := mocks.NewForm(cb, &mocks.FormField{Region: fieldRegion})
	v := NewClipboardVision(form, cb, nil, zaptest.NewLogger(t))

	_, err := v.ReadText(context.Background(), fieldRegion)
	assert.ErrorIs(t, err, ErrNotText)
	got, _ := cb.Get()
	assert.Equal(t, "keep", got)
}

func TestClipboardVision_NotText(t *testing.T) {
	cb := clipboard.NewMemory("keep")
	form := mocks.NewForm(cb)
	v := NewClipboardVision(form, cb, nil, zaptest.NewLogger(t))

	_, err := v.ReadText(context.Background(), fieldRegion)
	assert.ErrorIs(t, err, ErrNotText)
	got, _ := cb.Get()
	assert.Equal(t, "keep", got)
}

func TestClipboardVision_SelectAllIgnored(t *testing.T) {
	cb := clipboard.NewMemory("")
	form := mocks.NewForm(cb, &mocks.FormField{Region: fieldRegion, Text: "masked", IgnoreSelectAll: true})
	v := NewClipboardVision(form, cb, nil, zaptest.NewLogger(t))

	_, err := v.ReadText(context.Background(), fieldRegion)
	assert.ErrorIs(t, err, ErrNotText)
}

func TestClipboardVision_ClipboardUnavailable(t *testing.T) {
	cb := new(mocks.MockClipboard)
	cb.On("Get").Return("", clipboard.ErrUnavailable)
	v := NewClipboardVision(mocks.NewForm(cb), cb, nil, zaptest.NewLogger(t))

	_, err := v.ReadText(context.Background(), fieldRegion)
	assert.ErrorIs(t, err, clipboard.ErrUnavailable)
	cb.AssertNotCalled(t, "Set", mock.Anything)
}

func TestLocateSlot(t *testing.T) {
	ctx := context.Background()
	slot := schemas.FieldSlot{
		Name:           "surname",
		Region:         schemas.Region{X: 0, Y: 0, W: 100, H: 20},
		ClickOffset:    schemas.Point{X: 10, Y: 10},
		ReferenceImage: []byte("png"),
	}
	found := schemas.Region{X: 400, Y: 300, W: 100, H: 20}

	t.Run("found at lower confidence", func(t *testing.T) {
		l := new(mocks.MockLocator)
		l.On("Locate", ctx, slot.ReferenceImage, 0.9).Return(schemas.Region{}, false, nil).Once()
		l.On("Locate", ctx, slot.ReferenceImage, 0.8).Return(found, true, nil).Once()

		p, ok, err := LocateSlot(ctx, l, slot)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, schemas.Point{X: 460, Y: 320}, p)
		l.AssertExpectations(t)
	})

	t.Run("falls back to saved position", func(t *testing.T) {
		l := new(mocks.MockLocator)
		l.On("Locate", ctx, slot.ReferenceImage, mock.Anything).Return(schemas.Region{}, false, nil)

		p, ok, err := LocateSlot(ctx, l, slot)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, slot.ClickPoint(), p)
		l.AssertNumberOfCalls(t, "Locate", len(SlotConfidences))
	})

	t.Run("no reference image", func(t *testing.T) {
		l := new(mocks.MockLocator)
		noRef := slot
		noRef.ReferenceImage = nil
		p, ok, err := LocateSlot(ctx, l, noRef)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, slot.ClickPoint(), p)
		l.AssertNotCalled(t, "Locate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("locator error", func(t *testing.T) {
		l := new(mocks.MockLocator)
		boom := errors.New("boom")
		l.On("Locate", ctx, slot.ReferenceImage, 0.9).Return(schemas.Region{}, false, boom)
		p, _, err := LocateSlot(ctx, l, slot)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, slot.ClickPoint(), p)
	})
}

// pattern draws a deterministic non-uniform image so placements differ.
func pattern(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*7 + y*13 + (x*y)%11) % 256)
			img.Set(x, y, color.RGBA{R: v, G: v / 2, B: 255 - v, A: 255})
		}
	}
	return img
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type staticScreen struct{ png []byte }

func (s staticScreen) Screenshot(context.Context) ([]byte, error) { return s.png, nil }

func TestTemplateMatcher_ExactMatch(t *testing.T) {
	screen := pattern(80, 60)
	tmpl := screen.SubImage(image.Rect(30, 20, 46, 28))

	region, score, ok := TemplateMatcher{}.Match(screen, tmpl, 0.9)
	require.True(t, ok)
	assert.Equal(t, schemas.Region{X: 30, Y: 20, W: 16, H: 8}, region)
	assert.Equal(t, 1.0, score)
}

func TestTemplateMatcher_NoMatchAboveConfidence(t *testing.T) {
	screen := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for i := range screen.Pix {
		screen.Pix[i] = 0
	}
	tmpl := image.NewRGBA(image.Rect(0, 0, 5, 5))
	for i := range tmpl.Pix {
		tmpl.Pix[i] = 255
	}
	_, _, ok := TemplateMatcher{}.Match(screen, tmpl, 0.7)
	assert.False(t, ok)
}

func TestTemplateMatcher_TemplateLargerThanScreen(t *testing.T) {
	_, _, ok := TemplateMatcher{}.Match(pattern(5, 5), pattern(10, 10), 0.1)
	assert.False(t, ok)
}

func TestScreenLocator(t *testing.T) {
	screen := pattern(64, 48)
	ref := encode(t, screen.SubImage(image.Rect(10, 12, 30, 22)))
	l := NewScreenLocator(staticScreen{png: encode(t, screen)})

	region, ok, err := l.Locate(context.Background(), ref, 0.9)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, schemas.Region{X: 10, Y: 12, W: 20, H: 10}, region)

	_, _, err = l.Locate(context.Background(), []byte("not a png"), 0.9)
	assert.Error(t, err)
}
