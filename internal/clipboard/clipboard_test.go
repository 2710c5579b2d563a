package clipboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingClipboard struct {
	getErr, setErr error
	text           string
}

func (f *failingClipboard) Get() (string, error) { return f.text, f.getErr }
func (f *failingClipboard) Set(s string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.text = s
	return nil
}

func TestPreserveRestoresOnSuccess(t *testing.T) {
	cb := NewMemory("user data")

	err := Preserve(cb, func() error {
		require.NoError(t, cb.Set("Иванов"))
		got, _ := cb.Get()
		assert.Equal(t, "Иванов", got)
		return nil
	})
	require.NoError(t, err)

	got, _ := cb.Get()
	assert.Equal(t, "user data", got)
	assert.Equal(t, 2, cb.Writes())
}

func TestPreserveRestoresOnFailure(t *testing.T) {
	cb := NewMemory("keep me")
	boom := errors.New("paste failed")

	err := Preserve(cb, func() error {
		_ = cb.Set("scratch")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, _ := cb.Get()
	assert.Equal(t, "keep me", got)
}

func TestPreserveDoesNotRunWhenUnreadable(t *testing.T) {
	cb := &failingClipboard{getErr: ErrUnavailable}
	ran := false

	err := Preserve(cb, func() error { ran = true; return nil })
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, ran)
}

func TestPreserveReportsRestoreFailure(t *testing.T) {
	cb := &failingClipboard{text: "x", setErr: ErrUnavailable}
	err := Preserve(cb, func() error { return nil })
	assert.ErrorIs(t, err, ErrUnavailable)
}
