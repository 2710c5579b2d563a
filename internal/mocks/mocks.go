// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/clipboard"
	"github.com/xkilldash9x/autofill-cli/internal/humanoid"
)

// -- Simulated Form --

// FormField is one input of a simulated form.
type FormField struct {
	Region schemas.Region
	Text   string
	// ReadOnly fields ignore typing, pasting and deleting.
	ReadOnly bool
	// IgnoreSelectAll makes ctrl+a a no-op, as some masked inputs do.
	IgnoreSelectAll bool
	// IgnoreDeletes swallows this many Delete or Backspace presses.
	IgnoreDeletes int
	// DropLastRune corrupts this many inserts by losing their last character.
	DropLastRune int

	inserts  int
	selected bool
}

// Inserts reports how many insert operations reached the field.
func (f *FormField) Inserts() int { return f.inserts }

// Form simulates a GUI form behind humanoid.Controller. Clicking inside a
// field focuses it; shortcuts, presses and typing act on the focused field;
// ctrl+c and ctrl+v go through the form's clipboard.
type Form struct {
	mu      sync.Mutex
	fields  []*FormField
	focused *FormField
	cb      clipboard.Clipboard
	ops     []string

	// OnOp is called after every operation with its log line. It runs
	// without the form lock held.
	OnOp func(op string)
}

var _ humanoid.Controller = (*Form)(nil)

// NewForm builds a form over cb. A nil cb gets a fresh memory clipboard.
func NewForm(cb clipboard.Clipboard, fields ...*FormField) *Form {
	if cb == nil {
		cb = clipboard.NewMemory("")
	}
	return &Form{fields: fields, cb: cb}
}

// Clipboard returns the clipboard the form copies to and pastes from.
func (f *Form) Clipboard() clipboard.Clipboard { return f.cb }

// Field returns the i-th field.
func (f *Form) Field(i int) *FormField {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields[i]
}

// Text returns the text of the i-th field.
func (f *Form) Text(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields[i].Text
}

// Ops returns a copy of the operation log.
func (f *Form) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

// CountOps counts log lines with the given prefix.
func (f *Form) CountOps(prefix string) int {
	n := 0
	for _, op := range f.Ops() {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}

func (f *Form) log(op string) {
	f.ops = append(f.ops, op)
}

func (f *Form) done(op string) {
	f.mu.Lock()
	f.log(op)
	hook := f.OnOp
	f.mu.Unlock()
	if hook != nil {
		hook(op)
	}
}

func (f *Form) fieldAt(p schemas.Point) *FormField {
	for _, fld := range f.fields {
		if fld.Region.Contains(p) {
			return fld
		}
	}
	return nil
}

func (f *Form) MoveTo(ctx context.Context, target schemas.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.done(fmt.Sprintf("move %d,%d", target.X, target.Y))
	return nil
}

func (f *Form) Click(ctx context.Context, target schemas.Point, count int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.focused = f.fieldAt(target)
	if fld := f.focused; fld != nil {
		fld.selected = false
		switch {
		case count == 2:
			// Double click selects a word; a single word is the whole text.
			fld.selected = !strings.ContainsAny(fld.Text, " \t")
		case count >= 3:
			fld.selected = true
		}
	}
	f.mu.Unlock()
	f.done(fmt.Sprintf("click %d,%d x%d", target.X, target.Y, count))
	return nil
}

func (f *Form) Shortcut(ctx context.Context, expr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	var err error
	if fld := f.focused; fld != nil {
		switch strings.ToLower(expr) {
		case "ctrl+a":
			if !fld.IgnoreSelectAll {
				fld.selected = true
			}
		case "shift+home":
			fld.selected = true
		case "ctrl+c":
			// Like a browser, copying an empty selection leaves the clipboard alone.
			if fld.selected && fld.Text != "" {
				err = f.cb.Set(fld.Text)
			}
		case "ctrl+v":
			var text string
			if text, err = f.cb.Get(); err == nil {
				f.insert(fld, text)
			}
		}
	}
	f.mu.Unlock()
	f.done("shortcut " + expr)
	return err
}

func (f *Form) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if fld := f.focused; fld != nil && !fld.ReadOnly {
		switch key {
		case humanoid.KeyDelete, humanoid.KeyBackspace:
			if fld.IgnoreDeletes > 0 {
				fld.IgnoreDeletes--
				break
			}
			if fld.selected {
				fld.Text = ""
				fld.selected = false
			} else if key == humanoid.KeyBackspace && fld.Text != "" {
				r := []rune(fld.Text)
				fld.Text = string(r[:len(r)-1])
			}
		case humanoid.KeyEnd, humanoid.KeyHome:
			fld.selected = false
		}
	}
	f.mu.Unlock()
	f.done("press " + key)
	return nil
}

func (f *Form) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if fld := f.focused; fld != nil {
		f.insert(fld, text)
	}
	f.mu.Unlock()
	f.done("type " + text)
	return nil
}

// insert appends text at the caret (end of field), replacing a selection.
// Caller holds f.mu.
func (f *Form) insert(fld *FormField, text string) {
	if fld.ReadOnly {
		return
	}
	fld.inserts++
	if fld.DropLastRune > 0 && text != "" {
		fld.DropLastRune--
		r := []rune(text)
		text = string(r[:len(r)-1])
	}
	if fld.selected {
		fld.Text = ""
		fld.selected = false
	}
	fld.Text += text
}

// -- Clipboard Mock --

// MockClipboard mocks clipboard.Clipboard.
type MockClipboard struct {
	mock.Mock
}

func (m *MockClipboard) Get() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockClipboard) Set(text string) error {
	args := m.Called(text)
	return args.Error(0)
}

// -- Action Store Mock --

// MockActionStore mocks store.ActionStore.
type MockActionStore struct {
	mock.Mock
}

func (m *MockActionStore) Save(ctx context.Context, seq schemas.ActionSequence) error {
	args := m.Called(ctx, seq)
	return args.Error(0)
}

func (m *MockActionStore) Load(ctx context.Context) (schemas.ActionSequence, error) {
	args := m.Called(ctx)
	seq, _ := args.Get(0).(schemas.ActionSequence)
	return seq, args.Error(1)
}

// -- Locator Mock --

// MockLocator mocks vision.Locator.
type MockLocator struct {
	mock.Mock
}

func (m *MockLocator) Locate(ctx context.Context, reference []byte, confidence float64) (schemas.Region, bool, error) {
	args := m.Called(ctx, reference, confidence)
	return args.Get(0).(schemas.Region), args.Bool(1), args.Error(2)
}
