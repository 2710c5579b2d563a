package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/datasource"
)

func TestPositional(t *testing.T) {
	m := Positional(3)
	for i := 0; i < 3; i++ {
		col, ok := m.Lookup(i)
		require.True(t, ok)
		assert.Equal(t, i, col)
	}
	_, ok := m.Lookup(3)
	assert.False(t, ok)
	assert.Equal(t, "{0→0 1→1 2→2}", m.String())
}

func TestMappingEqualAndClone(t *testing.T) {
	a := NewMapping()
	a.Set(1, 2)
	a.Set(4, 0)

	b := a.Clone()
	assert.True(t, a.Equal(b))

	b.Set(4, 1)
	assert.False(t, a.Equal(b), "clone is independent")
	col, _ := a.Lookup(4)
	assert.Equal(t, 0, col)

	var zero Mapping
	assert.True(t, zero.Equal(NewMapping()))
	zero.Set(0, 0)
	assert.Equal(t, 1, zero.Len())
}

func TestMatchToken(t *testing.T) {
	tests := []struct {
		text string
		want schemas.SemanticType
		ok   bool
	}{
		{"{ФАМИЛИЯ}", schemas.SemanticSurname, true},
		{"{фамилия}", schemas.SemanticSurname, true},
		{"{ИМЯ}", schemas.SemanticGivenName, true},
		{"{имя}", schemas.SemanticGivenName, true},
		{" {Отчество} ", schemas.SemanticPatronymic, true},
		{"{number}", schemas.SemanticNumber, true},
		{"{GivenName}", schemas.SemanticGivenName, true},
		{"{ГОД}", schemas.SemanticBirthYear, true},
		{"Submit", "", false},
		{"%%KNOWN%%", "", false},
		{"", "", false},
		{"ИМЯ", "", false},
	}
	for _, tt := range tests {
		got, ok := MatchToken(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestDiscoverer(t *testing.T) {
	d := NewDiscoverer(datasource.DefaultLayout(), 5)

	_, ok := d.Observe(0, "{ФАМИЛИЯ}")
	require.True(t, ok)
	_, ok = d.Observe(1, "submit")
	assert.False(t, ok)
	col, ok := d.Observe(2, "{ИМЯ}")
	require.True(t, ok)
	assert.Equal(t, 2, col, "given name is column 2 in the default layout")
	col, ok = d.Observe(3, "{день}")
	require.True(t, ok)
	assert.Equal(t, 5, col, "day is the first synthetic column")

	m := d.Freeze()
	assert.True(t, d.Frozen())
	assert.Equal(t, "{0→1 2→2 3→5}", m.String())

	// After freezing, observations change nothing.
	_, ok = d.Observe(1, "{ОТЧЕСТВО}")
	assert.False(t, ok)
	assert.True(t, m.Equal(d.Freeze()))
}

func TestFromSlots(t *testing.T) {
	seq := schemas.ActionSequence{
		{Kind: schemas.ActionClick, X: 150, Y: 215, Button: schemas.ButtonLeft},
		{Kind: schemas.ActionClick, X: 900, Y: 900, Button: schemas.ButtonLeft},
		{Kind: schemas.ActionClick, X: 120, Y: 270, Button: schemas.ButtonLeft},
	}
	slots := []schemas.FieldSlot{
		{Name: "surname", Type: schemas.SemanticSurname, Region: schemas.Region{X: 100, Y: 200, W: 200, H: 30}},
		{Name: "year", Type: schemas.SemanticBirthYear, Region: schemas.Region{X: 100, Y: 260, W: 60, H: 30}},
	}

	m := FromSlots(seq, slots, datasource.DefaultLayout(), 5)
	assert.Equal(t, "{0→1 2→7}", m.String())

	matched := MatchSlots(seq, slots)
	assert.Len(t, matched, 2)
	assert.Equal(t, "year", matched[2].Name)
}

func TestChangeTracker(t *testing.T) {
	c := NewChangeTracker()
	assert.Equal(t, ObservationFirst, c.Compare(1, "anything"))

	c.Record(1, "Иванов")
	assert.Equal(t, ObservationStale, c.Compare(1, "Иванов"))
	assert.Equal(t, ObservationDiverged, c.Compare(1, "Петров"))
	assert.Equal(t, "diverged", ObservationDiverged.String())
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("slots")
	require.NoError(t, err)
	assert.Equal(t, StrategySlots, s)
	_, err = ParseStrategy("guess")
	assert.Error(t, err)
}
