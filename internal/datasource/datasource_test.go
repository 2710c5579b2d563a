package datasource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xuri/excelize/v2"
)

func TestMemoryProviderPadsAndTrims(t *testing.T) {
	p := NewMemory([][]string{
		{"1", " Иванов ", "Иван", "Иванович", "15.01.2020"},
		{"2", "Петров"},
	})
	require.Equal(t, 2, p.Len())
	require.Equal(t, 5, p.Width())

	row, err := p.Row(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "Петров", "", "", ""}, row.Cells)
	assert.Equal(t, 1, row.Index)

	row, err = p.Row(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "Иванов", row.Value(1))
	assert.Equal(t, "", row.Value(42))
}

func TestMemoryProviderRowErrors(t *testing.T) {
	p := NewMemory([][]string{{"a"}, {"b"}})
	broken := errors.New("corrupt cell")
	p.FailRow(1, broken)

	_, err := p.Row(context.Background(), 1)
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 1, rowErr.Index)
	assert.ErrorIs(t, err, broken)

	_, err = p.Row(context.Background(), 5)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, 1, p.Reads(1))
}

func TestRowsDoNotShareStorage(t *testing.T) {
	p := NewMemory([][]string{{"a", "b"}})
	row, err := p.Row(context.Background(), 0)
	require.NoError(t, err)
	row.Cells[0] = "mutated"

	again, err := p.Row(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Cells[0])
}

func TestExpand(t *testing.T) {
	row := schemas.DataRow{Cells: []string{"7", "Иванов", "Иван", "Иванович", "43845"}, Width: 5}
	l := DefaultLayout()

	expanded := Expand(row, l)
	assert.Equal(t, []string{"7", "Иванов", "Иван", "Иванович", "43845", "15", "01", "2020"}, expanded.Cells)
	assert.True(t, expanded.Expanded())
	assert.Len(t, row.Cells, 5, "input row is not modified")

	again := Expand(expanded, l)
	assert.Equal(t, expanded.Cells, again.Cells, "expansion is idempotent")
}

func TestExpandMissingBirthDateColumn(t *testing.T) {
	row := schemas.DataRow{Cells: []string{"1", "Иванов"}, Width: 2}
	expanded := Expand(row, DefaultLayout())
	assert.Equal(t, []string{"1", "Иванов", "", "", ""}, expanded.Cells)
}

func TestLayoutColumn(t *testing.T) {
	l := DefaultLayout()
	tests := []struct {
		sem  schemas.SemanticType
		want int
	}{
		{schemas.SemanticNumber, 0},
		{schemas.SemanticSurname, 1},
		{schemas.SemanticGivenName, 2},
		{schemas.SemanticPatronymic, 3},
		{schemas.SemanticBirthDate, 4},
		{schemas.SemanticBirthDay, 6},
		{schemas.SemanticBirthMonth, 7},
		{schemas.SemanticBirthYear, 8},
	}
	for _, tt := range tests {
		got, ok := l.Column(tt.sem, 6)
		require.True(t, ok, tt.sem)
		assert.Equal(t, tt.want, got, tt.sem)
	}
	_, ok := l.Column("shoeSize", 6)
	assert.False(t, ok)
}

func TestOpenXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{1, "Иванов", "Иван", "Иванович", 43845}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{2, "Петрова", "Анна", "", "15.01.2020"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	p, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, 5, p.Width())

	row, err := p.Row(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "Иванов", row.Value(1))
	assert.Equal(t, "43845", row.Value(4), "raw serial is preserved")

	expanded := Expand(row, DefaultLayout())
	assert.Equal(t, []string{"15", "01", "2020"}, expanded.Cells[5:])
}

func TestOpenCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.csv")
	content := "\xef\xbb\xbf1;Иванов;Иван;Иванович;15/01/2020\n2;Петров;Пётр;;2020-01-15\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, 2, p.Len())

	row, err := p.Row(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "1", row.Value(0), "byte order mark is stripped")
	assert.Equal(t, "15/01/2020", row.Value(4))
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open("people.ods")
	assert.Error(t, err)
}
