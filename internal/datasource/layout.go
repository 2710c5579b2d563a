package datasource

import (
	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/config"
)

// Layout fixes which source column holds each attribute.
type Layout struct {
	Number     int
	Surname    int
	GivenName  int
	Patronymic int
	BirthDate  int
}

// DefaultLayout is [ID, Surname, GivenName, Patronymic, BirthDate, ...].
func DefaultLayout() Layout {
	return Layout{Number: 0, Surname: 1, GivenName: 2, Patronymic: 3, BirthDate: 4}
}

// LayoutFromConfig converts the columns section of the configuration.
func LayoutFromConfig(c config.ColumnsConfig) Layout {
	return Layout{
		Number:     c.Number,
		Surname:    c.Surname,
		GivenName:  c.GivenName,
		Patronymic: c.Patronymic,
		BirthDate:  c.BirthDate,
	}
}

// Column resolves a semantic type to a column index in an expanded row of the
// given source width. The synthetic date parts sit right after the source columns.
func (l Layout) Column(t schemas.SemanticType, width int) (int, bool) {
	switch t {
	case schemas.SemanticNumber:
		return l.Number, true
	case schemas.SemanticSurname:
		return l.Surname, true
	case schemas.SemanticGivenName:
		return l.GivenName, true
	case schemas.SemanticPatronymic:
		return l.Patronymic, true
	case schemas.SemanticBirthDate:
		return l.BirthDate, true
	case schemas.SemanticBirthDay:
		return width, true
	case schemas.SemanticBirthMonth:
		return width + 1, true
	case schemas.SemanticBirthYear:
		return width + 2, true
	}
	return 0, false
}

// Expand appends day, month and year derived from the birth date cell.
// Expanding an already expanded row returns it unchanged.
func Expand(row schemas.DataRow, l Layout) schemas.DataRow {
	if row.Expanded() {
		return row
	}
	var raw string
	if l.BirthDate < row.Width {
		raw = row.Value(l.BirthDate)
	}
	day, month, year := ExpandDate(raw)

	cells := make([]string, row.Width, row.Width+3)
	copy(cells, row.Cells)
	row.Cells = append(cells, day, month, year)
	return row
}
