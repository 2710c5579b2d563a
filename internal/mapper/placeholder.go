package mapper

import (
	"strings"
	"sync"

	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/datasource"
)

// Token is a placeholder text that marks a form field's data attribute.
type Token struct {
	Text     string
	Semantic schemas.SemanticType
}

// Tokens is the fixed placeholder table. Matching is case-insensitive.
var Tokens = []Token{
	{"{ФАМИЛИЯ}", schemas.SemanticSurname},
	{"{SURNAME}", schemas.SemanticSurname},
	{"{ИМЯ}", schemas.SemanticGivenName},
	{"{GIVENNAME}", schemas.SemanticGivenName},
	{"{ОТЧЕСТВО}", schemas.SemanticPatronymic},
	{"{PATRONYMIC}", schemas.SemanticPatronymic},
	{"{НОМЕР}", schemas.SemanticNumber},
	{"{NUMBER}", schemas.SemanticNumber},
	{"{ДЕНЬ}", schemas.SemanticBirthDay},
	{"{DAY}", schemas.SemanticBirthDay},
	{"{МЕСЯЦ}", schemas.SemanticBirthMonth},
	{"{MONTH}", schemas.SemanticBirthMonth},
	{"{ГОД}", schemas.SemanticBirthYear},
	{"{YEAR}", schemas.SemanticBirthYear},
}

// MatchToken reports the attribute named by a placeholder read from a field.
func MatchToken(text string) (schemas.SemanticType, bool) {
	text = strings.TrimSpace(text)
	for _, tok := range Tokens {
		if strings.EqualFold(text, tok.Text) {
			return tok.Semantic, true
		}
	}
	return "", false
}

// Discoverer builds a mapping from the placeholder text read back from each
// field on the first row. Once frozen the mapping never changes.
type Discoverer struct {
	layout datasource.Layout
	width  int

	mu      sync.Mutex
	mapping Mapping
	frozen  bool
}

// NewDiscoverer creates a discoverer for rows of the given source width.
func NewDiscoverer(layout datasource.Layout, width int) *Discoverer {
	return &Discoverer{layout: layout, width: width, mapping: NewMapping()}
}

// Observe records what action i's field contained. It returns the column the
// action now maps to. After Freeze it has no effect.
func (d *Discoverer) Observe(i int, text string) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frozen {
		return d.mapping.Lookup(i)
	}
	sem, ok := MatchToken(text)
	if !ok {
		return 0, false
	}
	col, ok := d.layout.Column(sem, d.width)
	if !ok {
		return 0, false
	}
	d.mapping.Set(i, col)
	return col, true
}

// Freeze ends discovery and returns the final mapping.
func (d *Discoverer) Freeze() Mapping {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frozen = true
	return d.mapping.Clone()
}

// Frozen reports whether discovery has ended.
func (d *Discoverer) Frozen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frozen
}
