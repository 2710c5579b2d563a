package schemas

import "fmt"

// Point is a screen coordinate.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Add returns p translated by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Region is a rectangular screen area anchored at its top-left corner.
type Region struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// Center returns the centre of the region.
func (r Region) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Contains reports whether p lies inside r (edges inclusive).
func (r Region) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Empty reports whether the region has no area.
func (r Region) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// RegionAround returns a w by h region centred on p.
func RegionAround(p Point, w, h int) Region {
	return Region{X: p.X - w/2, Y: p.Y - h/2, W: w, H: h}
}

// SemanticType names the data attribute a form field receives.
type SemanticType string

const (
	SemanticNumber     SemanticType = "number"
	SemanticSurname    SemanticType = "surname"
	SemanticGivenName  SemanticType = "givenName"
	SemanticPatronymic SemanticType = "patronymic"
	SemanticBirthDate  SemanticType = "birthDate"
	SemanticBirthDay   SemanticType = "birthDay"
	SemanticBirthMonth SemanticType = "birthMonth"
	SemanticBirthYear  SemanticType = "birthYear"
)

// SemanticTypes lists every known semantic type in column order.
var SemanticTypes = []SemanticType{
	SemanticNumber, SemanticSurname, SemanticGivenName, SemanticPatronymic,
	SemanticBirthDate, SemanticBirthDay, SemanticBirthMonth, SemanticBirthYear,
}

// ParseSemanticType validates a textual semantic type.
func ParseSemanticType(s string) (SemanticType, error) {
	for _, t := range SemanticTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown field type %q", s)
}

// FieldSlot is the durable description of where a form field is.
type FieldSlot struct {
	Name   string       `json:"name"`
	Type   SemanticType `json:"fieldType"`
	Region Region       `json:"region"`
	// ClickOffset is applied to the region centre to compute the click point.
	ClickOffset Point `json:"clickOffset"`
	// ReferenceImage is an optional PNG snapshot of the field used for re-location.
	ReferenceImage []byte `json:"-"`
}

// ClickPoint returns the point to click for this slot.
func (f FieldSlot) ClickPoint() Point {
	return f.Region.Center().Add(f.ClickOffset)
}

// ClickPointIn returns the click point for the slot if it were found at r.
func (f FieldSlot) ClickPointIn(r Region) Point {
	return r.Center().Add(f.ClickOffset)
}
