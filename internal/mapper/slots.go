package mapper

import (
	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/datasource"
)

// MatchSlots returns, per action index, the first slot whose region contains
// the recorded click.
func MatchSlots(seq schemas.ActionSequence, slots []schemas.FieldSlot) map[int]schemas.FieldSlot {
	out := make(map[int]schemas.FieldSlot)
	for i, a := range seq {
		for _, slot := range slots {
			if slot.Region.Contains(a.Point()) {
				out[i] = slot
				break
			}
		}
	}
	return out
}

// FromSlots maps each action that falls inside a slot to the slot's column.
func FromSlots(seq schemas.ActionSequence, slots []schemas.FieldSlot, layout datasource.Layout, width int) Mapping {
	m := NewMapping()
	for i, slot := range MatchSlots(seq, slots) {
		if col, ok := layout.Column(slot.Type, width); ok {
			m.Set(i, col)
		}
	}
	return m
}
