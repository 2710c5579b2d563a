package cdp

import (
	"strings"
	"unicode"

	"github.com/chromedp/cdproto/input"
	"github.com/xkilldash9x/autofill-cli/api/schemas"
	"github.com/xkilldash9x/autofill-cli/internal/humanoid"
)

// keyDef describes how Chrome expects a key to be dispatched.
type keyDef struct {
	key  string
	code string
	vk   int64
	text string
	// command is the editing command Chrome runs for the key, if any.
	command string
	// shiftCommand replaces command while shift is held.
	shiftCommand string
}

var keyDefs = map[string]keyDef{
	humanoid.KeyDelete:    {key: "Delete", code: "Delete", vk: 46, command: "deleteForward"},
	humanoid.KeyBackspace: {key: "Backspace", code: "Backspace", vk: 8, command: "deleteBackward"},
	humanoid.KeyHome:      {key: "Home", code: "Home", vk: 36, command: "moveToBeginningOfLine", shiftCommand: "moveToBeginningOfLineAndModifySelection"},
	humanoid.KeyEnd:       {key: "End", code: "End", vk: 35, command: "moveToEndOfLine", shiftCommand: "moveToEndOfLineAndModifySelection"},
	humanoid.KeyEnter:     {key: "Enter", code: "Enter", vk: 13, text: "\r"},
	humanoid.KeyTab:       {key: "Tab", code: "Tab", vk: 9},
	humanoid.KeyEscape:    {key: "Escape", code: "Escape", vk: 27},
}

// clipboardOp is a shortcut the executor emulates against its clipboard.
type clipboardOp int

const (
	opNone clipboardOp = iota
	opCopy
	opPaste
)

const shortcutMods = schemas.ModCtrl | schemas.ModMeta

// classify reports whether a key event is a copy or paste shortcut.
func classify(data schemas.KeyEventData) clipboardOp {
	if data.Modifiers&shortcutMods == 0 {
		return opNone
	}
	switch strings.ToLower(data.Key) {
	case "c":
		return opCopy
	case "v":
		return opPaste
	}
	return opNone
}

// lookupKey resolves named keys and single characters.
func lookupKey(key string) keyDef {
	if def, ok := keyDefs[key]; ok {
		return def
	}
	r := []rune(key)
	if len(r) == 1 && r[0] < unicode.MaxASCII {
		up := unicode.ToUpper(r[0])
		def := keyDef{key: key, text: key, vk: int64(up)}
		switch {
		case unicode.IsLetter(up):
			def.code = "Key" + string(up)
		case unicode.IsDigit(up):
			def.code = "Digit" + string(up)
		}
		return def
	}
	return keyDef{key: key, text: key}
}

// keyEvents builds the down/up pair for a key with modifiers.
func keyEvents(data schemas.KeyEventData) []*input.DispatchKeyEventParams {
	def := lookupKey(data.Key)
	mods := input.Modifier(data.Modifiers)

	var commands []string
	switch {
	case data.Modifiers&shortcutMods != 0 && strings.EqualFold(data.Key, "a"):
		commands = []string{"selectAll"}
	case data.Modifiers&schemas.ModShift != 0 && def.shiftCommand != "":
		commands = []string{def.shiftCommand}
	case def.command != "":
		commands = []string{def.command}
	}

	down := input.DispatchKeyEvent(input.KeyDown).
		WithKey(def.key).
		WithModifiers(mods).
		WithWindowsVirtualKeyCode(def.vk).
		WithNativeVirtualKeyCode(def.vk)
	if def.code != "" {
		down = down.WithCode(def.code)
	}
	// Text must not be sent with a shortcut or it would be typed.
	if def.text != "" && data.Modifiers&(shortcutMods|schemas.ModAlt) == 0 {
		down = down.WithText(def.text)
	}
	if len(commands) > 0 {
		down = down.WithCommands(commands)
	}

	up := input.DispatchKeyEvent(input.KeyUp).
		WithKey(def.key).
		WithModifiers(mods).
		WithWindowsVirtualKeyCode(def.vk).
		WithNativeVirtualKeyCode(def.vk)
	if def.code != "" {
		up = up.WithCode(def.code)
	}
	return []*input.DispatchKeyEventParams{down, up}
}
