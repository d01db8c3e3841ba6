package hotkey

import "golang.design/x/hotkey"

// ConflictInfo represents information about a known shortcut conflict
type ConflictInfo struct {
	Name        string
	Description string
	Modifiers   []hotkey.Modifier
	Key         hotkey.Key
}

// knownConflicts contains a list of known macOS shortcuts that might conflict
var knownConflicts = []ConflictInfo{
	{
		Name:        "Spotlight",
		Description: "macOS Spotlight search",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd},
		Key:         hotkey.KeySpace,
	},
	{
		Name:        "Alfred",
		Description: "Alfred launcher (common default)",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd},
		Key:         hotkey.KeySpace,
	},
	{
		Name:        "Raycast",
		Description: "Raycast launcher (common default)",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd},
		Key:         hotkey.KeySpace,
	},
	{
		Name:        "IME Switch",
		Description: "Input method editor switch",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd},
		Key:         hotkey.KeySpace,
	},
	{
		Name:        "Force Quit",
		Description: "macOS Force Quit",
		Modifiers:   []hotkey.Modifier{hotkey.ModCmd, hotkey.ModOption},
		Key:         hotkey.KeyEscape,
	},
}

// CheckConflicts checks if the given hotkey conflicts with known system shortcuts
func CheckConflicts(modifiers []hotkey.Modifier, key hotkey.Key) []ConflictInfo {
	var conflicts []ConflictInfo

	for _, known := range knownConflicts {
		if hotkeyMatches(modifiers, key, known.Modifiers, known.Key) {
			conflicts = append(conflicts, known)
		}
	}

	return conflicts
}

// hotkeyMatches checks if two hotkey combinations are identical
func hotkeyMatches(mods1 []hotkey.Modifier, key1 hotkey.Key, mods2 []hotkey.Modifier, key2 hotkey.Key) bool {
	if key1 != key2 {
		return false
	}

	if len(mods1) != len(mods2) {
		return false
	}

	// Create maps for comparison
	modMap1 := make(map[hotkey.Modifier]bool)
	modMap2 := make(map[hotkey.Modifier]bool)

	for _, mod := range mods1 {
		modMap1[mod] = true
	}

	for _, mod := range mods2 {
		modMap2[mod] = true
	}

	// Check if all modifiers match
	for mod := range modMap1 {
		if !modMap2[mod] {
			return false
		}
	}

	return true
}

// FormatHotkey returns a human-readable string representation of the hotkey
func FormatHotkey(modifiers []hotkey.Modifier, key hotkey.Key) string {
	result := ""

	for _, mod := range modifiers {
		switch mod {
		case hotkey.ModCtrl:
			result += "⌃"
		case hotkey.ModShift:
			result += "⇧"
		case hotkey.ModOption:
			result += "⌥"
		case hotkey.ModCmd:
			result += "⌘"
		}
	}

	result += keyToString(key)
	return result
}

// keyNames maps keys to display names. Virtual key codes are not
// contiguous on macOS, so every key is listed.
var keyNames = map[hotkey.Key]string{
	hotkey.KeySpace:  "Space",
	hotkey.KeyEscape: "Esc",
	hotkey.KeyReturn: "Return",
	hotkey.KeyTab:    "Tab",
	hotkey.KeyDelete: "Delete",

	hotkey.KeyA: "A",
	hotkey.KeyB: "B",
	hotkey.KeyC: "C",
	hotkey.KeyD: "D",
	hotkey.KeyE: "E",
	hotkey.KeyF: "F",
	hotkey.KeyG: "G",
	hotkey.KeyH: "H",
	hotkey.KeyI: "I",
	hotkey.KeyJ: "J",
	hotkey.KeyK: "K",
	hotkey.KeyL: "L",
	hotkey.KeyM: "M",
	hotkey.KeyN: "N",
	hotkey.KeyO: "O",
	hotkey.KeyP: "P",
	hotkey.KeyQ: "Q",
	hotkey.KeyR: "R",
	hotkey.KeyS: "S",
	hotkey.KeyT: "T",
	hotkey.KeyU: "U",
	hotkey.KeyV: "V",
	hotkey.KeyW: "W",
	hotkey.KeyX: "X",
	hotkey.KeyY: "Y",
	hotkey.KeyZ: "Z",

	hotkey.Key0: "0",
	hotkey.Key1: "1",
	hotkey.Key2: "2",
	hotkey.Key3: "3",
	hotkey.Key4: "4",
	hotkey.Key5: "5",
	hotkey.Key6: "6",
	hotkey.Key7: "7",
	hotkey.Key8: "8",
	hotkey.Key9: "9",
}

// keyToString converts a hotkey.Key to a display string
func keyToString(key hotkey.Key) string {
	if name, ok := keyNames[key]; ok {
		return name
	}
	return "Unknown"
}
