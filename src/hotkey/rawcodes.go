package hotkey

import (
	"log"
	"runtime"
	"strconv"
	"strings"
)

// keyNameToRawcodes maps a key name to the rawcodes gohook reports for it on
// this platform. Modifiers return both left and right variants.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	var codes []uint16
	if runtime.GOOS == "linux" {
		codes = x11Rawcodes(keyName)
	} else {
		codes = vkRawcodes(keyName)
	}
	if codes == nil {
		log.Printf("WARNING: Unknown key name '%s', cannot map to rawcode", keyName)
	}
	return codes
}

// functionKey returns n for "f<n>" with 1 <= n <= 24.
func functionKey(name string) (int, bool) {
	if len(name) < 2 || name[0] != 'f' {
		return 0, false
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil || n < 1 || n > 24 {
		return 0, false
	}
	return n, true
}

var vkSpecial = map[string][]uint16{
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":   {91, 92},   // VK_LWIN, VK_RWIN

	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

// vkRawcodes uses Windows virtual-key codes.
func vkRawcodes(name string) []uint16 {
	if codes, ok := vkSpecial[name]; ok {
		return codes
	}
	if name == "win" || name == "super" {
		return vkSpecial["cmd"]
	}
	if len(name) == 1 {
		switch c := name[0]; {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c-'a') + 65}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c)}
		}
	}
	if n, ok := functionKey(name); ok {
		return []uint16{uint16(111 + n)} // VK_F1 = 0x70
	}
	return nil
}

var x11Special = map[string][]uint16{
	"ctrl":  {0xffe3, 0xffe4},
	"alt":   {0xffe9, 0xffea},
	"shift": {0xffe1, 0xffe2},
	"cmd":   {0xffeb, 0xffec},

	"space":     {0x20},
	"enter":     {0xff0d},
	"return":    {0xff0d},
	"esc":       {0xff1b},
	"escape":    {0xff1b},
	"tab":       {0xff09},
	"backspace": {0xff08},
	"delete":    {0xffff},
	"del":       {0xffff},
	"insert":    {0xff63},
	"ins":       {0xff63},
	"home":      {0xff50},
	"end":       {0xff57},
	"pageup":    {0xff55},
	"pgup":      {0xff55},
	"pagedown":  {0xff56},
	"pgdn":      {0xff56},
	"left":      {0xff51},
	"up":        {0xff52},
	"right":     {0xff53},
	"down":      {0xff54},
}

// x11Rawcodes uses X11 keysyms. Letters match with or without shift.
func x11Rawcodes(name string) []uint16 {
	if codes, ok := x11Special[name]; ok {
		return codes
	}
	if name == "win" || name == "super" {
		return x11Special["cmd"]
	}
	if len(name) == 1 {
		switch c := name[0]; {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c), uint16(c - 'a' + 'A')}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c)}
		}
	}
	if n, ok := functionKey(name); ok {
		return []uint16{uint16(0xffbd + n)} // XK_F1 = 0xffbe
	}
	return nil
}
