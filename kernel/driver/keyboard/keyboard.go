// Package keyboard decodes PS/2 Set-1 scancodes into input.Event values,
// grounded on original_source/kernel/drivers/input/keyboard.cpp's scancode
// tables and modifier/extended-key state machine.
package keyboard

import (
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/cpu"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/idt"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/input"
)

const (
	dataPort   = 0x60
	statusPort = 0x64

	// IRQ1 is wired to vector 33 by kernel/idt's PIC remap.
	IRQVector = 33

	scancodeExtendedPrefix = 0xE0
	releaseBit             = 0x80

	scancodeLeftShift  = 0x2A
	scancodeRightShift = 0x36
	scancodeCtrl       = 0x1D
	scancodeAlt        = 0x38
)

// US QWERTY scancode tables, unmodified and shifted; index 0 is unused
// (scancode 0 never occurs on real hardware).
var scancodeTable = [...]byte{
	0, 27, '1', '2', '3', '4', '5', '6', '7', '8', '9', '0', '-', '=', '\b',
	'\t', 'q', 'w', 'e', 'r', 't', 'y', 'u', 'i', 'o', 'p', '[', ']', '\n',
	0, 'a', 's', 'd', 'f', 'g', 'h', 'j', 'k', 'l', ';', '\'', '`',
	0, '\\', 'z', 'x', 'c', 'v', 'b', 'n', 'm', ',', '.', '/', 0,
	'*', 0, ' ',
}

var scancodeTableShift = [...]byte{
	0, 27, '!', '@', '#', '$', '%', '^', '&', '*', '(', ')', '_', '+', '\b',
	'\t', 'Q', 'W', 'E', 'R', 'T', 'Y', 'U', 'I', 'O', 'P', '{', '}', '\n',
	0, 'A', 'S', 'D', 'F', 'G', 'H', 'J', 'K', 'L', ':', '"', '~',
	0, '|', 'Z', 'X', 'C', 'V', 'B', 'N', 'M', '<', '>', '?', 0,
	'*', 0, ' ',
}

var (
	outbFn = cpu.Outb
	inbFn  = cpu.Inb

	shiftPressed bool
	extendedKey  bool
)

// Init drains any stale bytes left in the controller's output buffer and
// registers the IRQ1 handler.
func Init() {
	for inbFn(statusPort)&0x01 != 0 {
		inbFn(dataPort)
	}
	shiftPressed = false
	extendedKey = false
	idt.Register(IRQVector, handleIRQ)
}

func handleIRQ(*idt.Frame) {
	scancode := inbFn(dataPort)

	if scancode == scancodeExtendedPrefix {
		extendedKey = true
		return
	}
	if extendedKey {
		extendedKey = false
		// Extended (arrow/Home/End/...) keys are not surfaced as ASCII;
		// dropped here rather than modelled, since spec.md's Event carries
		// only an ASCII Key field.
		return
	}

	released := scancode&releaseBit != 0
	code := scancode &^ releaseBit

	switch code {
	case scancodeLeftShift, scancodeRightShift:
		shiftPressed = !released
		return
	case scancodeCtrl, scancodeAlt:
		return
	}

	if int(code) >= len(scancodeTable) {
		return
	}
	var c byte
	if shiftPressed {
		c = scancodeTableShift[code]
	} else {
		c = scancodeTable[code]
	}
	if c == 0 {
		return
	}

	kind := input.KeyPress
	if released {
		kind = input.KeyRelease
	}
	input.Push(input.Event{Kind: kind, Key: c})
}
