// Package mouse decodes PS/2 IntelliMouse packets into input.Event values,
// grounded on original_source/kernel/drivers/input/mouse.cpp's controller
// init sequence (aux-port enable, sample-rate magic for wheel detection)
// and packet layout.
package mouse

import (
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/cpu"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/idt"
	"github.com/Bolt2841/BOLT-OS-sub000/kernel/input"
)

const (
	dataPort    = 0x60
	statusPort  = 0x64
	commandPort = 0x64

	// IRQ12 is wired to vector 44 by kernel/idt's PIC remap.
	IRQVector = 44

	statusOutputFull = 0x01
	statusInputFull  = 0x02

	cmdEnableAux    = 0xA8
	cmdGetStatus    = 0x20
	cmdSetStatus    = 0x60
	cmdWriteToMouse = 0xD4

	mouseSetSampleRate   = 0xF3
	mouseGetDeviceID     = 0xF2
	mouseEnableStreaming = 0xF4
)

var (
	outbFn = cpu.Outb
	inbFn  = cpu.Inb

	hasWheel   bool
	packetSize = 3

	packet      [4]uint8
	packetIndex int

	width, height int32 = 320, 200
	x, y          int32

	leftDown, rightDown, middleDown bool
)

func waitWrite() {
	for i := 0; i < 100000; i++ {
		if inbFn(statusPort)&statusInputFull == 0 {
			return
		}
	}
}

func waitRead() {
	for i := 0; i < 100000; i++ {
		if inbFn(statusPort)&statusOutputFull != 0 {
			return
		}
	}
}

func writeCommand(cmd uint8) {
	waitWrite()
	outbFn(commandPort, cmd)
}

func writeData(data uint8) {
	waitWrite()
	outbFn(dataPort, data)
}

func readData() uint8 {
	waitRead()
	return inbFn(dataPort)
}

func toMouse(b uint8) {
	writeCommand(cmdWriteToMouse)
	writeData(b)
	readData() // ack
}

// SetBounds updates the screen dimensions MouseMove coordinates are clamped
// to and re-centers the cursor.
func SetBounds(w, h int32) {
	width, height = w, h
	x, y = w/2, h/2
}

// Init enables the auxiliary PS/2 port, probes for the IntelliMouse wheel
// extension via the standard sample-rate magic sequence, and registers the
// IRQ12 handler.
func Init() {
	writeCommand(cmdEnableAux)

	writeCommand(cmdGetStatus)
	status := readData()
	status |= 0x02  // enable IRQ12
	status &^= 0x20 // enable mouse clock
	writeCommand(cmdSetStatus)
	writeData(status)

	toMouse(0xF6) // use default settings

	toMouse(mouseSetSampleRate)
	toMouse(200)
	toMouse(mouseSetSampleRate)
	toMouse(100)
	toMouse(mouseSetSampleRate)
	toMouse(80)

	toMouse(mouseGetDeviceID)
	id := readData()
	if id == 3 || id == 4 {
		hasWheel = true
		packetSize = 4
	} else {
		hasWheel = false
		packetSize = 3
	}

	toMouse(mouseEnableStreaming)

	x, y = width/2, height/2
	packetIndex = 0

	idt.Register(IRQVector, handleIRQ)
}

func handleIRQ(*idt.Frame) {
	packet[packetIndex] = inbFn(dataPort)
	packetIndex++

	if packetIndex < packetSize {
		return
	}
	packetIndex = 0

	flags := packet[0]
	if flags&0x08 == 0 {
		return // malformed packet, per the byte-3 alignment bit
	}

	dx := int32(int8(packet[1]))
	dy := int32(int8(packet[2]))

	x += dx
	y -= dy
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x >= width {
		x = width - 1
	}
	if y >= height {
		y = height - 1
	}
	input.Push(input.Event{Kind: input.MouseMove, X: x, Y: y})

	newLeft := flags&0x01 != 0
	newRight := flags&0x02 != 0
	newMiddle := flags&0x04 != 0
	pushButtonEdge(input.ButtonLeft, leftDown, newLeft)
	pushButtonEdge(input.ButtonRight, rightDown, newRight)
	pushButtonEdge(input.ButtonMiddle, middleDown, newMiddle)
	leftDown, rightDown, middleDown = newLeft, newRight, newMiddle

	if hasWheel && packetSize == 4 {
		scroll := int8(packet[3])
		if scroll != 0 {
			input.Push(input.Event{Kind: input.MouseScroll, Scroll: scroll})
		}
	}
}

func pushButtonEdge(b input.MouseButton, was, is bool) {
	if was == is {
		return
	}
	kind := input.MouseButtonUp
	if is {
		kind = input.MouseButtonDown
	}
	input.Push(input.Event{Kind: kind, Button: b})
}
