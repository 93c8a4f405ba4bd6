// Package serial implements a 16550 UART driver for the COM1 port, used as
// the kernel log sink before any console device is probed (carried over from
// the original implementation's serial.cpp, which every other driver logs
// through before a VGA console exists). It implements kfmt/early.Writer the
// same way kernel/driver/console's Term implements io.Writer, so kmain can
// hand it to early.SetOutput directly.
package serial

import "github.com/Bolt2841/BOLT-OS-sub000/kernel/cpu"

// COM1 is the default I/O base port for the first serial port.
const COM1 uint16 = 0x3F8

const (
	regData        = 0
	regIntEnable   = 1
	regFIFOCtrl    = 2
	regLineCtrl    = 3
	regModemCtrl   = 4
	regLineStatus  = 5
	lineStatusTHRE = 1 << 5 // transmit holding register empty
	lineStatusDR   = 1 << 0 // data ready
)

var (
	outbFn = cpu.Outb
	inbFn  = cpu.Inb
)

// Port is one 16550-compatible UART. The zero value is not initialized;
// call Init first.
type Port struct {
	base uint16
	ok   bool
}

// Init programs the UART for 8N1 at baud, verifies it with the standard
// loopback self-test, and leaves it in normal operating mode. It mirrors
// the original driver's init sequence byte-for-byte (DLAB divisor load,
// FIFO enable, loopback probe byte 0xAE).
func (p *Port) Init(base uint16, baud uint32) bool {
	p.base = base
	p.ok = false

	divisor := uint16(115200 / baud)

	outbFn(base+regIntEnable, 0x00)
	outbFn(base+regLineCtrl, 0x80) // enable DLAB
	outbFn(base+regData, uint8(divisor&0xFF))
	outbFn(base+regIntEnable, uint8((divisor>>8)&0xFF))
	outbFn(base+regLineCtrl, 0x03) // 8 bits, no parity, one stop bit
	outbFn(base+regFIFOCtrl, 0xC7) // enable FIFO, clear, 14-byte threshold
	outbFn(base+regModemCtrl, 0x0B)
	outbFn(base+regModemCtrl, 0x1E) // loopback mode

	outbFn(base+regData, 0xAE)
	if inbFn(base+regData) != 0xAE {
		return false
	}

	outbFn(base+regModemCtrl, 0x0F) // normal operation
	p.ok = true
	return true
}

func (p *Port) transmitEmpty() bool {
	return inbFn(p.base+regLineStatus)&lineStatusTHRE != 0
}

// WriteByte blocks until the transmit buffer is empty, then sends b. A bare
// '\n' is preceded by '\r', matching terminal expectations over a serial
// line.
func (p *Port) WriteByte(b byte) error {
	if !p.ok {
		return nil
	}
	if b == '\n' {
		for !p.transmitEmpty() {
		}
		outbFn(p.base+regData, '\r')
	}
	for !p.transmitEmpty() {
	}
	outbFn(p.base+regData, b)
	return nil
}

// Write implements kfmt/early.Writer.
func (p *Port) Write(data []byte) (int, error) {
	for _, b := range data {
		p.WriteByte(b)
	}
	return len(data), nil
}

// HasData reports whether a received byte is waiting to be read.
func (p *Port) HasData() bool {
	return p.ok && inbFn(p.base+regLineStatus)&lineStatusDR != 0
}

// ReadByte blocks until a byte arrives and returns it.
func (p *Port) ReadByte() byte {
	for !p.HasData() {
	}
	return inbFn(p.base)
}
