// Package rtc reads the CMOS real-time clock, grounded on
// original_source/kernel/drivers/timer/rtc.cpp's register layout and BCD
// handling. It backs the sleep-resolution watchdog spec.md §9 asks for:
// WatchdogFired reports whether kernel/driver/pit's tick count has stalled
// across a full RTC second, the one case spec.md says preemption falls
// back to RTC-seconds resolution.
package rtc

import "github.com/Bolt2841/BOLT-OS-sub000/kernel/cpu"

const (
	cmosAddr = 0x70
	cmosData = 0x71

	regSeconds  = 0x00
	regMinutes  = 0x02
	regHours    = 0x04
	regDay      = 0x07
	regMonth    = 0x08
	regYear     = 0x09
	regStatusA  = 0x0A
	regStatusB  = 0x0B
	statusAUIP  = 0x80 // update in progress
	statusB24Hr = 0x02
	statusBBCD  = 0x04 // set => binary, clear => BCD
)

// DateTime is a decoded CMOS reading; Year is the full four-digit year,
// assuming the 21st century as the reference kernel does.
type DateTime struct {
	Second, Minute, Hour uint8
	Day, Month           uint8
	Year                 uint16
}

var (
	outbFn = cpu.Outb
	inbFn  = cpu.Inb
)

func readRegister(reg uint8) uint8 {
	outbFn(cmosAddr, reg)
	return inbFn(cmosData)
}

func updating() bool {
	outbFn(cmosAddr, regStatusA)
	return inbFn(cmosData)&statusAUIP != 0
}

func bcdToBinary(v uint8) uint8 {
	return (v>>4)*10 + (v & 0x0F)
}

// Now blocks until the CMOS update cycle is idle, then returns the current
// date and time.
func Now() DateTime {
	for updating() {
	}

	statusB := readRegister(regStatusB)
	bcdMode := statusB&statusBBCD == 0
	hour24 := statusB&statusB24Hr != 0

	dt := DateTime{
		Second: readRegister(regSeconds),
		Minute: readRegister(regMinutes),
		Hour:   readRegister(regHours),
		Day:    readRegister(regDay),
		Month:  readRegister(regMonth),
		Year:   uint16(readRegister(regYear)),
	}

	if bcdMode {
		dt.Second = bcdToBinary(dt.Second)
		dt.Minute = bcdToBinary(dt.Minute)
		dt.Hour = bcdToBinary(dt.Hour&0x7F) | (dt.Hour & 0x80)
		dt.Day = bcdToBinary(dt.Day)
		dt.Month = bcdToBinary(dt.Month)
		dt.Year = uint16(bcdToBinary(uint8(dt.Year)))
	}

	if !hour24 && dt.Hour&0x80 != 0 {
		dt.Hour = ((dt.Hour & 0x7F) + 12) % 24
	}

	dt.Year += 2000
	return dt
}

// SecondOfDay collapses a DateTime to seconds since midnight, used by the
// scheduler watchdog to measure elapsed wall-clock time without tracking a
// full calendar.
func SecondOfDay(dt DateTime) uint32 {
	return uint32(dt.Hour)*3600 + uint32(dt.Minute)*60 + uint32(dt.Second)
}

var lastObservedPITTicks uint64
var lastRTCSecond uint32
var rtcSecondSet bool

// WatchdogFired reports whether pitTicks (kernel/driver/pit.Ticks()) has not
// advanced across a full elapsed RTC second, meaning the PIT has stopped
// firing and the scheduler should fall back to RTC-second sleep
// resolution, per spec.md §9.
func WatchdogFired(pitTicks uint64) bool {
	dt := Now()
	sec := SecondOfDay(dt)

	if !rtcSecondSet {
		lastRTCSecond = sec
		lastObservedPITTicks = pitTicks
		rtcSecondSet = true
		return false
	}

	if sec == lastRTCSecond {
		return false
	}

	stalled := pitTicks == lastObservedPITTicks
	lastRTCSecond = sec
	lastObservedPITTicks = pitTicks
	return stalled
}

// ResetWatchdog clears the watchdog's tracked state; used by tests.
func ResetWatchdog() {
	lastObservedPITTicks = 0
	lastRTCSecond = 0
	rtcSecondSet = false
}
