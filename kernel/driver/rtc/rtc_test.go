package rtc

import "testing"

// withFakeCMOS overrides outbFn/inbFn with a tiny CMOS register file so Now()
// can be exercised without real hardware; regs is keyed by register index,
// pre-loaded in binary (non-BCD) 24-hour mode.
func withFakeCMOS(t *testing.T, regs map[uint8]uint8) {
	t.Helper()
	origOut, origIn := outbFn, inbFn
	t.Cleanup(func() { outbFn, inbFn = origOut, origIn })

	var selected uint8
	outbFn = func(port uint16, val uint8) {
		if port == cmosAddr {
			selected = val
		}
	}
	inbFn = func(port uint16) uint8 {
		if port != cmosData {
			return 0
		}
		if selected == regStatusA {
			return 0 // never "updating"
		}
		return regs[selected]
	}
}

func TestNowBinary24Hour(t *testing.T) {
	withFakeCMOS(t, map[uint8]uint8{
		regStatusB: statusBBCD | statusB24Hr,
		regSeconds: 45,
		regMinutes: 30,
		regHours:   14,
		regDay:     15,
		regMonth:   6,
		regYear:    26,
	})

	dt := Now()
	if dt.Second != 45 || dt.Minute != 30 || dt.Hour != 14 {
		t.Fatalf("unexpected time: %+v", dt)
	}
	if dt.Year != 2026 || dt.Month != 6 || dt.Day != 15 {
		t.Fatalf("unexpected date: %+v", dt)
	}
}

func TestNowBCDMode(t *testing.T) {
	withFakeCMOS(t, map[uint8]uint8{
		regStatusB: statusB24Hr, // BCD bit clear => BCD mode
		regSeconds: 0x45,        // BCD for 45
		regMinutes: 0x30,        // BCD for 30
		regHours:   0x14,        // BCD for 14
		regDay:     0x15,
		regMonth:   0x06,
		regYear:    0x26,
	})

	dt := Now()
	if dt.Second != 45 || dt.Minute != 30 || dt.Hour != 14 {
		t.Fatalf("BCD decode wrong: %+v", dt)
	}
}

func TestWatchdogFiresWhenPITStalls(t *testing.T) {
	ResetWatchdog()
	withFakeCMOS(t, map[uint8]uint8{
		regStatusB: statusBBCD | statusB24Hr,
		regSeconds: 0,
	})
	if WatchdogFired(100) {
		t.Fatal("first call should only seed state, not fire")
	}

	withFakeCMOS(t, map[uint8]uint8{
		regStatusB: statusBBCD | statusB24Hr,
		regSeconds: 1,
	})
	if !WatchdogFired(100) {
		t.Fatal("WatchdogFired() = false, want true when PIT ticks are unchanged across an RTC second")
	}
}
