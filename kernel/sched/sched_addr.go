package sched

import "reflect"

// entryFnAddr recovers the linear address a freshly built stack frame should
// "return" into for fn, the same reflect.ValueOf(fn).Pointer() trick used by
// kernel/idt to recover its assembly trampoline addresses.
func entryFnAddr(fn EntryFn) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// exitTrampoline is what a task lands in if its entry function ever returns
// instead of calling Exit itself; it calls Exit(0) so a sloppy task still
// terminates cleanly instead of running off the end of its stack.
func exitTrampoline() {
	Exit(0)
}

func exitTrampolineAddr() uintptr {
	return reflect.ValueOf(exitTrampoline).Pointer()
}
