// Package sched implements the cooperative/preemptive round-robin task
// scheduler: a fixed 64-slot task table threaded into a circular list,
// round-robin selection starting from current.next, and a hand-rolled
// initial stack frame so a freshly created task's first dispatch lands in
// its entry function exactly as if a context switch had put it there.
// Semantics (state machine, tick/schedule/sleep/block behavior, one uniform
// DefaultTimeSlice regardless of Priority) follow
// original_source/kernel/core/sched/task.cpp; the fixed-array-of-slots
// table and index-based links (no raw pointers) follow the teacher's
// kernel/mem/pmm idiom together with spec.md §9's arena+index guidance.
package sched

import "github.com/Bolt2841/BOLT-OS-sub000/kernel"

// MaxTasks is the size of the fixed task table.
const MaxTasks = 64

// DefaultTimeSlice is the number of timer ticks every task, regardless of
// priority, receives before round-robin preempts it. original_source's
// task.cpp applies this single constant uniformly; Priority is recorded and
// reported but does not weight scheduling (see DESIGN.md).
const DefaultTimeSlice = 10

// State is a task's position in the lifecycle.
type State uint8

const (
	Dead State = iota
	Ready
	Running
	Blocked
	Sleeping
	Zombie
)

// Priority is informational only; see DefaultTimeSlice.
type Priority uint8

const (
	PriorityIdle Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityRealtime
)

// EntryFn is a task's entry point.
type EntryFn func()

// index is a task-table slot index; -1 (noTask) means "no task".
type index int32

const noTask index = -1

// Task is one slot in the fixed task table.
type Task struct {
	PID      uint32
	Name     string
	State    State
	Priority Priority

	esp uintptr // saved stack pointer; valid only while not Running

	stackBase uintptr
	stackSize uintptr

	timeSlice  int32
	cpuTicks   uint64
	wakeTick   uint64
	exitCode   int32

	prev, next index // circular doubly-linked list of live (non-Dead) slots
}

var (
	table   [MaxTasks]Task
	current index = noTask
	nextPID uint32 = 1

	liveCount int

	ticks uint64

	ErrTableFull   = &kernel.Error{Module: "sched", Message: "task table full"}
	ErrAllocFailed = &kernel.Error{Module: "sched", Message: "stack allocation failed"}
)

// StackAllocFn allocates a stack of the given size and returns its base
// address, or 0 on failure. Wired to kernel/mm/heap.Alloc in production.
type StackAllocFn func(size uintptr) uintptr

// StackFreeFn releases a stack previously returned by StackAllocFn.
type StackFreeFn func(base uintptr)

var (
	AllocStack StackAllocFn
	FreeStack  StackFreeFn
)

// contextSwitchAsm is implemented in sched_386.s: it saves the outgoing
// task's registers onto its own stack, records the resulting stack pointer
// into *outgoingESP, loads *incomingESP, restores the mirror register
// sequence, and returns into the incoming task.
func contextSwitchAsm(outgoingESP *uintptr, incomingESP uintptr)

// buildInitialStackAsm is implemented in sched_386.s. It lays out a frame on
// the top of [stackBase, stackBase+stackSize) that looks exactly like one
// contextSwitchAsm would have produced: zeroed general-purpose registers and
// EFLAGS with IF set, then entry's address (where contextSwitchAsm's RET
// lands), then exitTrampoline's address above it, so that the first
// contextSwitchAsm into this task "returns" straight into entry
// and, if entry ever returns, falls into exitTrampoline instead of running
// off the end of the stack.
func buildInitialStackAsm(stackBase, stackSize uintptr, entry, exitTrampoline uintptr) uintptr

// contextSwitch and buildInitialStack are indirected through package vars so
// tests (which cannot safely execute a real register-level context switch
// from a hosted Go test binary) can substitute fakes, the same seam used for
// cpu.* calls elsewhere in the kernel packages.
var (
	contextSwitch     = contextSwitchAsm
	buildInitialStack = buildInitialStackAsm
)

const idleStackSize = 4096

// Init resets the task table and installs the idle task as pid 0, Running.
// idleEntry should loop forever (typically HLT-ing between interrupts).
func Init(allocStack StackAllocFn, freeStack StackFreeFn, idleEntry EntryFn) {
	AllocStack = allocStack
	FreeStack = freeStack

	for i := range table {
		table[i] = Task{prev: noTask, next: noTask}
	}
	current = noTask
	nextPID = 1
	liveCount = 0
	ticks = 0

	stackBase := AllocStack(idleStackSize)
	entryAddr := entryFnAddr(idleEntry)
	esp := buildInitialStack(stackBase, idleStackSize, entryAddr, exitTrampolineAddr())

	// idle is self-linked into the circular list from the start (liveCount=1)
	// rather than left detached; linkIntoList's "insert before current" logic
	// otherwise has no valid predecessor to attach the first created task to.
	table[0] = Task{
		PID:       0,
		Name:      "idle",
		State:     Running,
		Priority:  PriorityIdle,
		esp:       esp,
		stackBase: stackBase,
		stackSize: idleStackSize,
		timeSlice: DefaultTimeSlice,
		prev:      0,
		next:      0,
	}
	current = 0
	liveCount = 1
}

func freeSlotIndex() index {
	for i := range table {
		if table[i].State == Dead {
			return index(i)
		}
	}
	return noTask
}

// linkIntoList inserts slot i into the circular list right before current,
// so it is the last slot round-robin reaches from current.next (or as the
// sole element if the list is empty).
func linkIntoList(i index) {
	if liveCount == 0 {
		table[i].next, table[i].prev = i, i
		liveCount = 1
		return
	}
	tail := table[current].prev
	table[i].next = current
	table[i].prev = tail
	table[tail].next = i
	table[current].prev = i
	liveCount++
}

func unlinkFromList(i index) {
	if liveCount <= 1 {
		liveCount = 0
		return
	}
	p, n := table[i].prev, table[i].next
	table[p].next = n
	table[n].prev = p
	if current == i {
		current = n
	}
	liveCount--
}

// Create allocates a Dead slot, a stackSize-byte stack, and builds an
// initial frame for entry so the task starts Ready. Returns the new pid, or
// 0 on failure (table full or stack allocation failure); the slot is left
// Dead on failure.
func Create(name string, entry EntryFn, priority Priority, stackSize uintptr) uint32 {
	i := freeSlotIndex()
	if i == noTask {
		return 0
	}

	stackBase := AllocStack(stackSize)
	if stackBase == 0 {
		return 0
	}

	pid := nextPID
	nextPID++

	entryAddr := entryFnAddr(entry)
	esp := buildInitialStack(stackBase, stackSize, entryAddr, exitTrampolineAddr())

	table[i] = Task{
		PID:       pid,
		Name:      name,
		State:     Ready,
		Priority:  priority,
		esp:       esp,
		stackBase: stackBase,
		stackSize: stackSize,
		timeSlice: DefaultTimeSlice,
		prev:      noTask,
		next:      noTask,
	}

	if pid != 0 {
		linkIntoList(i)
	}
	return pid
}

// Current returns the pid of the Running task.
func Current() uint32 {
	if current == noTask {
		return 0
	}
	return table[current].PID
}

// Exit marks the current task Zombie with the given exit code and reschedules.
// Never returns. Pid 0 (idle) cannot exit.
func Exit(code int32) {
	if table[current].PID == 0 {
		return
	}
	table[current].State = Zombie
	table[current].exitCode = code
	schedule()
}

// Kill terminates pid immediately if it isn't current (frees its slot right
// away); if pid is current, behaves like Exit(0).
func Kill(pid uint32) bool {
	i := findByPID(pid)
	if i == noTask {
		return false
	}
	if pid == 0 {
		return false
	}
	if i == current {
		Exit(0)
		return true
	}

	FreeStack(table[i].stackBase)
	unlinkFromList(i)
	table[i] = Task{prev: noTask, next: noTask}
	return true
}

func findByPID(pid uint32) index {
	for i := range table {
		if table[i].State != Dead && table[i].PID == pid {
			return index(i)
		}
	}
	return noTask
}

// Block transitions the current task Running->Blocked and reschedules.
func Block() {
	table[current].State = Blocked
	schedule()
}

// Unblock transitions pid Blocked->Ready without forcing a reschedule.
func Unblock(pid uint32) {
	i := findByPID(pid)
	if i == noTask || table[i].State != Blocked {
		return
	}
	table[i].State = Ready
}

// Sleep transitions the current task to Sleeping until at least ms
// milliseconds (at one tick per millisecond nominal resolution) have
// elapsed, then reschedules.
func Sleep(ms uint64) {
	table[current].State = Sleeping
	table[current].wakeTick = ticks + ms
	schedule()
}

// Yield gives up the remainder of the current time slice.
func Yield() {
	table[current].timeSlice = 0
	schedule()
}

// Tick is called from the timer ISR. It accounts cpu time for the running
// task, wakes any Sleeping task whose wake tick has elapsed, and invokes
// schedule once the current time slice is exhausted.
func Tick() {
	ticks++
	if current == noTask {
		return // Init has not run yet: nothing to account or schedule
	}

	table[current].cpuTicks++
	table[current].timeSlice--

	for i := range table {
		if table[i].State == Sleeping && ticks >= table[i].wakeTick {
			table[i].State = Ready
		}
	}

	if table[current].timeSlice <= 0 {
		schedule()
	}
}

// schedule reclaims any non-current Zombie slot, picks the next Ready task
// round-robin from current.next (falling back to idle), and performs a
// context switch if the chosen task differs from current.
func schedule() {
	gcZombies()

	next := pickNext()

	outgoing := current
	if table[outgoing].State == Running {
		table[outgoing].State = Ready
	}
	table[next].State = Running
	table[next].timeSlice = DefaultTimeSlice
	current = next

	if next == outgoing {
		return
	}
	contextSwitch(&table[outgoing].esp, table[next].esp)
}

func gcZombies() {
	for i := range table {
		if index(i) != current && table[i].State == Zombie {
			FreeStack(table[i].stackBase)
			unlinkFromList(index(i))
			table[i] = Task{prev: noTask, next: noTask}
		}
	}
}

func pickNext() index {
	if liveCount == 0 {
		return 0 // idle
	}
	i := table[current].next
	for n := 0; n < liveCount; n++ {
		if table[i].State == Ready {
			return i
		}
		i = table[i].next
	}
	return 0 // no Ready task: fall back to idle
}

// Stats summarizes the task table for testable invariants.
type Stats struct {
	Total, Ready, Running, Blocked, Sleeping, Zombie int
}

func StatsSnapshot() Stats {
	var s Stats
	for i := range table {
		switch table[i].State {
		case Ready:
			s.Ready++
		case Running:
			s.Running++
		case Blocked:
			s.Blocked++
		case Sleeping:
			s.Sleeping++
		case Zombie:
			s.Zombie++
		default:
			continue
		}
		s.Total++
	}
	return s
}
