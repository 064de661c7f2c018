package core

// Timer is a scheduled event. Handler returns SF_RESCHEDULE after moving
// WakeTime forward to run again, or SF_DONE to drop the timer.
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

var (
	timerList   *Timer
	currentTime uint32
)

// ScheduleTimer adds a timer to the schedule. The timer must not already be
// scheduled.
func ScheduleTimer(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	insertTimer(t)
}

// CancelTimer removes a timer from the schedule. It reports whether the
// timer was scheduled.
func CancelTimer(t *Timer) bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for pp := &timerList; *pp != nil; pp = &(*pp).Next {
		if *pp == t {
			*pp = t.Next
			t.Next = nil
			return true
		}
	}
	return false
}

// insertTimer keeps the list ordered by WakeTime. Equal wake times run in
// insertion order.
func insertTimer(t *Timer) {
	pp := &timerList
	for *pp != nil && !TimerIsBefore(t.WakeTime, (*pp).WakeTime) {
		pp = &(*pp).Next
	}
	t.Next = *pp
	*pp = t
}

// TimerDispatch runs every timer whose WakeTime is not after currentTime.
// A handler that reschedules into the past runs again in the same pass, so
// handlers must always move WakeTime forward.
func TimerDispatch() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for timerList != nil && !TimerIsBefore(currentTime, timerList.WakeTime) {
		timer := timerList
		timerList = timer.Next
		timer.Next = nil

		if timer.Handler(timer) == SF_RESCHEDULE {
			insertTimer(timer)
		}
	}
}

// resetTimers drops every scheduled timer.
func resetTimers() {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	for timerList != nil {
		t := timerList
		timerList = t.Next
		t.Next = nil
	}
}
