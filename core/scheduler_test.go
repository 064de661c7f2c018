package core

import "testing"

func TestTimersRunInWakeOrder(t *testing.T) {
	resetTimers()
	defer resetTimers()

	var order []int
	mk := func(id int, wake uint32) *Timer {
		return &Timer{WakeTime: wake, Handler: func(*Timer) uint8 {
			order = append(order, id)
			return SF_DONE
		}}
	}
	ScheduleTimer(mk(3, 300))
	ScheduleTimer(mk(1, 100))
	ScheduleTimer(mk(2, 200))
	ScheduleTimer(mk(4, 200))

	SetTime(250)
	ProcessTimers()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 4 {
		t.Fatalf("order = %v, want [1 2 4]", order)
	}

	SetTime(300)
	ProcessTimers()
	if len(order) != 4 || order[3] != 3 {
		t.Errorf("order = %v, want timer 3 last", order)
	}
}

func TestTimerWraparound(t *testing.T) {
	resetTimers()
	defer resetTimers()

	fired := 0
	timer := &Timer{WakeTime: 0xFFFFFF00, Handler: func(t *Timer) uint8 {
		fired++
		t.WakeTime += 0x200 // lands past the wrap
		return SF_RESCHEDULE
	}}
	ScheduleTimer(timer)

	SetTime(0xFFFFFF00)
	ProcessTimers()
	if fired != 1 {
		t.Fatalf("fired %d times before wrap, want 1", fired)
	}

	SetTime(0x50)
	ProcessTimers()
	if fired != 1 {
		t.Errorf("timer due at 0x100 fired at 0x50")
	}

	SetTime(0x100)
	ProcessTimers()
	if fired != 2 {
		t.Errorf("fired %d times after wrap, want 2", fired)
	}
}

func TestCancelTimer(t *testing.T) {
	resetTimers()
	defer resetTimers()

	fired := false
	a := &Timer{WakeTime: 10, Handler: func(*Timer) uint8 { fired = true; return SF_DONE }}
	b := &Timer{WakeTime: 20, Handler: func(*Timer) uint8 { return SF_DONE }}
	ScheduleTimer(a)
	ScheduleTimer(b)

	if !CancelTimer(a) {
		t.Fatal("CancelTimer did not find a scheduled timer")
	}
	if CancelTimer(a) {
		t.Error("CancelTimer found a timer twice")
	}

	SetTime(30)
	ProcessTimers()
	if fired {
		t.Error("cancelled timer fired")
	}
	if timerList != nil {
		t.Error("timer list not drained")
	}
}

func TestUptimeExtendsAcrossWrap(t *testing.T) {
	SetTime(0xFFFFFFF0)
	TimerInit()
	if up := GetUptime(); up != 0xFFFFFFF0 {
		t.Fatalf("uptime = %#x", up)
	}
	SetTime(0x10)
	if up := GetUptime(); up != 1<<32|0x10 {
		t.Errorf("uptime after wrap = %#x, want %#x", up, uint64(1<<32|0x10))
	}
	SetTime(0)
	TimerInit()
}
