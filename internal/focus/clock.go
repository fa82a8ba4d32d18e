package focus

import "time"

type Timer interface {
	Stop() bool
}

// Clock schedules the warning expiry. Tests swap in a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func SystemClock() Clock {
	return realClock{}
}
