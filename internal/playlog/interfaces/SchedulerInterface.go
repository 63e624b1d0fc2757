package interfaces

type SchedulerInterface interface {
	Init()
	Stop()
	Restore() error
	Persist() error
	// StartSync begins the periodic sync tick; StopSync halts it. Both are
	// idempotent and driven by the explicit enable/disable event, never polled.
	StartSync()
	StopSync()
}
