package runtime

import "time"

// Clock supplies the current time to the retention store. Injected so tests
// can age buffered entries without sleeping.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
