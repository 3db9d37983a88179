package renderloop

import (
	"time"

	"github.com/loov/hrtime"
)

// Stats are counters the loop keeps while running.
type Stats struct {
	// Frames is the number of frames submitted and presented.
	Frames int
	// AcquireAborts counts iterations that ended at acquire with an out of
	// date chain.
	AcquireAborts int
	Recreations   int

	// LastFrame is the wall time of the most recent presented frame,
	// measured from the fence wait to the end of present.
	LastFrame time.Duration
	// TotalFrameTime is the sum of all presented frame times.
	TotalFrameTime time.Duration
}

// AverageFrame is the mean presented frame time.
func (s Stats) AverageFrame() time.Duration {
	if s.Frames == 0 {
		return 0
	}
	return s.TotalFrameTime / time.Duration(s.Frames)
}

type frameTimer struct {
	start time.Duration
}

func startFrameTimer() frameTimer {
	return frameTimer{start: hrtime.Now()}
}

func (t frameTimer) elapsed() time.Duration {
	return hrtime.Since(t.start)
}
