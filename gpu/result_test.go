package gpu

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Result
	}{
		{"nil", nil, Success},
		{"out of date", errors.Wrap(ErrOutOfDate, "acquire"), OutOfDate},
		{"marked surface lost", errors.Mark(errors.New("vk: surface lost"), ErrSurfaceLost), SurfaceLost},
		{"device lost", errors.Wrapf(ErrDeviceLost, "submit frame %d", 3), DeviceLost},
		{"timeout", ErrTimeout, Timeout},
		{"other", errors.New("out of memory"), Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestResultError(t *testing.T) {
	for _, r := range []Result{Success, Suboptimal, Timeout} {
		if err := ResultError(r); err != nil {
			t.Errorf("ResultError(%s) = %v, want nil", r, err)
		}
	}
	for _, r := range []Result{OutOfDate, SurfaceLost, DeviceLost} {
		if got := Classify(ResultError(r)); got != r {
			t.Errorf("Classify(ResultError(%s)) = %s", r, got)
		}
	}
	if err := ResultError(Unknown); err == nil || Classify(err) != Unknown {
		t.Errorf("ResultError(Unknown) = %v, want an unclassified error", err)
	}
}

func TestIsRecoverable(t *testing.T) {
	if !IsRecoverable(errors.Wrap(ErrOutOfDate, "present")) {
		t.Error("out of date should be recoverable")
	}
	if IsRecoverable(ErrSurfaceLost) || IsRecoverable(ErrDeviceLost) {
		t.Error("surface or device loss must not be recoverable")
	}
}

func TestExtentFollowsWindow(t *testing.T) {
	caps := SurfaceCapabilities{CurrentExtent: Extent2D{Width: ExtentUndefined, Height: ExtentUndefined}}
	if !caps.ExtentFollowsWindow() {
		t.Error("undefined current extent should follow the window")
	}
	caps.CurrentExtent = Extent2D{Width: 800, Height: 600}
	if caps.ExtentFollowsWindow() {
		t.Error("defined current extent should not follow the window")
	}
	if !(Extent2D{Width: 800}).IsZeroArea() {
		t.Error("800x0 should be zero-area")
	}
}
