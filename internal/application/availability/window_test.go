package availability

import "testing"

func TestWindowSkippedNeverReady(t *testing.T) {
	for _, progress := range []float64{0, 0.3, 0.99, 1} {
		w := NewWindow(1000, progress, DefaultMinReadyFraction, true, true)
		if w.Ready(0, 0) || w.Ready(0, 10) {
			t.Fatalf("expected skipped file never ready at progress %.2f", progress)
		}
	}
}

func TestWindowSequentialScenario(t *testing.T) {
	w := NewWindow(1_000_000, 0.4, DefaultMinReadyFraction, true, false)
	if w.Available != 400_000 {
		t.Fatalf("expected 400000 available bytes, got %d", w.Available)
	}
	if !w.Ready(0, 199_999) {
		t.Fatalf("expected head range to be ready")
	}
	if w.Ready(500_000, 599_999) {
		t.Fatalf("expected range past progress to be not ready")
	}
	if !w.Ready(100_000, 399_999) {
		t.Fatalf("expected range ending below available bytes to be ready")
	}
	if w.Ready(100_000, 400_000) {
		t.Fatalf("expected range touching the first missing byte to be not ready")
	}
}

func TestWindowNonSequentialOnlyTrustsHead(t *testing.T) {
	w := NewWindow(1_000_000, 0.4, DefaultMinReadyFraction, false, false)
	if !w.Ready(0, 199_999) {
		t.Fatalf("expected range from byte zero to be ready")
	}
	if w.Ready(1, 199_999) {
		t.Fatalf("expected non-zero start to be refused without sequential mode")
	}
}

func TestWindowMinimumFloor(t *testing.T) {
	below := NewWindow(1_000_000, 0.049, DefaultMinReadyFraction, true, false)
	if below.Ready(0, 100) {
		t.Fatalf("expected nothing ready below the readiness floor")
	}
	at := NewWindow(1_000_000, 0.05, DefaultMinReadyFraction, true, false)
	if !at.Ready(0, 100) {
		t.Fatalf("expected head ready once the floor is reached")
	}
}

func TestWindowZeroSizeNeverReady(t *testing.T) {
	w := NewWindow(0, 1, DefaultMinReadyFraction, true, false)
	if w.Ready(0, 0) {
		t.Fatalf("expected file without metadata to be not ready")
	}
	if w.ReadableEnd(0) != -1 {
		t.Fatalf("expected no readable end")
	}
}

func TestWindowCompleteIgnoresOrdering(t *testing.T) {
	w := NewWindow(1000, 1, DefaultMinReadyFraction, false, false)
	if !w.Complete() || !w.Ready(500, 999) {
		t.Fatalf("expected complete file to be fully readable")
	}
	if w.Ready(500, 1000) {
		t.Fatalf("expected range past the end to be refused")
	}
	if w.ReadableEnd(10) != 999 {
		t.Fatalf("expected readable end 999, got %d", w.ReadableEnd(10))
	}
}

func TestWindowReadyIsMonotonicInProgress(t *testing.T) {
	const size = 10_000
	ranges := [][2]int64{{0, 0}, {0, 499}, {0, 4_999}, {2_000, 2_999}, {9_000, 9_999}, {0, 9_999}}
	for _, sequential := range []bool{true, false} {
		for _, r := range ranges {
			wasReady := false
			for step := 0; step <= 100; step++ {
				w := NewWindow(size, float64(step)/100, DefaultMinReadyFraction, sequential, false)
				ready := w.Ready(r[0], r[1])
				if wasReady && !ready {
					t.Fatalf("range %v became not ready at progress %d%% (sequential=%v)", r, step, sequential)
				}
				wasReady = wasReady || ready
			}
		}
	}
}

func TestWindowReadyMatchesAvailablePrefix(t *testing.T) {
	w := NewWindow(10_000, 0.37, DefaultMinReadyFraction, true, false)
	for start := int64(0); start < w.Size; start += 97 {
		for end := start; end < w.Size; end += 131 {
			want := end < w.Available
			if got := w.Ready(start, end); got != want {
				t.Fatalf("Ready(%d,%d) = %v, want %v", start, end, got, want)
			}
		}
	}
}

func TestWindowReadableEnd(t *testing.T) {
	w := NewWindow(1_000_000, 0.4, DefaultMinReadyFraction, true, false)
	if got := w.ReadableEnd(0); got != 399_999 {
		t.Fatalf("expected readable end 399999, got %d", got)
	}
	if got := w.ReadableEnd(450_000); got != -1 {
		t.Fatalf("expected -1 past available bytes, got %d", got)
	}
}
