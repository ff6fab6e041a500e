package gallery

// ResolveClosestIndex converts picked into the units of times using unitScale
// and returns the index of the largest time at or before it. When several
// entries share that time the later index wins. The boolean is false when
// every time is after the pick.
func ResolveClosestIndex(times []float64, picked, unitScale float64) (int, bool) {
	target := picked * unitScale
	best := -1
	for i, t := range times {
		if t > target {
			continue
		}
		if best < 0 || t >= times[best] {
			best = i
		}
	}
	return best, best >= 0
}

// NearestAvailableStep maps a requested step onto steps (sorted ascending).
// An exact match wins; otherwise the greatest step below the request; if no
// step is below it, the first step. ok is false only when steps is empty.
func NearestAvailableStep(steps []int, requested int) (step int, exact, ok bool) {
	if len(steps) == 0 {
		return 0, false, false
	}
	idx := -1
	for i, s := range steps {
		if s == requested {
			return s, true, true
		}
		if s < requested {
			idx = i
		}
	}
	if idx < 0 {
		idx = 0
	}
	return steps[idx], false, true
}

func indexOfStep(steps []int, step int) int {
	for i, s := range steps {
		if s == step {
			return i
		}
	}
	return -1
}
