package gallery

import "testing"

func TestNearestAvailableStep(t *testing.T) {
	tests := []struct {
		name      string
		steps     []int
		requested int
		want      int
		exact     bool
		ok        bool
	}{
		{"exact", []int{2, 5, 9}, 5, 5, true, true},
		{"greatest below", []int{2, 5, 9}, 7, 5, false, true},
		{"before first", []int{2, 5, 9}, 1, 2, false, true},
		{"after last", []int{2, 5, 9}, 40, 9, false, true},
		{"empty", nil, 3, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, exact, ok := NearestAvailableStep(tt.steps, tt.requested)
			if got != tt.want || exact != tt.exact || ok != tt.ok {
				t.Errorf("NearestAvailableStep(%v, %d) = %d, %v, %v; want %d, %v, %v",
					tt.steps, tt.requested, got, exact, ok, tt.want, tt.exact, tt.ok)
			}
		})
	}
}

func TestResolveClosestIndex(t *testing.T) {
	tests := []struct {
		name   string
		times  []float64
		picked float64
		want   int
		ok     bool
	}{
		{"between samples", []float64{0, 1, 2.5, 4}, 3000, 2, true},
		{"on a sample", []float64{0, 1, 2.5, 4}, 4000, 3, true},
		{"after all", []float64{0, 1, 2.5, 4}, 9000, 3, true},
		{"before all", []float64{1, 2}, 500, -1, false},
		{"later index wins ties", []float64{0, 1, 1, 3}, 1500, 2, true},
		{"empty", nil, 1000, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveClosestIndex(tt.times, tt.picked, 0.001)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ResolveClosestIndex(%v, %v) = %d, %v; want %d, %v", tt.times, tt.picked, got, ok, tt.want, tt.ok)
			}
		})
	}
}
