package video

import "testing"

func TestTrimWindow(t *testing.T) {
	tests := []struct {
		name      string
		actual    float64
		target    float64
		mode      TrimSpec
		wantStart float64
		wantTrim  bool
	}{
		{
			name:      "start keeps the leading window",
			actual:    10, target: 5, mode: TrimFromStart,
			wantStart: 0, wantTrim: true,
		},
		{
			name:      "end keeps the trailing window",
			actual:    10, target: 5, mode: TrimFromEnd,
			wantStart: 5, wantTrim: true,
		},
		{
			name:      "center keeps the middle window",
			actual:    10, target: 5, mode: TrimFromCenter,
			wantStart: 2.5, wantTrim: true,
		},
		{
			name:      "clip at target passes through",
			actual:    5, target: 5, mode: TrimFromEnd,
			wantStart: 0, wantTrim: false,
		},
		{
			name:      "clip under target passes through",
			actual:    4.2, target: 5, mode: TrimFromStart,
			wantStart: 0, wantTrim: false,
		},
		{
			name:      "fractional end trim",
			actual:    9.5, target: 7, mode: TrimFromEnd,
			wantStart: 2.5, wantTrim: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, needed := trimWindow(tt.actual, tt.target, tt.mode)
			if needed != tt.wantTrim {
				t.Fatalf("trimWindow(%v, %v) needed = %v, want %v", tt.actual, tt.target, needed, tt.wantTrim)
			}
			if start != tt.wantStart {
				t.Errorf("trimWindow(%v, %v) start = %v, want %v", tt.actual, tt.target, start, tt.wantStart)
			}
		})
	}
}
