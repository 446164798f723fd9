package gaps

import (
	"testing"
)

func TestFindGaps(t *testing.T) {
	const res = int64(60000)
	bar := func(n int64) int64 { return 1700000040000 + n*res }

	tests := []struct {
		name     string
		observed []int64
		end      int64
		want     []span
	}{
		{
			name:     "full coverage",
			observed: []int64{bar(0), bar(1), bar(2), bar(3)},
			end:      bar(3),
			want:     nil,
		},
		{
			name:     "single missing bar",
			observed: []int64{bar(0), bar(2)},
			end:      bar(2),
			want:     []span{{bar(1), bar(1)}},
		},
		{
			name:     "run of missing bars",
			observed: []int64{bar(0), bar(5)},
			end:      bar(5),
			want:     []span{{bar(1), bar(4)}},
		},
		{
			name:     "trailing gap reaches window end",
			observed: []int64{bar(0), bar(1)},
			end:      bar(4),
			want:     []span{{bar(2), bar(4)}},
		},
		{
			name:     "two separate holes",
			observed: []int64{bar(0), bar(2), bar(5)},
			end:      bar(5),
			want:     []span{{bar(1), bar(1)}, {bar(3), bar(4)}},
		},
		{
			name:     "no coverage before first bar reported",
			observed: []int64{bar(10), bar(11)},
			end:      bar(11),
			want:     nil,
		},
		{
			name:     "empty observed",
			observed: nil,
			end:      bar(5),
			want:     nil,
		},
		{
			name:     "end before first observed",
			observed: []int64{bar(5)},
			end:      bar(3),
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findGaps(tt.observed, tt.end, res)
			if len(got) != len(tt.want) {
				t.Fatalf("gaps = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("gap[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFindGapsZeroResolution(t *testing.T) {
	if got := findGaps([]int64{100}, 200, 0); got != nil {
		t.Errorf("gaps = %v, want nil for zero resolution", got)
	}
}

func TestAlignDown(t *testing.T) {
	tests := []struct {
		ts, resolution, want int64
	}{
		{120000, 60000, 120000}, // already aligned
		{125000, 60000, 120000},
		{59999, 60000, 0},
		{100, 0, 100}, // degenerate resolution passes through
	}
	for _, tt := range tests {
		if got := alignDown(tt.ts, tt.resolution); got != tt.want {
			t.Errorf("alignDown(%d, %d) = %d, want %d", tt.ts, tt.resolution, got, tt.want)
		}
	}
}
