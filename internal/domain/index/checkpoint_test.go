package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckpoint_ChangeDetection(t *testing.T) {
	cp := &Checkpoint{ContentHash: "h1", FileSize: 100, FileMtime: 1000}

	tests := []struct {
		name        string
		size, mtime int64
		hash        string
		quick       bool
		reindex     bool
		mtimeUpdate bool
	}{
		{"unchanged", 100, 1000, "h1", true, false, false},
		{"touched", 100, 2000, "h1", false, false, true},
		{"content changed same size", 100, 2000, "h2", false, true, false},
		{"grown", 120, 2000, "h3", false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.quick, cp.QuickMatch(tt.size, tt.mtime))
			assert.Equal(t, tt.reindex, cp.NeedsReindex(tt.hash))
			assert.Equal(t, tt.mtimeUpdate, cp.NeedsMtimeUpdate(tt.size, tt.mtime, tt.hash))
		})
	}
}
