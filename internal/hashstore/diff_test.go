package hashstore

import (
	"testing"

	"github.com/openmined/livesync/internal/livesync"
	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	old := livesync.HashSnapshot{"a.js": "1", "b.js": "2", "c.js": "3", "z.js": "9"}
	current := livesync.HashSnapshot{"a.js": "1", "b.js": "22", "d.js": "4", "e.js": "5"}

	diff := Diff(old, current)

	assert.Equal(t, []string{"d.js", "e.js"}, diff.Added)
	assert.Equal(t, []string{"b.js"}, diff.Changed)
	assert.Equal(t, []string{"c.js", "z.js"}, diff.Removed)
	assert.False(t, diff.IsEmpty())
}

func TestDiff_Identical(t *testing.T) {
	snap := livesync.HashSnapshot{"a.js": "1"}
	assert.True(t, Diff(snap, snap).IsEmpty())
	assert.True(t, Diff(nil, nil).IsEmpty())
}

func TestChangedAndMissingShasums(t *testing.T) {
	old := livesync.HashSnapshot{"a.js": "1", "b.js": "2", "gone.js": "7"}
	current := livesync.HashSnapshot{"a.js": "1", "b.js": "22", "new.js": "3"}

	assert.Equal(t, livesync.HashSnapshot{"b.js": "22", "new.js": "3"}, ChangedShasums(old, current))
	assert.Equal(t, livesync.HashSnapshot{"gone.js": "7"}, MissingShasums(old, current))
}
