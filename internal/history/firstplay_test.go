package history

import (
	"fmt"
	"testing"
)

func TestFirstPlayFilter_Mark(t *testing.T) {
	filter := NewFirstPlayFilter(100, 0.001)

	if filter.Seen("dQw4w9WgXcQ") {
		t.Error("empty filter should not report any identifier as seen")
	}

	if !filter.Mark("dQw4w9WgXcQ") {
		t.Error("first Mark() should report a first play")
	}
	if filter.Mark("dQw4w9WgXcQ") {
		t.Error("second Mark() of the same identifier should not report a first play")
	}
	if !filter.Seen("dQw4w9WgXcQ") {
		t.Error("identifier should be seen after marking")
	}
	if filter.Size() != 1 {
		t.Errorf("filter size = %d, want 1", filter.Size())
	}
}

func TestFirstPlayFilter_NonPositiveCapacity(t *testing.T) {
	for _, maxTracked := range []int{0, -1} {
		filter := NewFirstPlayFilter(maxTracked, 0.001)

		if !filter.Mark("dQw4w9WgXcQ") {
			t.Errorf("NewFirstPlayFilter(%d) should still track first plays", maxTracked)
		}
		if filter.Mark("dQw4w9WgXcQ") {
			t.Errorf("NewFirstPlayFilter(%d) should not report a repeat as first play", maxTracked)
		}
	}
}

func TestFirstPlayFilter_Load(t *testing.T) {
	filter := NewFirstPlayFilter(100, 0.001)
	filter.Load([]string{"aaaaa", "bbbbb", ""})

	if filter.Size() != 2 {
		t.Errorf("filter size after Load = %d, want 2 (empty identifier skipped)", filter.Size())
	}
	if filter.Mark("aaaaa") {
		t.Error("loaded identifier should not count as a first play")
	}
	if !filter.Mark("ccccc") {
		t.Error("new identifier after Load should count as a first play")
	}

	// Load replaces the tracked set entirely.
	filter.Load([]string{"ddddd"})
	if filter.Seen("aaaaa") {
		t.Error("identifier from before reload should be gone")
	}
	if !filter.Seen("ddddd") {
		t.Error("reloaded identifier should be seen")
	}
}

func TestFirstPlayFilter_EvictionBound(t *testing.T) {
	const capacity = 10
	filter := NewFirstPlayFilter(capacity, 0.001)

	for i := 0; i < capacity*3; i++ {
		filter.Mark(fmt.Sprintf("ident%05d", i))
	}

	if filter.Size() > capacity {
		t.Errorf("filter size = %d, want at most %d", filter.Size(), capacity)
	}

	// The most recently marked identifier must survive eviction.
	last := fmt.Sprintf("ident%05d", capacity*3-1)
	if !filter.Seen(last) {
		t.Errorf("most recent identifier %s evicted", last)
	}
}
