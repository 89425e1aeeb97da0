package guard

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vvka-141/dbretry/pkg/dbretry"
)

var _ dbretry.DepthSource = (*Tracker)(nil)

func TestTracker_EnterNests(t *testing.T) {
	tr := NewTracker("primary")
	ctx := context.Background()
	assert.Equal(t, 0, tr.Depth(ctx))

	outer := tr.Enter(ctx, "tx1")
	inner := tr.Enter(outer, "tx2")

	assert.Equal(t, 0, tr.Depth(ctx))
	assert.Equal(t, 1, tr.Depth(outer))
	assert.Equal(t, 2, tr.Depth(inner))

	v, ok := tr.Value(inner)
	assert.True(t, ok)
	assert.Equal(t, "tx2", v)

	v, ok = tr.Value(outer)
	assert.True(t, ok)
	assert.Equal(t, "tx1", v)

	_, ok = tr.Value(ctx)
	assert.False(t, ok)
}

func TestTracker_ScopedPerResource(t *testing.T) {
	a := NewTracker("a")
	b := NewTracker("b")

	ctx := a.Enter(context.Background(), nil)
	assert.Equal(t, 1, a.Depth(ctx))
	assert.Equal(t, 0, b.Depth(ctx), "another resource must not see a's scope")

	ctx = b.Enter(ctx, nil)
	assert.Equal(t, 1, a.Depth(ctx))
	assert.Equal(t, 1, b.Depth(ctx))
}

func TestTracker_SameNameStillIndependent(t *testing.T) {
	a := NewTracker("db")
	b := NewTracker("db")

	ctx := a.Enter(context.Background(), nil)
	assert.Equal(t, 0, b.Depth(ctx))
}

func TestTracker_ConcurrentCallersDoNotShareDepth(t *testing.T) {
	tr := NewTracker("pool")
	root := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := root
			for j := 0; j <= i%5; j++ {
				ctx = tr.Enter(ctx, j)
			}
			assert.Equal(t, i%5+1, tr.Depth(ctx))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, tr.Depth(root))
}
