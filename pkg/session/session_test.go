package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ReserveSlot_AdmitsUpToCapacity(t *testing.T) {
	t.Parallel()

	s := New(2, time.Minute)

	id1, release1, ok1 := s.ReserveSlot()
	require.True(t, ok1)
	require.NotEmpty(t, id1)

	_, _, ok2 := s.ReserveSlot()
	require.True(t, ok2)

	_, _, ok3 := s.ReserveSlot()
	assert.False(t, ok3, "third reservation should be refused at capacity 2")

	release1()
	_, _, ok4 := s.ReserveSlot()
	assert.True(t, ok4, "releasing a slot should free capacity")
}

func TestStore_ReserveSlot_ReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	s := New(1, time.Minute)
	_, release, ok := s.ReserveSlot()
	require.True(t, ok)

	release()
	release() // must not double-decrement inFlight

	_, _, ok2 := s.ReserveSlot()
	assert.True(t, ok2)
	_, _, ok3 := s.ReserveSlot()
	assert.False(t, ok3)
}

func TestStore_ReserveSlot_EvictsOldestWhenFull(t *testing.T) {
	t.Parallel()

	s := New(1, time.Minute)
	s.Set(&Record{ID: "old", LastSeen: time.Now().Add(-time.Hour)})

	_, _, ok := s.ReserveSlot()
	assert.True(t, ok, "reservation should evict the oldest record to make room")
	assert.Equal(t, 0, s.Size())
}

func TestStore_SetGetTouchRemove(t *testing.T) {
	t.Parallel()

	s := New(10, time.Minute)
	rec := &Record{ID: "abc", LastSeen: time.Unix(0, 0)}
	s.Set(rec)

	got, ok := s.Get("abc")
	require.True(t, ok)
	assert.Equal(t, "abc", got.ID)

	s.Touch("abc")
	touched, _ := s.Get("abc")
	assert.True(t, touched.LastSeen.After(time.Unix(0, 0)))

	s.Remove("abc")
	_, ok = s.Get("abc")
	assert.False(t, ok)
}

func TestStore_Touch_NeverGoesBackwards(t *testing.T) {
	t.Parallel()

	s := New(10, time.Minute)
	future := time.Now().Add(time.Hour)
	s.Set(&Record{ID: "x", LastSeen: future})

	s.Touch("x")
	rec, _ := s.Get("x")
	assert.Equal(t, future, rec.LastSeen)
}

func TestStore_EvictOldest(t *testing.T) {
	t.Parallel()

	s := New(10, time.Minute)
	now := time.Now()
	s.Set(&Record{ID: "a", LastSeen: now.Add(-time.Minute)})
	s.Set(&Record{ID: "b", LastSeen: now})

	evicted := s.EvictOldest()
	require.NotNil(t, evicted)
	assert.Equal(t, "a", evicted.ID)
	assert.Equal(t, 1, s.Size())
}

func TestStore_EvictOldest_EmptyStore(t *testing.T) {
	t.Parallel()

	s := New(10, time.Minute)
	assert.Nil(t, s.EvictOldest())
}

func TestStore_EvictExpired(t *testing.T) {
	t.Parallel()

	s := New(10, 10*time.Millisecond)
	s.Set(&Record{ID: "stale", LastSeen: time.Now().Add(-time.Hour)})
	s.Set(&Record{ID: "fresh", LastSeen: time.Now()})

	expired := s.EvictExpired()
	require.Len(t, expired, 1)
	assert.Equal(t, "stale", expired[0].ID)
	assert.Equal(t, 1, s.Size())
}

func TestStore_Clear(t *testing.T) {
	t.Parallel()

	s := New(10, time.Minute)
	s.Set(&Record{ID: "a", LastSeen: time.Now()})
	s.Set(&Record{ID: "b", LastSeen: time.Now()})

	all := s.Clear()
	assert.Len(t, all, 2)
	assert.Equal(t, 0, s.Size())
}

func TestStore_StartCleanupLoop_EvictsAndNotifies(t *testing.T) {
	t.Parallel()

	s := New(10, 10*time.Millisecond)
	s.Set(&Record{ID: "stale", LastSeen: time.Now().Add(-time.Hour)})

	evictedCh := make(chan *Record, 1)
	stop := s.StartCleanupLoop(5*time.Millisecond, func(rec *Record) {
		select {
		case evictedCh <- rec:
		default:
		}
	})
	defer stop()

	select {
	case rec := <-evictedCh:
		assert.Equal(t, "stale", rec.ID)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected cleanup loop to evict the stale record")
	}
}
