package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSetGetDelete(t *testing.T) {
	s := NewStore()

	s.Set(&State{Id: "a", URL: "https://x", Status: StatusPending, StartedAt: time.Now()})

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	s.Delete("a")
	_, err = s.Get("a")
	assert.Error(t, err)
}

func TestStoreUpdate(t *testing.T) {
	s := NewStore()
	s.Set(&State{Id: "a", Status: StatusPending})

	s.Update("a", func(st *State) {
		st.Status = StatusRunning
	})

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)

	// unknown id is a no-op
	s.Update("missing", func(st *State) { t.Fatal("must not be called") })
}

func TestGetReturnsSnapshotNotLivePointer(t *testing.T) {
	s := NewStore()
	s.Set(&State{Id: "a", Status: StatusPending})

	got, err := s.Get("a")
	require.NoError(t, err)

	// concurrent readers may encode the snapshot while workers keep
	// mutating the stored state; neither side may observe the other
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			s.Update("a", func(st *State) {
				st.Status = StatusRunning
				st.Error = "transient"
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			snap, err := s.Get("a")
			assert.NoError(t, err)
			_, _ = json.Marshal(snap)
		}
	}()
	wg.Wait()

	// the earlier snapshot is unaffected by the updates
	assert.Equal(t, StatusPending, got.Status)
	assert.Empty(t, got.Error)
}

func TestStoreAllSnapshots(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Set(&State{Id: fmt.Sprintf("s-%d", i), Status: StatusPending})
		}(i)
	}
	wg.Wait()

	all := s.All()
	assert.Len(t, all, 10)

	// mutating the snapshot must not touch the store
	all[0].Status = StatusFailed
	got, err := s.Get(all[0].Id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}
