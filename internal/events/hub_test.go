package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishBuffersAndDelivers(t *testing.T) {
	h := NewHub(8)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(ForwardStarted, Forward{Module: "digest", Mode: "direct", Source: "/data/a.bin"})

	ev := <-ch
	assert.Equal(t, int64(1), ev.ID)
	assert.Equal(t, ForwardStarted, ev.Type)

	var payload Forward
	require.NoError(t, json.Unmarshal(ev.Data, &payload))
	assert.Equal(t, "digest", payload.Module)
	assert.Equal(t, "/data/a.bin", payload.Source)

	h.Publish(ForwardCompleted, nil)
	assert.JSONEq(t, `{}`, string((<-ch).Data))
}

func TestSinceKeepsNewestWithinCapacity(t *testing.T) {
	h := NewHub(3)
	for i := 0; i < 5; i++ {
		h.Publish(ForwardCompleted, nil)
	}

	all := h.Since(0)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{3, 4, 5}, []int64{all[0].ID, all[1].ID, all[2].ID})

	later := h.Since(4)
	require.Len(t, later, 1)
	assert.Equal(t, int64(5), later[0].ID)
}

func TestCancelClosesChannelOnce(t *testing.T) {
	h := NewHub(0)
	ch, cancel := h.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	// Publishing after every subscriber left must not panic.
	h.Publish(ForwardFailed, Forward{Error: "boom"})
	assert.Len(t, h.Since(0), 1)
}
