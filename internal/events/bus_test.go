package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishAndDrain(t *testing.T) {
	b := NewBus(4, zerolog.Nop())
	b.Publish(Event{Type: TaskCreated, UserID: 1})

	ev := <-b.Events()
	assert.Equal(t, TaskCreated, ev.Type)
	assert.False(t, ev.OccurredAt.IsZero())
}

func TestBus_DropsWhenFull(t *testing.T) {
	b := NewBus(1, zerolog.Nop())
	b.Publish(Event{Type: TaskCreated})
	b.Publish(Event{Type: TaskDeleted}) // buffer full, dropped

	assert.Equal(t, int64(1), b.Dropped())

	ev := <-b.Events()
	assert.Equal(t, TaskCreated, ev.Type)
}

func TestWebhookPublisher_Delivers(t *testing.T) {
	var got atomic.Int32
	var lastType atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		lastType.Store(ev.Type)
		got.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBus(8, zerolog.Nop())
	p := NewWebhookPublisher(b, srv.URL, zerolog.Nop())
	p.Start(ctx)

	b.Publish(Event{Type: TaskCompleted, UserID: 3})
	b.Close()
	p.Wait()

	assert.Equal(t, int32(1), got.Load())
	assert.Equal(t, TaskCompleted, lastType.Load())
}
