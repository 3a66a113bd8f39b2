package notifier

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aqro/aqro-server/models"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestWebhookDelivers(t *testing.T) {
	received := make(chan models.Notification, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n models.Notification
		require.NoError(t, json.NewDecoder(r.Body).Decode(&n))
		received <- n
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL)
	defer w.Close()

	customerID := uuid.New()
	w.Notify(models.Notification{
		Event:      "container_registered",
		CustomerID: customerID,
		Timestamp:  time.Now(),
	})

	select {
	case n := <-received:
		require.Equal(t, "container_registered", n.Event)
		require.Equal(t, customerID, n.CustomerID)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never received the event")
	}

	waitFor(t, func() bool { return w.Delivered() == 1 })
}

func TestWebhookFailuresAreSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL)

	// Notify must return immediately regardless of what the endpoint does.
	start := time.Now()
	for i := 0; i < 5; i++ {
		w.Notify(models.Notification{Event: "rebate_processed", Timestamp: time.Now()})
	}
	require.Less(t, time.Since(start), time.Second)

	w.Close()
	require.Equal(t, int64(5), w.Failed())
	require.Equal(t, int64(0), w.Delivered())
}

func TestWebhookUnreachableEndpoint(t *testing.T) {
	w := NewWebhook("http://127.0.0.1:1/unreachable")

	w.Notify(models.Notification{Event: "container_returned", Timestamp: time.Now()})
	w.Close()

	require.Equal(t, int64(1), w.Failed())
}

func TestWebhookDisabledWithoutURL(t *testing.T) {
	w := NewWebhook("")

	w.Notify(models.Notification{Event: "container_registered", Timestamp: time.Now()})
	w.Close()

	require.Equal(t, int64(0), w.Delivered())
	require.Equal(t, int64(0), w.Failed())
}

func TestWebhookCloseDrainsQueue(t *testing.T) {
	var count int64
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		if count == 3 {
			close(done)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL)
	for i := 0; i < 3; i++ {
		w.Notify(models.Notification{Event: "container_returned", Timestamp: time.Now()})
	}
	w.Close()

	select {
	case <-done:
	default:
		t.Fatal("queued events were not delivered before Close returned")
	}
	require.Equal(t, int64(3), w.Delivered())
}
