// Package notifier is the best-effort side channel: transaction events are
// queued and POSTed to a webhook by a detached worker. Nothing here ever
// blocks or fails the transaction that produced the event.
package notifier

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/aqro/aqro-server/models"
)

const (
	queueSize      = 64
	requestTimeout = 3 * time.Second
)

type Webhook struct {
	url    string
	client *http.Client

	queue chan models.Notification
	done  chan struct{}
	wg    sync.WaitGroup

	delivered atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// NewWebhook starts the delivery worker. An empty url disables delivery;
// events are then counted and discarded.
func NewWebhook(url string) *Webhook {
	w := &Webhook{
		url:    url,
		client: &http.Client{Timeout: requestTimeout},
		queue:  make(chan models.Notification, queueSize),
		done:   make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Notify enqueues without blocking. A full queue drops the event; that is
// the contract, the ledger row already committed.
func (w *Webhook) Notify(n models.Notification) {
	select {
	case w.queue <- n:
	default:
		w.dropped.Inc()
		logrus.WithField("event", n.Event).Warn("notification queue full, event dropped")
	}
}

// Close stops accepting events and waits for the queue to drain.
func (w *Webhook) Close() {
	close(w.done)
	w.wg.Wait()
}

func (w *Webhook) Delivered() int64 { return w.delivered.Load() }
func (w *Webhook) Dropped() int64   { return w.dropped.Load() }
func (w *Webhook) Failed() int64    { return w.failed.Load() }

func (w *Webhook) run() {
	defer w.wg.Done()
	for {
		select {
		case n := <-w.queue:
			w.deliver(n)
		case <-w.done:
			// drain what is already queued
			for {
				select {
				case n := <-w.queue:
					w.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (w *Webhook) deliver(n models.Notification) {
	if w.url == "" {
		w.dropped.Inc()
		return
	}

	body, err := json.Marshal(n)
	if err != nil {
		w.failed.Inc()
		logrus.WithError(err).Warn("failed to encode notification")
		return
	}

	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		w.failed.Inc()
		logrus.WithError(err).WithField("event", n.Event).Warn("notification delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		w.failed.Inc()
		logrus.WithFields(logrus.Fields{
			"event":  n.Event,
			"status": resp.StatusCode,
		}).Warn("notification rejected by webhook")
		return
	}
	w.delivered.Inc()
}
