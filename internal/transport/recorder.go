package transport

import (
	"sync"
	"time"
)

// Delivery is a payload captured by a Recorder.
type Delivery struct {
	URL    string
	Body   []byte
	Tier   string
	Sync   bool
	SentAt time.Time
}

// Recorder is an in-memory tier that captures deliveries instead of
// sending them. It implements Beacon, Requester and Fetcher.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
	now        func() time.Time
}

// NewRecorder creates an empty Recorder. A nil now uses time.Now.
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now}
}

// SendBeacon records a beacon delivery.
func (r *Recorder) SendBeacon(url string, body []byte) bool {
	r.record(Delivery{URL: url, Body: body, Tier: TierBeacon})
	return true
}

// Request records a request delivery.
func (r *Recorder) Request(url string, body []byte, sync bool) error {
	r.record(Delivery{URL: url, Body: body, Tier: TierRequest, Sync: sync})
	return nil
}

// Fetch records a fetch delivery.
func (r *Recorder) Fetch(url string, body []byte) (<-chan error, error) {
	r.record(Delivery{URL: url, Body: body, Tier: TierFetch})
	done := make(chan error, 1)
	close(done)
	return done, nil
}

// Deliveries returns a copy of the captured deliveries.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.deliveries...)
}

// Reset drops captured deliveries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = nil
}

func (r *Recorder) record(d Delivery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.SentAt = r.now()
	if d.Body != nil {
		d.Body = append([]byte(nil), d.Body...)
	}
	r.deliveries = append(r.deliveries, d)
}
