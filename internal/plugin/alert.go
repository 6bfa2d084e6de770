package plugin

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ZDP-Q/PostureCorrection/internal/analyzer"
)

// Alert defaults
const (
	DefaultAlertScore = 0.75
	DefaultAlertHold  = 5 * time.Second
)

// Alerter watches the comparison score of successive frames and notifies
// subscribed plugins when the posture goes bad or recovers. A bad posture
// has to last for the hold time before anyone is notified.
type Alerter struct {
	manager  *Manager
	executor *Executor
	minScore float64
	hold     time.Duration
	now      func() time.Time

	mu        sync.Mutex
	badSince  time.Time
	alerted   bool
	reference string

	wg sync.WaitGroup
}

// NewAlerter creates an Alerter. Scores below minScore count as bad.
func NewAlerter(manager *Manager, executor *Executor, minScore float64, hold time.Duration) *Alerter {
	if minScore <= 0 || minScore > 1 {
		minScore = DefaultAlertScore
	}
	if hold < 0 {
		hold = DefaultAlertHold
	}
	return &Alerter{
		manager:  manager,
		executor: executor,
		minScore: minScore,
		hold:     hold,
		now:      time.Now,
	}
}

// Observe records one compared frame and returns the event it triggered,
// or an empty Event. Frames in which nothing could be evaluated clear a
// pending bad streak without firing.
func (a *Alerter) Observe(score float64, evaluated int, feedback *analyzer.Feedback) Event {
	a.mu.Lock()
	now := a.now()

	var event Event
	switch {
	case evaluated == 0:
		a.badSince = time.Time{}
	case score < a.minScore:
		if a.badSince.IsZero() {
			a.badSince = now
		}
		if !a.alerted && now.Sub(a.badSince) >= a.hold {
			a.alerted = true
			event = EventPostureBad
		}
	default:
		a.badSince = time.Time{}
		if a.alerted {
			a.alerted = false
			event = EventPostureGood
		}
	}
	reference := a.reference
	a.mu.Unlock()

	if event != "" {
		a.fire(&Request{
			Event:     event,
			Reference: reference,
			Score:     score,
			Feedback:  feedback,
			Timestamp: now,
		})
	}
	return event
}

// SetReference resets the alert state for a new reference and notifies
// subscribers.
func (a *Alerter) SetReference(name string) {
	a.mu.Lock()
	changed := a.reference != name
	a.reference = name
	a.badSince = time.Time{}
	a.alerted = false
	now := a.now()
	a.mu.Unlock()

	if changed {
		a.fire(&Request{Event: EventReferenceChanged, Reference: name, Timestamp: now})
	}
}

// Reference returns the name of the reference alerts are reported against.
func (a *Alerter) Reference() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reference
}

// Alerted reports whether a bad event is outstanding.
func (a *Alerter) Alerted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.alerted
}

func (a *Alerter) fire(req *Request) {
	if a.manager == nil || a.executor == nil {
		return
	}

	for _, p := range a.manager.Subscribers(req.Event) {
		pluginReq := *req
		a.wg.Add(1)
		go func(p *Plugin) {
			defer a.wg.Done()
			resp, err := a.executor.Execute(context.Background(), p, &pluginReq)
			if err != nil {
				log.Printf("Plugin %s failed on %s: %v", p.Manifest.Name, req.Event, err)
				return
			}
			if !resp.Success {
				log.Printf("Plugin %s rejected %s: %s", p.Manifest.Name, req.Event, resp.Error)
			}
		}(p)
	}
}

// Wait blocks until every dispatched plugin run has finished.
func (a *Alerter) Wait() {
	a.wg.Wait()
}
