package highlight

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meghashyamc/clinicsearch/events"
	"github.com/meghashyamc/clinicsearch/services/index"
)

const (
	scrollSelectorFormat = `[data-highlight-id="%s"]`
	changesBufferSize    = 8
)

// Change is what a mounted page is told to do.
type Change struct {
	Event         events.Event `json:"event"`
	HighlightID   string       `json:"highlight_id,omitempty"`
	Route         string       `json:"route,omitempty"`
	ScrollTo      string       `json:"scroll_to,omitempty"`
	ScrollDelayMS int64        `json:"scroll_delay_ms,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
}

// View is one mounted destination page of a session.
type View struct {
	correlator *Correlator
	session    string
	page       index.Page
	subscriber *events.Subscriber

	mu      sync.Mutex
	current *request

	// owned by run once it has started
	deadline       context.Context
	cancelDeadline context.CancelFunc

	changes   chan Change
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Mount subscribes the page to its session and then picks up a pending
// request from storage. Stale requests are cleared. The view lives until
// Close is called or ctx is done.
func (c *Correlator) Mount(ctx context.Context, session string, page index.Page) *View {
	viewCtx, cancel := context.WithCancel(ctx)
	view := &View{
		correlator: c,
		session:    session,
		page:       page,
		subscriber: c.bus.Subscribe(session),
		changes:    make(chan Change, changesBufferSize),
		ctx:        viewCtx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	req, ok, err := c.read(session)
	switch {
	case err != nil:
		c.logger.Warn("could not read highlight request, skipping highlight", "session", session, "err", err.Error())
	case !ok:
	case c.expired(req):
		c.logger.Debug("clearing stale highlight request", "session", session, "id", req.id)
		c.clear(session)
	default:
		view.apply(req)
	}

	go view.run()
	return view
}

func (v *View) run() {
	defer close(v.done)
	defer close(v.changes)
	defer func() {
		if v.cancelDeadline != nil {
			v.cancelDeadline()
		}
	}()

	for {
		var deadline <-chan struct{}
		if v.deadline != nil {
			deadline = v.deadline.Done()
		}

		select {
		case <-v.ctx.Done():
			return
		case <-deadline:
			if v.ctx.Err() != nil {
				return
			}
			v.expire()
		case msg, ok := <-v.subscriber.C():
			if !ok {
				return
			}
			v.handle(msg)
		}
	}
}

func (v *View) handle(msg events.Message) {
	switch msg.Event {
	case events.EventHighlight:
		if msg.Page != string(v.page) {
			return
		}
		req := request{id: msg.HighlightID, issuedAt: msg.IssuedAt}
		if v.correlator.expired(req) {
			return
		}
		v.mu.Lock()
		same := v.current != nil && v.current.id == req.id && v.current.issuedAt.Equal(req.issuedAt)
		v.mu.Unlock()
		if same {
			return
		}
		v.apply(req)
	case events.EventNavigate:
		v.emit(Change{Event: events.EventNavigate, Route: msg.Route})
	}
}

// apply makes req the current highlight and arms its expiry.
func (v *View) apply(req request) {
	v.mu.Lock()
	v.current = &req
	v.mu.Unlock()

	if v.cancelDeadline != nil {
		v.cancelDeadline()
	}
	expiresAt := req.expiresAt(v.correlator.ttl)
	v.deadline, v.cancelDeadline = context.WithTimeout(v.ctx, expiresAt.Sub(v.correlator.now()))

	v.emit(Change{
		Event:         events.EventHighlight,
		HighlightID:   req.id,
		ScrollTo:      fmt.Sprintf(scrollSelectorFormat, req.id),
		ScrollDelayMS: v.correlator.scrollDelay.Milliseconds(),
		ExpiresAt:     &expiresAt,
	})
}

func (v *View) expire() {
	v.cancelDeadline()
	v.deadline, v.cancelDeadline = nil, nil

	v.mu.Lock()
	req := v.current
	v.current = nil
	v.mu.Unlock()
	if req == nil {
		return
	}

	v.correlator.clearIfCurrent(v.session, *req)
	v.emit(Change{Event: events.EventClear, HighlightID: req.id})
}

func (v *View) emit(change Change) {
	select {
	case v.changes <- change:
	default:
		v.correlator.logger.Warn("dropping highlight change; view is not reading", "session", v.session, "page", v.page, "event", change.Event)
	}
}

// IsHighlighted reports whether recordID is the live highlight of this view.
func (v *View) IsHighlighted(recordID string) bool {
	id, active := v.Current()
	return active && matchesRecord(id, recordID)
}

// Current returns the highlighted id, if one is live.
func (v *View) Current() (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current == nil || v.correlator.expired(*v.current) {
		return "", false
	}
	return v.current.id, true
}

// Changes is closed once the view is closed.
func (v *View) Changes() <-chan Change {
	return v.changes
}

// Close unmounts the view. It is safe to call more than once.
func (v *View) Close() {
	v.closeOnce.Do(func() {
		v.cancel()
		v.subscriber.Close()
		<-v.done
	})
}
