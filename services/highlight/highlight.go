package highlight

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/meghashyamc/clinicsearch/config"
	"github.com/meghashyamc/clinicsearch/db/kvdb"
	"github.com/meghashyamc/clinicsearch/events"
	"github.com/meghashyamc/clinicsearch/logger"
	"github.com/meghashyamc/clinicsearch/services/index"
)

const (
	highlightSlot = "searchHighlight"
	timestampSlot = "searchTimestamp"
)

// Store is the shared key-value storage the two highlight slots live in.
// Writes to the two slots are not atomic together.
type Store interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
	Delete(bucket string, key string) error
	GetAllKeys(bucket string) ([]string, error)
}

// Navigator moves a session to another route.
type Navigator interface {
	Navigate(ctx context.Context, session string, route string) error
}

type Selection struct {
	ID          string
	Page        index.Page
	CurrentPage index.Page
}

type Outcome struct {
	Stored    bool   `json:"stored"`
	Broadcast bool   `json:"broadcast"`
	Navigated bool   `json:"navigated"`
	Route     string `json:"route,omitempty"`
}

type request struct {
	id       string
	issuedAt time.Time
}

func (r request) expiresAt(ttl time.Duration) time.Time {
	return r.issuedAt.Add(ttl)
}

type Correlator struct {
	logger      logger.Logger
	store       Store
	bus         events.Bus
	navigator   Navigator
	ttl         time.Duration
	scrollDelay time.Duration
	now         func() time.Time
}

// New returns a correlator. A nil navigator publishes navigate events on the bus.
func New(logger logger.Logger, cfg *config.Config, store Store, bus events.Bus, navigator Navigator) *Correlator {
	if navigator == nil {
		navigator = NewBusNavigator(bus)
	}
	return &Correlator{
		logger:      logger,
		store:       store,
		bus:         bus,
		navigator:   navigator,
		ttl:         cfg.GetHighlightTTL(),
		scrollDelay: cfg.GetHighlightScrollDelay(),
		now:         time.Now,
	}
}

// Select records the chosen result for the session. When the session is
// already on the destination page the page is told directly, otherwise the
// session is navigated there and the page picks the request up on mount.
// Failures are logged and reflected in the outcome only.
func (c *Correlator) Select(ctx context.Context, session string, selection Selection) Outcome {
	req := request{id: selection.ID, issuedAt: time.UnixMilli(c.now().UnixMilli())}

	outcome := Outcome{}
	if err := c.write(session, req); err != nil {
		c.logger.Warn("could not store highlight request, skipping highlight", "session", session, "id", req.id, "err", err.Error())
	} else {
		outcome.Stored = true
	}

	if selection.CurrentPage == selection.Page {
		if !outcome.Stored {
			return outcome
		}
		msg := events.Message{
			Topic:       session,
			Event:       events.EventHighlight,
			HighlightID: req.id,
			Page:        string(selection.Page),
			IssuedAt:    req.issuedAt,
		}
		if err := c.bus.Publish(ctx, msg); err != nil {
			c.logger.Warn("could not publish highlight", "session", session, "id", req.id, "err", err.Error())
			return outcome
		}
		outcome.Broadcast = true
		return outcome
	}

	outcome.Route = selection.Page.Route()
	if err := c.navigator.Navigate(ctx, session, outcome.Route); err != nil {
		c.logger.Warn("could not navigate", "session", session, "route", outcome.Route, "err", err.Error())
		return outcome
	}
	outcome.Navigated = true
	return outcome
}

func slotKey(session string, slot string) string {
	return session + "/" + slot
}

func (c *Correlator) write(session string, req request) error {
	if err := c.store.Set(kvdb.HighlightsBucket, slotKey(session, highlightSlot), req.id); err != nil {
		return err
	}
	return c.store.Set(kvdb.HighlightsBucket, slotKey(session, timestampSlot), strconv.FormatInt(req.issuedAt.UnixMilli(), 10))
}

// read returns the stored request, or false if either slot is missing.
func (c *Correlator) read(session string) (request, bool, error) {
	id, err := c.store.Get(kvdb.HighlightsBucket, slotKey(session, highlightSlot))
	if err != nil {
		if errors.Is(err, kvdb.ErrNotFound) {
			return request{}, false, nil
		}
		return request{}, false, err
	}

	timestamp, err := c.store.Get(kvdb.HighlightsBucket, slotKey(session, timestampSlot))
	if err != nil {
		if errors.Is(err, kvdb.ErrNotFound) {
			return request{}, false, nil
		}
		return request{}, false, err
	}

	millis, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return request{}, false, fmt.Errorf("invalid highlight timestamp %q: %w", timestamp, err)
	}

	return request{id: id, issuedAt: time.UnixMilli(millis)}, true, nil
}

// clear removes both slots.
func (c *Correlator) clear(session string) {
	for _, slot := range []string{highlightSlot, timestampSlot} {
		if err := c.store.Delete(kvdb.HighlightsBucket, slotKey(session, slot)); err != nil {
			c.logger.Warn("could not clear highlight slot", "session", session, "slot", slot, "err", err.Error())
		}
	}
}

// clearIfCurrent removes the slots only while they still hold req, so an
// expiring view does not wipe a newer selection.
func (c *Correlator) clearIfCurrent(session string, req request) {
	stored, ok, err := c.read(session)
	if err != nil {
		c.logger.Warn("could not read highlight request", "session", session, "err", err.Error())
		return
	}
	if !ok || stored.id != req.id || !stored.issuedAt.Equal(req.issuedAt) {
		return
	}
	c.clear(session)
}

func (c *Correlator) expired(req request) bool {
	return !c.now().Before(req.expiresAt(c.ttl))
}

// matchesRecord reports whether a stored highlight id refers to recordID.
// Supplies and equipment are stored with their department prefix.
func matchesRecord(highlightID string, recordID string) bool {
	return highlightID == recordID ||
		highlightID == "medical-"+recordID ||
		highlightID == "dental-"+recordID
}
