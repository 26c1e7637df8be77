package highlight

import (
	"context"
	"time"

	"github.com/meghashyamc/clinicsearch/events"
)

// BusNavigator asks the session's client to change route by publishing a
// navigate event on the session topic.
type BusNavigator struct {
	bus events.Bus
}

func NewBusNavigator(bus events.Bus) *BusNavigator {
	return &BusNavigator{bus: bus}
}

func (n *BusNavigator) Navigate(ctx context.Context, session string, route string) error {
	return n.bus.Publish(ctx, events.Message{
		Topic:    session,
		Event:    events.EventNavigate,
		Route:    route,
		IssuedAt: time.Now().UTC(),
	})
}
