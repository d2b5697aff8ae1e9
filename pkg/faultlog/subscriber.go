package faultlog

import (
	"github.com/openracing/wheelsafe/pkg/clock"
	"github.com/openracing/wheelsafe/pkg/fault"
	"github.com/openracing/wheelsafe/pkg/watchdog"
)

// Subscriber turns fault notifications into log events. Plugin overruns
// from a plugin ID are recorded as quarantines. Everything else, including
// an overrun reported by the plugin host component, is a fault.
type Subscriber struct {
	logger    Logger
	sessionID string
	clock     clock.Clock
}

// NewSubscriber returns a fault.Subscriber writing to logger.
func NewSubscriber(logger Logger, sessionID string, clk clock.Clock) *Subscriber {
	if clk == nil {
		clk = clock.Real()
	}
	return &Subscriber{logger: logger, sessionID: sessionID, clock: clk}
}

// Notify implements fault.Subscriber.
func (s *Subscriber) Notify(source string, t fault.Type) {
	event := Event{
		Timestamp: s.clock.Now(),
		SessionID: s.sessionID,
		Category:  CategoryFault,
		Source:    source,
		Fault:     t,
		Message:   t.Description(),
	}
	if _, isComponent := watchdog.ParseComponent(source); t == fault.PluginOverrun && !isComponent {
		event.Category = CategoryQuarantine
		event.PluginID = source
	}
	s.logger.Log(event)
}

var _ fault.Subscriber = (*Subscriber)(nil)
