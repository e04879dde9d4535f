package sink

import (
	"errors"
	"fmt"
	"sync"

	"pybake/internal/logging"
)

// Adapter is the common behaviour every run-event sink exposes.
type Adapter interface {
	Configure(any) error     // driver-specific config struct
	Publish(ev *Event) error // deliver one event
	Close() error            // idempotent
}

/*──────── registry ───────*/

type factory = func() Adapter

var (
	regMu sync.RWMutex
	reg   = map[string]factory{}
)

func Register(name string, f factory) {
	regMu.Lock()
	reg[name] = f
	regMu.Unlock()
}

func NewAdapter(name string) (Adapter, error) {
	regMu.RLock()
	f, ok := reg[name]
	regMu.RUnlock()
	if ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}

/*──────── fan-out ───────*/

// Fanout delivers each event to every sink. A failing sink is logged and
// does not stop delivery to the others.
type Fanout struct {
	sinks []Adapter
}

func NewFanout(sinks ...Adapter) *Fanout { return &Fanout{sinks: sinks} }

func (f *Fanout) Add(s Adapter) { f.sinks = append(f.sinks, s) }

func (f *Fanout) Publish(ev *Event) {
	for _, s := range f.sinks {
		if err := s.Publish(ev); err != nil {
			logging.L().Warn("sink publish failed", "sink", fmt.Sprintf("%T", s), "request_id", ev.RequestID, "err", err)
		}
	}
}

func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
