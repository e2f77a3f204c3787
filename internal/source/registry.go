package source

import (
	"fmt"
	"reflect"

	"xevsource/internal/xevent"
)

// registrable rejects values the registries cannot hold. Registries
// compare entries with ==, which panics on uncomparable dynamic types.
func registrable(v any) error {
	if v == nil {
		return ErrNilDispatcher
	}
	if !reflect.TypeOf(v).Comparable() {
		return fmt.Errorf("%T: %w", v, ErrNotComparable)
	}
	return nil
}

// AddDispatcher appends d to the raw dispatcher chain. If d provides a
// platform dispatcher it is registered as well. Safe to call from inside a
// dispatch callback.
//
// d and its platform dispatcher must have comparable dynamic types;
// otherwise ErrNotComparable is returned and nothing is registered.
func (s *EventSource) AddDispatcher(d XEventDispatcher) error {
	if err := registrable(d); err != nil {
		return err
	}
	var pd PlatformEventDispatcher
	if p, ok := d.(PlatformDispatcherProvider); ok {
		pd = p.PlatformEventDispatcher()
		if pd != nil {
			if err := registrable(pd); err != nil {
				return err
			}
		}
	}
	if !s.dispatchers.add(d) {
		return fmt.Errorf("add dispatcher %T: %w", d, ErrAlreadyRegistered)
	}
	if pd != nil {
		s.platform.add(pd)
	}
	s.onDispatcherListChanged()
	return nil
}

// RemoveDispatcher removes d from the chain, together with its platform
// dispatcher. A dispatcher may remove itself while it is running.
func (s *EventSource) RemoveDispatcher(d XEventDispatcher) error {
	if err := registrable(d); err != nil {
		return err
	}
	if !s.dispatchers.remove(d) {
		return fmt.Errorf("remove dispatcher %T: %w", d, ErrNotRegistered)
	}
	if p, ok := d.(PlatformDispatcherProvider); ok {
		if pd := p.PlatformEventDispatcher(); pd != nil && registrable(pd) == nil {
			s.platform.remove(pd)
		}
	}
	s.onDispatcherListChanged()
	return nil
}

// AddObserver registers o to see every routed raw event.
func (s *EventSource) AddObserver(o XEventObserver) error {
	if err := registrable(o); err != nil {
		return err
	}
	if !s.observers.add(o) {
		return fmt.Errorf("add observer %T: %w", o, ErrAlreadyRegistered)
	}
	s.metrics.Observers.Set(int64(s.observers.len()))
	return nil
}

// RemoveObserver unregisters o.
func (s *EventSource) RemoveObserver(o XEventObserver) error {
	if err := registrable(o); err != nil {
		return err
	}
	if !s.observers.remove(o) {
		return fmt.Errorf("remove observer %T: %w", o, ErrNotRegistered)
	}
	s.metrics.Observers.Set(int64(s.observers.len()))
	return nil
}

// AddPlatformDispatcher registers a toolkit dispatcher directly.
func (s *EventSource) AddPlatformDispatcher(d PlatformEventDispatcher) error {
	if err := registrable(d); err != nil {
		return err
	}
	if !s.platform.add(d) {
		return fmt.Errorf("add platform dispatcher %T: %w", d, ErrAlreadyRegistered)
	}
	s.onDispatcherListChanged()
	return nil
}

// RemovePlatformDispatcher unregisters a toolkit dispatcher.
func (s *EventSource) RemovePlatformDispatcher(d PlatformEventDispatcher) error {
	if err := registrable(d); err != nil {
		return err
	}
	if !s.platform.remove(d) {
		return fmt.Errorf("remove platform dispatcher %T: %w", d, ErrNotRegistered)
	}
	s.onDispatcherListChanged()
	return nil
}

func (s *EventSource) onDispatcherListChanged() {
	s.metrics.Dispatchers.Set(int64(s.dispatchers.len() + s.platform.len()))
	s.ensureHotplug()
}

// routeRaw delivers ev to the observers, the override and the chain.
func (s *EventSource) routeRaw(ev xevent.Raw) {
	s.metrics.EventsRawRouted.Inc()
	releases := s.overrideReleases

	s.observers.each(func(o XEventObserver) bool {
		o.WillProcessXEvent(ev)
		return true
	})

	handled := false
	if s.override != nil {
		handled = s.override.DispatchXEvent(ev)
	}
	if !handled {
		s.dispatchers.each(func(d XEventDispatcher) bool {
			return !d.DispatchXEvent(ev)
		})
	}

	s.observers.each(func(o XEventObserver) bool {
		o.DidProcessXEvent(ev)
		return true
	})

	// The override went away while handling ev, possibly inside a nested
	// DispatchAll. Whoever released it may have changed the chain, so the
	// rest of the batch waits for the next DispatchAll.
	if s.overrideReleases != releases {
		s.logger.Debug("override released mid-dispatch, stopping event stream",
			"event", xevent.Name(ev))
		s.StopCurrentEventStream()
	}
}

// dispatchPlatformEvent gives every chain member a chance to claim pe based
// on the raw event, delivers pe to the toolkit dispatchers and then resets
// the claims.
func (s *EventSource) dispatchPlatformEvent(pe *xevent.Platform, ev xevent.Raw) {
	s.metrics.EventsTranslated.Inc()

	s.dispatchers.each(func(d XEventDispatcher) bool {
		if c, ok := d.(PlatformEventClaimer); ok {
			c.CheckCanDispatchNextPlatformEvent(ev)
		}
		return true
	})

	s.platform.each(func(d PlatformEventDispatcher) bool {
		if !d.CanDispatchEvent(pe) {
			return true
		}
		return d.DispatchEvent(pe) != PostDispatchStopPropagation
	})

	s.dispatchers.each(func(d XEventDispatcher) bool {
		if c, ok := d.(PlatformEventClaimer); ok {
			c.PlatformEventDispatchFinished()
		}
		return true
	})
}
