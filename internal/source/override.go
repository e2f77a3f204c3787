package source

// OverrideGuard holds the override slot of an EventSource. The slot is
// released by Close or Restore, whichever comes first; callers normally
// defer Close right after installing.
type OverrideGuard struct {
	src        *EventSource
	dispatcher XEventDispatcher
	previous   XEventDispatcher
	released   bool
}

// OverrideDispatcher gives d first refusal on every raw event until the
// returned guard is released. Only one override may be live at a time.
func (s *EventSource) OverrideDispatcher(d XEventDispatcher) (*OverrideGuard, error) {
	if d == nil {
		return nil, ErrNilDispatcher
	}
	if s.guard != nil {
		return nil, ErrOverrideActive
	}
	g := &OverrideGuard{src: s, dispatcher: d, previous: s.override}
	s.override = d
	s.guard = g
	s.logger.Debug("override dispatcher installed", "dispatcher", typeName(d))
	return g, nil
}

// Overridden reports whether an override is installed.
func (s *EventSource) Overridden() bool {
	return s.override != nil
}

// Dispatcher returns the dispatcher the guard installed.
func (g *OverrideGuard) Dispatcher() XEventDispatcher {
	return g.dispatcher
}

// Released reports whether the guard has already given up the slot.
func (g *OverrideGuard) Released() bool {
	return g.released
}

// Restore gives the slot back to its previous occupant. If this happens
// while a raw event is being routed, the current batch is cut short after
// that event. Later calls do nothing.
func (g *OverrideGuard) Restore() {
	if g == nil || g.released {
		return
	}
	g.released = true
	s := g.src
	s.override = g.previous
	s.guard = nil
	s.overrideReleases++
	s.logger.Debug("override dispatcher released", "dispatcher", typeName(g.dispatcher))
}

// Close implements io.Closer. It is Restore and never fails.
func (g *OverrideGuard) Close() error {
	g.Restore()
	return nil
}
