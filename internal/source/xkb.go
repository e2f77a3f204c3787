package source

// XKB version requested at startup.
const (
	XkbMajorVersion = 1
	XkbMinorVersion = 0
)

// XkbPerClientDetectableAutoRepeat stops the server from sending a
// KeyRelease for every synthetic repeat while a key is held.
const XkbPerClientDetectableAutoRepeat uint32 = 1 << 0

// initXkb negotiates XKB and asks for detectable auto-repeat. Both steps
// only log when the server refuses.
func (s *EventSource) initXkb() {
	supported, err := s.conn.UseXkbExtension(XkbMajorVersion, XkbMinorVersion)
	if err != nil || !supported {
		s.logger.Debug("xkb extension not available", "error", err)
	}

	flags, err := s.conn.SetXkbPerClientFlags(XkbPerClientDetectableAutoRepeat, XkbPerClientDetectableAutoRepeat)
	if err != nil || flags&XkbPerClientDetectableAutoRepeat == 0 {
		s.logger.Debug("could not set xkb auto repeat flag", "error", err, "supported", flags)
	}
}

// selectDeviceEvents subscribes to XInput2 topology events, which drive the
// hotplug coordinator.
func (s *EventSource) selectDeviceEvents() {
	if err := s.conn.SelectDeviceEvents(); err != nil {
		s.logger.Debug("xinput2 device events unavailable", "error", err)
	}
}
