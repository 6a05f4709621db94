package supervisor

import "go.uber.org/zap"

// replenish spawns (min - size) Replacement children when the registry
// has fallen below Config.Min. Grounded on ProcessManager2.UpdateLimits'
// bounds re-check, simplified to spec.md §4.8's unconditional replenish
// (no preflight/onflight dual gating: spec.md's registry has no warm-up
// phase).
func (s *Supervisor) replenish() {
	s.fillTo(ReasonReplacement)
}

// fillInitial spawns children up to Config.Min with reason Initial. Used
// once, before the loop starts, to establish the starting pool (spec.md
// §8 invariant 2: registry size equals min at first steady state, with
// onChildCreate firing reason Initial per §8 scenario S2).
func (s *Supervisor) fillInitial() {
	s.fillTo(ReasonInitial)
}

func (s *Supervisor) fillTo(reason CreateReason) {
	min, _ := s.limits()
	for s.registry.size() < min {
		c, err := s.spawnOne(reason)
		if err != nil {
			s.log.Error("fill spawn failed", zap.String("reason", reason.String()), zap.Error(err))
			dumpSpawnError(s.log, err)
			return
		}
		s.registry.insert(c)
		if s.cfg.OnChildCreate != nil {
			s.cfg.OnChildCreate(c)
		}
	}
}

// ScaleUp spawns one additional child with reason ScaleUp if the
// registry is below Config.Max. No-op otherwise. Safe to call from
// within a callback running on the loop thread.
func (s *Supervisor) ScaleUp() {
	_, max := s.limits()
	if s.registry.size() >= max {
		return
	}
	c, err := s.spawnOne(ReasonScaleUp)
	if err != nil {
		s.log.Error("scaleUp spawn failed", zap.Error(err))
		dumpSpawnError(s.log, err)
		return
	}
	s.registry.insert(c)
	if s.cfg.OnChildCreate != nil {
		s.cfg.OnChildCreate(c)
	}
}

// ScaleDown marks one un-terminating child for termination and sends it
// the terminate signal, if the registry is above Config.Min. Its
// eventual exit flows through the reaper and does not trigger a
// replacement, since post-exit size will still be >= min. No-op if no
// un-terminating child exists.
func (s *Supervisor) ScaleDown() {
	min, _ := s.limits()
	if s.registry.size() <= min {
		return
	}
	for _, c := range s.registry.all() {
		if c.Terminating {
			continue
		}
		c.Terminating = true
		_ = s.signalChild(c, terminateSignal)
		s.log.Info("scaling down", zap.Int("pid", c.Pid))
		return
	}
}

func (s *Supervisor) spawnOne(reason CreateReason) (*Child, error) {
	if s.cfg.Closure != nil {
		return spawnClosure(s.log, reason)
	}
	return spawnCommand(s.log, s.cfg.Command, reason)
}

func (s *Supervisor) limits() (min, max int) {
	s.limitsMu.Lock()
	defer s.limitsMu.Unlock()
	return s.min, s.max
}

// SetScaleLimits adjusts the [min, max] envelope at runtime. Takes
// effect on the next replenish and on the next ScaleUp/ScaleDown call,
// per spec.md §6.
func (s *Supervisor) SetScaleLimits(min, max int) {
	s.limitsMu.Lock()
	defer s.limitsMu.Unlock()
	s.min, s.max = min, max
}
