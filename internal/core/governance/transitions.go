package governance

import "github.com/example/scenegov/internal/core/scene"

// Transition describes how a governance action moved a scope's state.
type Transition struct {
	From     ChannelState
	To       ChannelState
	Changed  bool
	Deferred bool // requested channel recorded but not effective until rollback clears
}

// ApplySetChannel records a channel request.
// While a rollback is active the effective channel stays stable and only the
// requested channel changes.
func ApplySetChannel(s ChannelState, c scene.Channel) Transition {
	next := s
	next.RequestedChannel = c
	deferred := false
	if s.RollbackActive {
		deferred = c != scene.ChannelStable
	} else {
		next.Channel = c
		next.ContractRef = LatestRef(c)
	}
	return Transition{From: s, To: next, Changed: next != s, Deferred: deferred}
}

// ApplyRollback pins the scope to the stable snapshot.
// Rolling back an already rolled back scope leaves the state untouched.
func ApplyRollback(s ChannelState) Transition {
	if s.RollbackActive && s.Consistent() {
		return Transition{From: s, To: s}
	}
	next := forceRollback(s)
	return Transition{From: s, To: next, Changed: true}
}

// ApplyClearRollback releases the pin and restores the requested channel.
func ApplyClearRollback(s ChannelState) Transition {
	if !s.RollbackActive {
		return Transition{From: s, To: s}
	}
	requested := s.RequestedChannel
	if requested == "" {
		requested = scene.ChannelStable
	}
	next := s
	next.RollbackActive = false
	next.RollbackRef = ""
	next.Channel = requested
	next.RequestedChannel = requested
	next.ContractRef = LatestRef(requested)
	return Transition{From: s, To: next, Changed: true}
}

func forceRollback(s ChannelState) ChannelState {
	if s.RequestedChannel == "" {
		s.RequestedChannel = s.Channel
	}
	s.RollbackActive = true
	s.Channel = scene.ChannelStable
	s.RollbackRef = PinnedRef
	s.ContractRef = PinnedRef
	return s
}
