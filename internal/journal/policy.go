package journal

import "fmt"

// FullReason explains why an update was sent as full state.
type FullReason string

const (
	FullNoReference      FullReason = "no_reference"
	FullInterval         FullReason = "interval"
	FullReferenceMissing FullReason = "reference_missing"
)

// Policy decides between full and delta updates for one session. It is not
// safe for concurrent use; the Synchronizer guards it.
type Policy struct {
	interval     uint64
	lastFullTick uint64
	fulls        uint64
	deltas       uint64
	reasons      map[FullReason]uint64
}

// PolicyStats summarises the decisions a policy has made.
type PolicyStats struct {
	LastFullTick uint64
	Fulls        uint64
	Deltas       uint64
	Reasons      map[FullReason]uint64
}

func NewPolicy(interval int) *Policy {
	if interval < 1 {
		interval = 1
	}
	return &Policy{interval: uint64(interval), reasons: make(map[FullReason]uint64)}
}

// Decide reports whether the update for tick must carry full state. A
// reference that is missing from history, or that claims a tick the server
// has not produced yet, forces full state.
func (p *Policy) Decide(tick uint64, ref *uint64, haveRef bool) (bool, FullReason) {
	switch {
	case ref == nil:
		return true, FullNoReference
	case tick >= p.lastFullTick+p.interval:
		return true, FullInterval
	case !haveRef || *ref > tick:
		return true, FullReferenceMissing
	default:
		return false, ""
	}
}

// Note records the decision that was acted on.
func (p *Policy) Note(tick uint64, full bool, reason FullReason) {
	if !full {
		p.deltas++
		return
	}
	p.fulls++
	p.lastFullTick = tick
	p.reasons[reason]++
}

func (p *Policy) LastFullTick() uint64 {
	return p.lastFullTick
}

func (p *Policy) Stats() PolicyStats {
	reasons := make(map[FullReason]uint64, len(p.reasons))
	for k, v := range p.reasons {
		reasons[k] = v
	}
	return PolicyStats{
		LastFullTick: p.lastFullTick,
		Fulls:        p.fulls,
		Deltas:       p.deltas,
		Reasons:      reasons,
	}
}

func (s PolicyStats) Summary() string {
	if s.Fulls == 0 && s.Deltas == 0 {
		return ""
	}
	return fmt.Sprintf("fulls=%d deltas=%d last_full=%d reasons=%v", s.Fulls, s.Deltas, s.LastFullTick, s.Reasons)
}
