package site

import (
	"strings"

	"siteup/internal/check"
)

// Phase is one of the four fixed pipeline stages.
type Phase uint8

const (
	PhaseBuild Phase = iota + 1
	PhaseConfigure
	PhaseUpload
	PhaseFinalize
)

func (p Phase) String() string {
	switch p {
	case PhaseBuild:
		return "build"
	case PhaseConfigure:
		return "configure"
	case PhaseUpload:
		return "upload"
	case PhaseFinalize:
		return "finalize"
	default:
		return "unknown"
	}
}

func (p Phase) IsValid() bool {
	switch p {
	case PhaseBuild, PhaseConfigure, PhaseUpload, PhaseFinalize:
		return true
	default:
		return false
	}
}

// Transition enforces the fixed pipeline order: a phase may only advance
// to its immediate successor.
func (p Phase) Transition(to Phase) Phase {
	ok := to == p+1 && to.IsValid()
	check.Assertf(ok, "pipeline phase transition: %s -> %s", p, to)
	if !ok {
		return p
	}
	return to
}

// ParsePhase parses a phase name as stored in history records.
func ParsePhase(raw string) (Phase, bool) {
	switch strings.TrimSpace(raw) {
	case "build":
		return PhaseBuild, true
	case "configure":
		return PhaseConfigure, true
	case "upload":
		return PhaseUpload, true
	case "finalize":
		return PhaseFinalize, true
	default:
		return 0, false
	}
}
