package uplink

import "regexp"

// onDemandPattern is one gate entry: a pattern string plus its compiled
// form. Valid is false when compilation failed; the entry is kept
// anyway (matching nothing) so a later stop_on_demand for the same
// pattern string still has something to remove.
type onDemandPattern struct {
	Pattern string
	Regexp  *regexp.Regexp
	Valid   bool
}

// onDemandGate is the per-alias set of patterns gating whether an
// on-demand attribute update for that alias is transmitted.
type onDemandGate struct {
	entries map[uint32][]onDemandPattern
}

func newOnDemandGate() *onDemandGate {
	return &onDemandGate{entries: make(map[uint32][]onDemandPattern)}
}

// add compiles pattern as an extended POSIX regex and inserts a gate
// entry for alias, whether or not compilation succeeded.
func (g *onDemandGate) add(alias uint32, pattern string) {
	re, err := regexp.CompilePOSIX(pattern)
	g.entries[alias] = append(g.entries[alias], onDemandPattern{
		Pattern: pattern,
		Regexp:  re,
		Valid:   err == nil,
	})
}

// remove erases one entry for alias whose Pattern equals pattern, if
// any. It removes at most one matching entry, per the stop_on_demand
// contract ("erase one entry per stop message per pattern").
func (g *onDemandGate) remove(alias uint32, pattern string) {
	list := g.entries[alias]
	for i, p := range list {
		if p.Pattern == pattern {
			g.entries[alias] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// size returns the total number of gate entries across all aliases,
// used by tests to assert a balanced start/stop sequence drains fully.
func (g *onDemandGate) size() int {
	n := 0
	for _, list := range g.entries {
		n += len(list)
	}
	return n
}

// permits reports whether at least one valid pattern for alias fully
// matches target: the match must be anchored to the entire string, not
// merely a substring.
func (g *onDemandGate) permits(alias uint32, target string) bool {
	for _, p := range g.entries[alias] {
		if !p.Valid {
			continue
		}
		if loc := p.Regexp.FindStringIndex(target); loc != nil && loc[0] == 0 && loc[1] == len(target) {
			return true
		}
	}
	return false
}
