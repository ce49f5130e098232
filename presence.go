package cabinet

// Presence is the bit flag recorded per field while constraining input.
type Presence uint8

const (
	PresenceSeen           Presence = 1 << iota // Field appeared in the input.
	PresenceWasNull                             // Field value was null.
	PresenceDefaultApplied                      // Field was absent or null and got a default.
)

// PresenceMap maps field paths ("/name") to Presence flags.
type PresenceMap map[string]Presence

// Has reports whether every bit of p is set for path.
func (pm PresenceMap) Has(path string, p Presence) bool { return pm[path]&p == p }

// clone returns a copy of pm.
func (pm PresenceMap) clone() PresenceMap {
	if pm == nil {
		return nil
	}
	out := make(PresenceMap, len(pm))
	for k, v := range pm {
		out[k] = v
	}
	return out
}

// filterKeys keeps the keys of names selected by include/exclude. An empty
// include selects everything; exclude always wins.
func filterKeys(names, include, exclude []string) []string {
	var inc map[string]struct{}
	if len(include) > 0 {
		inc = make(map[string]struct{}, len(include))
		for _, k := range include {
			inc[k] = struct{}{}
		}
	}
	exc := make(map[string]struct{}, len(exclude))
	for _, k := range exclude {
		exc[k] = struct{}{}
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if inc != nil {
			if _, ok := inc[n]; !ok {
				continue
			}
		}
		if _, ok := exc[n]; ok {
			continue
		}
		out = append(out, n)
	}
	return out
}
