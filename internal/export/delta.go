package export

import (
	"encoding/json"
	"sort"
)

// Delta captures module-level differences between two snapshots of the same
// design document.
type Delta struct {
	Design    string   `json:"design"`
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Changed   []string `json:"changed"`
	Unchanged []string `json:"unchanged"`
}

// ComputeDelta reports which modules were added, removed, changed, or left
// untouched between two runs. A module counts as changed when any of its
// graphs or signal rows differ.
func ComputeDelta(prev, next DesignDoc) Delta {
	delta := Delta{
		Design:    next.Design,
		Added:     []string{},
		Removed:   []string{},
		Changed:   []string{},
		Unchanged: []string{},
	}

	prevByName := modulesByName(prev)
	nextByName := modulesByName(next)

	for name := range nextByName {
		if _, ok := prevByName[name]; !ok {
			delta.Added = append(delta.Added, name)
		}
	}
	for name, prevMod := range prevByName {
		nextMod, ok := nextByName[name]
		if !ok {
			delta.Removed = append(delta.Removed, name)
			continue
		}
		if moduleKey(prevMod) == moduleKey(nextMod) {
			delta.Unchanged = append(delta.Unchanged, name)
		} else {
			delta.Changed = append(delta.Changed, name)
		}
	}

	sort.Strings(delta.Added)
	sort.Strings(delta.Removed)
	sort.Strings(delta.Changed)
	sort.Strings(delta.Unchanged)
	return delta
}

func modulesByName(doc DesignDoc) map[string]ModuleDoc {
	out := make(map[string]ModuleDoc, len(doc.Modules))
	for _, m := range doc.Modules {
		out[m.Name] = m
	}
	return out
}

// moduleKey fingerprints a module's full content. json.Marshal sorts map
// keys, so equal content always yields equal keys.
func moduleKey(m ModuleDoc) string {
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}
