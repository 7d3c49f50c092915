// Package selector turns an operator-supplied selector into exactly one
// process id from a catalog snapshot.
package selector

import (
	"regexp"

	"agentctl/internal/catalog"
)

// Resolve picks the target for selector out of snapshot.
//
// When the command needs no explicit target, ok is false and err is nil: the
// caller proceeds without attaching. Otherwise an exact id match wins over
// pattern matching, and a pattern is matched unanchored against every
// display. Multiple pattern hits are an error, never a silent first pick.
func Resolve(sel string, snapshot []catalog.Descriptor, requiresTarget bool) (id string, ok bool, err error) {
	if !requiresTarget {
		return "", false, nil
	}
	if sel == "" {
		return "", false, &InvalidSelectorError{Reason: "no process id or pattern given"}
	}

	if d, found := exactID(sel, snapshot); found {
		return d.ID, true, nil
	}

	re, err := regexp.Compile(sel)
	if err != nil {
		return "", false, &InvalidSelectorError{Selector: sel, Err: err}
	}

	var hits []catalog.Descriptor
	for _, d := range snapshot {
		if re.MatchString(d.Display) {
			hits = append(hits, d)
		}
	}
	switch len(hits) {
	case 0:
		return "", false, &NoSuchProcessError{Selector: sel}
	case 1:
		return hits[0].ID, true, nil
	default:
		return "", false, &AmbiguousSelectorError{Selector: sel, Candidates: hits}
	}
}

func exactID(sel string, snapshot []catalog.Descriptor) (catalog.Descriptor, bool) {
	var (
		match catalog.Descriptor
		n     int
	)
	for _, d := range snapshot {
		if d.ID == sel {
			match = d
			n++
		}
	}
	return match, n == 1
}
