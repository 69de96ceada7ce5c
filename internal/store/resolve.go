package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Ref is a user-supplied task reference: either a display id or a fragment of
// a title. Exactly one of DisplayID (> 0) or Text is set.
type Ref struct {
	DisplayID int    `json:"display_id,omitempty"`
	Text      string `json:"text,omitempty"`
}

func NumberRef(n int) Ref { return Ref{DisplayID: n} }

func TextRef(s string) Ref { return Ref{Text: strings.TrimSpace(s)} }

// ParseRef reads "3", "#3" and "task 3" as display ids and anything else as a
// title fragment.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, fmt.Errorf("%w: task reference is empty", ErrInvalid)
	}
	num := strings.TrimSpace(strings.TrimPrefix(strings.ToLower(s), "task"))
	num = strings.TrimSpace(strings.TrimPrefix(num, "#"))
	num = strings.TrimRight(num, ".!?")
	if isAllDigits(num) {
		n, err := strconv.Atoi(num)
		if err != nil || n < 1 {
			return Ref{}, fmt.Errorf("%w: task number out of range: %s", ErrInvalid, s)
		}
		return NumberRef(n), nil
	}
	return TextRef(s), nil
}

func (r Ref) IsNumeric() bool { return r.DisplayID > 0 }

func (r Ref) String() string {
	if r.IsNumeric() {
		return "#" + strconv.Itoa(r.DisplayID)
	}
	return r.Text
}

type ResolutionKind int

const (
	NoMatch ResolutionKind = iota
	Unique
	Ambiguous
)

func (k ResolutionKind) String() string {
	switch k {
	case Unique:
		return "unique"
	case Ambiguous:
		return "ambiguous"
	default:
		return "no_match"
	}
}

// Resolution is the outcome of Resolve. Task is set for Unique; Candidates
// is set for Ambiguous, ordered by display id.
type Resolution struct {
	Kind       ResolutionKind
	Ref        Ref
	Task       Task
	Candidates []Task
}

// Resolve matches ref against tasks. Numeric refs match a display id exactly;
// text refs match titles by case-insensitive substring. More than one text
// match is reported as Ambiguous rather than picking one.
func Resolve(ref Ref, tasks []Task) Resolution {
	res := Resolution{Kind: NoMatch, Ref: ref}
	if ref.IsNumeric() {
		for _, t := range tasks {
			if t.DisplayID == ref.DisplayID {
				res.Kind = Unique
				res.Task = t
				return res
			}
		}
		return res
	}

	sel := strings.ToLower(strings.TrimSpace(ref.Text))
	if sel == "" {
		return res
	}
	var matches []Task
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), sel) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return res
	case 1:
		res.Kind = Unique
		res.Task = matches[0]
		return res
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].DisplayID < matches[j].DisplayID })
	res.Kind = Ambiguous
	res.Candidates = matches
	return res
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
