package audit

import "fmt"

// RevisionType classifies what happened to an entity or collection element
// within a revision.
type RevisionType int

const (
	// RevisionAdd records an entity/element added in this revision.
	RevisionAdd RevisionType = iota
	// RevisionMod records an entity/element modified in this revision.
	RevisionMod
	// RevisionDel records an entity/element removed in this revision.
	RevisionDel
)

// String returns the short form used in serialized change payloads.
func (t RevisionType) String() string {
	switch t {
	case RevisionAdd:
		return "add"
	case RevisionMod:
		return "mod"
	case RevisionDel:
		return "del"
	default:
		return fmt.Sprintf("RevisionType(%d)", int(t))
	}
}

// ParseRevisionType converts the short form back to a RevisionType.
func ParseRevisionType(s string) (RevisionType, error) {
	switch s {
	case "add":
		return RevisionAdd, nil
	case "mod":
		return RevisionMod, nil
	case "del":
		return RevisionDel, nil
	default:
		return 0, fmt.Errorf("unknown revision type %q", s)
	}
}
