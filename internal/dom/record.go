package dom

import "golang.org/x/net/html"

// RecordKind classifies a mutation.
type RecordKind int

const (
	// ChildList records nodes added to or removed from Target.
	ChildList RecordKind = iota
	// Attributes records a change to one attribute of Target.
	Attributes
)

// String returns the kind name.
func (k RecordKind) String() string {
	switch k {
	case ChildList:
		return "childList"
	case Attributes:
		return "attributes"
	default:
		return "unknown"
	}
}

// Record describes one document mutation.
type Record struct {
	Kind          RecordKind
	Target        *html.Node
	Added         []*html.Node
	Removed       []*html.Node
	AttributeName string
	OldValue      string
}
