package criteria

import "fmt"

// Record is a single fetched or written row/document.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	cp := make(Record, len(r))
	for k, v := range r {
		cp[k] = v
	}
	return cp
}

// SourceKind distinguishes start from select directives.
type SourceKind string

// Source kinds.
const (
	SourceStart  SourceKind = "start"
	SourceSelect SourceKind = "select"
)

// Source is a start or select directive in insertion order.
type Source struct {
	Kind     SourceKind        `json:"kind"`
	Resource ResourceReference `json:"resource"`
	Alias    string            `json:"alias,omitempty"`
}

// Direction is a sort direction: +1 ascending, -1 descending.
type Direction int

// Sort directions.
const (
	Asc  Direction = 1
	Desc Direction = -1
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// Sort is a sort directive.
type Sort struct {
	Attr      AttributeReference `json:"attr"`
	Direction Direction          `json:"direction"`
}

// RelationDirection is the traversal direction of a relation.
type RelationDirection string

// Relation directions.
const (
	Incoming RelationDirection = "incoming"
	Outgoing RelationDirection = "outgoing"
)

// Relation is a graph-style traversal descriptor.
type Relation struct {
	Attr      AttributeReference `json:"attr"`
	Direction RelationDirection  `json:"direction"`
}

// Paging holds limit/page/offset. Zero means unset. The effective offset is
// resolved at execution time.
type Paging struct {
	Limit  int `json:"limit,omitempty"`
	Page   int `json:"page,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// EffectiveOffset returns (Page-1)*Limit when a page is set, else Offset.
func (p Paging) EffectiveOffset() int {
	if p.Page > 0 && p.Limit > 0 {
		return (p.Page - 1) * p.Limit
	}
	return p.Offset
}

// ActionKind enumerates the terminal actions.
type ActionKind int

// Action kinds.
const (
	ActionFind ActionKind = iota
	ActionCreate
	ActionUpdate
	ActionRemove
	ActionCount
	ActionExists
	ActionPipe
	ActionStream
)

var actionNames = [...]string{
	ActionFind:   "find",
	ActionCreate: "create",
	ActionUpdate: "update",
	ActionRemove: "remove",
	ActionCount:  "count",
	ActionExists: "exists",
	ActionPipe:   "pipe",
	ActionStream: "stream",
}

func (k ActionKind) String() string {
	if k < 0 || int(k) >= len(actionNames) {
		return fmt.Sprintf("action(%d)", int(k))
	}
	return actionNames[k]
}

// ParseAction converts an action name to its kind.
func ParseAction(name string) (ActionKind, error) {
	for i, n := range actionNames {
		if n == name {
			return ActionKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// Writes reports whether the action mutates records.
func (k ActionKind) Writes() bool {
	return k == ActionCreate || k == ActionUpdate || k == ActionRemove
}

// Action is the terminal action and its optional payload.
type Action struct {
	Kind ActionKind `json:"kind"`
	Data []Record   `json:"data,omitempty"`
}

// Criteria is a read-only snapshot of a query's accumulated state.
type Criteria struct {
	Name           string        `json:"name,omitempty"`
	DefaultAdapter string        `json:"default_adapter"`
	Sources        []Source      `json:"sources"`
	Constraints    []*Constraint `json:"constraints"`
	Sorting        []Sort        `json:"sorting,omitempty"`
	Relations      []Relation    `json:"relations,omitempty"`
	Paging         Paging        `json:"paging"`
	Action         Action        `json:"action"`
	Returns        string        `json:"returns,omitempty"`
}

// Terminal returns the namespace whose result is returned: the Returns key
// when set, otherwise the first source. ok is false when there is neither.
func (c *Criteria) Terminal() (ResourceReference, bool) {
	if c.Returns != "" {
		if ref, err := ResolveResource(c.Returns, c.DefaultAdapter); err == nil {
			return ref, true
		}
	}
	if len(c.Sources) > 0 {
		return c.Sources[0].Resource, true
	}
	return ResourceReference{}, false
}
