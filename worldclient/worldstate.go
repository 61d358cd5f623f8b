package worldclient

// Attribute is one fact the world model reports for a URI, with its
// type name and origin already resolved from their wire aliases.
type Attribute struct {
	TypeName string
	Created  int64
	Expires  int64
	Origin   string
	Data     []byte
}

// WorldState maps an object URI to the attributes currently known for
// it. An empty WorldState with a nil error terminates a StepResponse's
// sequence.
type WorldState map[string][]Attribute
