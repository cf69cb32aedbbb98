package domain

// Op identifies a structural edit kind, RFC-6902 style.
type Op string

const (
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
	OpReplace Op = "replace"
	OpMove    Op = "move"
	OpCopy    Op = "copy"
	// OpTest is accepted and ignored, reserved for future validation use.
	OpTest Op = "test"
)

// Patch is a single structural edit to a Spec, addressed by path.
//
// Paths fall into three disjoint partitions:
//
//	/root              the root node id (a bare string value)
//	/state(/...)       the embedded data document
//	/nodes/<id>(/...)  a node or one of its fields
//
// Anything else is out of scope and ignored by the patch engine.
type Patch struct {
	Op    Op     `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value any    `json:"value,omitempty"`
}
