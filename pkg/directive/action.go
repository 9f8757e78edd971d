package directive

// Kind tags the outcome of processing one source file. Exactly one kind
// is active per processed file.
type Kind int

const (
	// KindData writes content to the destination.
	KindData Kind = iota
	// KindIgnore leaves the destination untouched.
	KindIgnore
	// KindDelete removes the destination.
	KindDelete
	// KindSymlink replaces the destination with a symlink.
	KindSymlink
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindIgnore:
		return "ignore"
	case KindDelete:
		return "delete"
	case KindSymlink:
		return "symlink"
	default:
		return "data"
	}
}

// Action is the single result of directive-processing a file.
type Action struct {
	Kind       Kind
	Content    []byte     // KindData only
	Visibility Visibility // KindData only
	Target     string     // KindSymlink only
}

// Ignore returns an Action that leaves the destination untouched.
func Ignore() Action { return Action{Kind: KindIgnore} }

// Delete returns an Action that removes the destination.
func Delete() Action { return Action{Kind: KindDelete} }

// Symlink returns an Action that replaces the destination with a
// symlink to target.
func Symlink(target string) Action {
	return Action{Kind: KindSymlink, Target: target}
}

// Data returns an Action that writes content with the given visibility.
func Data(content []byte, vis Visibility) Action {
	return Action{Kind: KindData, Content: content, Visibility: vis}
}
