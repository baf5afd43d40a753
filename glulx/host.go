package glulx

// Host is the synchronous callback surface the engine calls into for line
// input (with the output flushed so far), character input, and save/restore:
// it never spawns goroutines of its own (unlike
// KTStephano-GVM/vm/devices.go's channel-based device bus) — a
// single blocking call in, a single result back, because Glulx's execution
// model has no concurrency to model.
type Host interface {
	// LineWanted is called when the program requests a line of input
	// (glk_select on a line-input event; this engine has no fyrecall
	// opcode). flushed holds every output channel accumulated since the
	// last suspension.
	LineWanted(flushed map[string]string, maxLen uint32) (string, error)

	// KeyWanted is called when the program requests a single keystroke.
	KeyWanted(flushed map[string]string) (rune, error)

	// OutputReady receives flushed output channels. The engine itself never
	// calls it: output reaches the host with LineWanted/KeyWanted, and
	// output left at the end of a run is drained through Engine.Flush.
	OutputReady(flushed map[string]string)

	// SaveRequested hands the host a Quetzal-format save image to persist;
	// the host reports where (a slot id, filename, whatever it uses).
	SaveRequested(data []byte) error

	// LoadRequested asks the host to supply a previously saved Quetzal
	// image. A nil/empty return with a nil error means "no save available".
	LoadRequested() ([]byte, error)

	// TransitionRequested signals an output-system or screen-state change,
	// e.g. a glk window arrangement request. No opcode in this engine
	// issues one, so the engine never calls it.
	TransitionRequested(kind string, arg uint32) error
}

// Suspend describes a suspension point by kind, flushed output and maximum
// input length. Step and Run in this package always return a nil *Suspend,
// since the engine calls Host directly at its suspension points.
type Suspend struct {
	Kind    SuspendKind
	Flushed map[string]string
	MaxLen  uint32
}

// SuspendKind enumerates the four suspension points the engine can hit.
type SuspendKind uint8

const (
	SuspendNone SuspendKind = iota
	SuspendLineInput
	SuspendKeyInput
	SuspendOutputFlush
	SuspendTransition
)
