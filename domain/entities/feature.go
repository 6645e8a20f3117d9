package entities

// Feature is a host-provided capability negotiated at instantiation time.
//
// Data is opaque to the host: the unit that recognises URI knows which
// concrete type to expect and asserts it.
type Feature struct {
	URI  string
	Data any
}

// PortKind classifies a port by the kind of buffer connected to it.
type PortKind uint8

const (
	// PortOther is any port whose buffer layout the host does not interpret.
	PortOther PortKind = iota
	// PortAudio carries one float32 per frame.
	PortAudio
	// PortControl carries a single float32.
	PortControl
	// PortCV carries one float32 per frame.
	PortCV
)

// PortSpec describes how one port's buffer is laid out.
type PortSpec struct {
	Index  uint32
	Kind   PortKind
	Output bool
}

// BufferBytes returns the number of bytes of the port buffer that a run of
// frames reads or writes. Ports of kind PortOther report zero.
func (s PortSpec) BufferBytes(frames uint32) uint32 {
	switch s.Kind {
	case PortAudio, PortCV:
		return frames * 4
	case PortControl:
		return 4
	default:
		return 0
	}
}

// PortLayout is the ordered list of port specs of a unit, indexed by port.
type PortLayout []PortSpec
