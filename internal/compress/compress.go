package compress

// Compress encodes and decodes byte payloads. Implementations are used to
// shrink derived artifacts before they are stored in a remote cache
// backend.
type Compress interface {
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}
