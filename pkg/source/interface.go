package source

// Source is the interface for renderers whose frames can be recorded.
// The recorder never drives rendering itself; it only asks the source
// for asynchronous readbacks of whatever was rendered last.
type Source interface {
	// Metadata
	Name() string
	Format() PixelFormat

	// SetOutputSize forces the source to render at a fixed resolution
	// for the duration of a recording session.
	SetOutputSize(width, height int) error

	// RequestTransfer begins an asynchronous GPU-to-CPU readback of the
	// most recently rendered frame. The returned handle is polled each
	// tick; the recorder never blocks on it.
	RequestTransfer() (Transfer, error)
}

// Transfer is an opaque handle to one in-flight pixel readback.
type Transfer interface {
	// Done reports whether the readback has completed.
	Done() bool

	// Err returns the readback failure, if any. A failed transfer never
	// becomes Done.
	Err() error

	// Pixels returns the raw frame bytes of a completed transfer. The
	// view is only valid until the next transfer is requested from the
	// same source.
	Pixels() []byte
}

// PixelFormat represents a raw pixel layout as named by FFmpeg.
type PixelFormat string

const (
	FormatRGBA  PixelFormat = "rgba"
	FormatBGRA  PixelFormat = "bgra"
	FormatRGB24 PixelFormat = "rgb24"
)

// BytesPerPixel returns the packed size of one pixel in this format.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGB24:
		return 3
	default:
		return 4
	}
}

// FrameSize returns the byte size of one tightly packed frame.
func (f PixelFormat) FrameSize(width, height int) int {
	return width * height * f.BytesPerPixel()
}

// Registry holds registered source plugins
var Registry = make(map[string]func() Source)

// Register registers a source plugin
func Register(name string, factory func() Source) {
	Registry[name] = factory
}

// Get returns a source plugin by name
func Get(name string) (Source, bool) {
	factory, ok := Registry[name]
	if !ok {
		return nil, false
	}
	return factory(), true
}
