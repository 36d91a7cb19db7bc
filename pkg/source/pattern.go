package source

import "fmt"

func init() {
	Register("pattern", func() Source { return NewPattern() })
}

// Pattern is a built-in synthetic source that renders a moving color
// gradient. It exists so the recorder can be exercised end to end
// without a real rendering surface attached.
type Pattern struct {
	width  int
	height int
	frame  int
	pix    []byte
}

// NewPattern creates a pattern source with a default 320x180 output.
func NewPattern() *Pattern {
	p := &Pattern{}
	p.SetOutputSize(320, 180)
	return p
}

func (p *Pattern) Name() string { return "pattern" }
func (p *Pattern) Format() PixelFormat { return FormatRGBA }

// SetOutputSize resizes the render target. The pixel buffer is
// reallocated only when the size actually changes.
func (p *Pattern) SetOutputSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid output size %dx%d", width, height)
	}
	if width != p.width || height != p.height {
		p.width = width
		p.height = height
		p.pix = make([]byte, FormatRGBA.FrameSize(width, height))
	}
	return nil
}

// RequestTransfer renders the next pattern frame and returns an
// already-completed transfer over it. A synthetic source has no real
// GPU latency, so completion is immediate.
func (p *Pattern) RequestTransfer() (Transfer, error) {
	p.render()
	p.frame++
	return completedTransfer{pix: p.pix}, nil
}

func (p *Pattern) render() {
	shift := p.frame
	i := 0
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			p.pix[i] = byte(x + shift)
			p.pix[i+1] = byte(y + shift)
			p.pix[i+2] = byte(shift)
			p.pix[i+3] = 0xff
			i += 4
		}
	}
}

type completedTransfer struct {
	pix []byte
}

func (t completedTransfer) Done() bool { return true }
func (t completedTransfer) Err() error { return nil }
func (t completedTransfer) Pixels() []byte { return t.pix }
