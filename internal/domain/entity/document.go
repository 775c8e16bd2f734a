package entity

import "time"

// Frame is a single still sampled from the source video. The pixel data
// is kept as the encoded JPEG produced by the sampler; it is read from
// disk once and discarded after the inference stage consumes it.
type Frame struct {
	Index     int
	Timestamp time.Duration
	Path      string
	JPEG      []byte
	Width     int
	Height    int
}

// Region is a detected content region inside exactly one frame.
// Coordinates are pixel offsets within the frame's extents.
type Region struct {
	FrameIndex int
	X, Y       int
	Width      int
	Height     int
	Confidence float64
	Label      string
}

// InBounds reports whether the region lies fully within the frame.
func (r Region) InBounds(f Frame) bool {
	return r.X >= 0 && r.Y >= 0 &&
		r.Width > 0 && r.Height > 0 &&
		r.X+r.Width <= f.Width && r.Y+r.Height <= f.Height
}

// TextBlock is the OCR result for exactly one region. An empty OCR
// result is a valid block with Text == "" and Failed == false; Failed
// marks blocks whose extraction call errored, which is a different
// condition than genuinely blank content.
type TextBlock struct {
	Region     Region
	Text       string
	Confidence float64
	Failed     bool
}

// Slide is one semantically distinct piece of content, collapsed from a
// window of near-identical frames.
type Slide struct {
	FrameIndex int
	Timestamp  time.Duration
	ImagePath  string
	Blocks     []TextBlock
	Text       string
	DedupKey   string
}

// Document is the sole output of the conversion core, handed to the
// renderer. Slides are ordered by representative frame index.
type Document struct {
	Slides         []Slide
	SourceDuration time.Duration
	GeneratedAt    time.Time
}
