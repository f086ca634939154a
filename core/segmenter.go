package orchestration

import "strings"

// DefaultBoundary separates paragraphs in generated text.
const DefaultBoundary = "\n\n"

// Unit is a complete, playable segment of generated text.
type Unit struct {
	// Seq is the position of the unit in emission order within a session,
	// starting at 0.
	Seq  int
	Text string
}

// UnitSink receives units in the order the segmenter emits them.
type UnitSink interface {
	Put(Unit)
}

type SegmenterOption func(*Segmenter)

// WithBoundary overrides the marker used to split the text into units. An
// empty marker is ignored.
func WithBoundary(marker string) SegmenterOption {
	return func(s *Segmenter) {
		if marker != "" {
			s.boundary = marker
		}
	}
}

// Segmenter accumulates fragments of a completion stream and emits every
// paragraph to its sink as soon as the paragraph boundary arrives.
//
// Segmenter is not safe for concurrent use, the buffer is owned by the single
// activity feeding it fragments.
type Segmenter struct {
	sink     UnitSink
	boundary string

	buffer string
	// scanFrom is where the next boundary search starts, everything before it
	// is known not to contain the start of a boundary.
	scanFrom int
	emitted  int
}

func NewSegmenter(sink UnitSink, opts ...SegmenterOption) *Segmenter {
	s := &Segmenter{
		sink:     sink,
		boundary: DefaultBoundary,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Accept appends fragment to the buffer and emits every unit it completes.
func (s *Segmenter) Accept(fragment string) {
	if fragment == "" {
		return
	}
	s.buffer += fragment

	for {
		idx := strings.Index(s.buffer[s.scanFrom:], s.boundary)
		if idx < 0 {
			// The tail might hold the beginning of a boundary split across
			// fragments.
			s.scanFrom = max(0, len(s.buffer)-len(s.boundary)+1)
			return
		}

		end := s.scanFrom + idx + len(s.boundary)
		s.emit(s.buffer[:end])
		s.buffer = s.buffer[end:]
		s.scanFrom = 0
	}
}

// Finish emits whatever is left in the buffer as the final unit, unless it is
// only whitespace, and clears the buffer. Calling Finish on an empty buffer
// emits nothing.
func (s *Segmenter) Finish() {
	if strings.TrimSpace(s.buffer) != "" {
		s.emit(s.buffer)
	}
	s.buffer = ""
	s.scanFrom = 0
}

// Buffered returns the text received since the last emitted unit.
func (s *Segmenter) Buffered() string { return s.buffer }

// Emitted returns the number of units emitted so far.
func (s *Segmenter) Emitted() int { return s.emitted }

func (s *Segmenter) emit(text string) {
	unit := Unit{Seq: s.emitted, Text: text}
	s.emitted++
	if s.sink != nil {
		s.sink.Put(unit)
	}
}
