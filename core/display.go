package orchestration

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// WriterDisplay types narration to an io.Writer, one character per write.
type WriterDisplay struct {
	mu     sync.Mutex
	writer io.Writer
	// unitSuffix is written after every fully typed unit.
	unitSuffix string
}

func NewWriterDisplay(writer io.Writer) *WriterDisplay {
	if writer == nil {
		writer = os.Stdout
	}
	return &WriterDisplay{writer: writer}
}

// WithUnitSuffix sets text written after every typed unit.
func (d *WriterDisplay) WithUnitSuffix(suffix string) *WriterDisplay {
	d.unitSuffix = suffix
	return d
}

func (d *WriterDisplay) ShowCharacter(r rune) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := fmt.Fprintf(d.writer, "%c", r); err != nil {
		return err
	}
	return nil
}

func (d *WriterDisplay) UnitEnded(Unit) {
	if d.unitSuffix == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = io.WriteString(d.writer, d.unitSuffix)
}
