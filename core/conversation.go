package orchestration

import (
	"sync"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-narrator/core/llms"
)

// transcript is the in-memory record of the conversation, in the order the
// turns were taken.
type transcript struct {
	mu    sync.RWMutex
	turns []llms.Turn
}

func (t *transcript) Append(turn llms.Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, turn)
}

// Snapshot returns a copy of the turns that is safe to keep and modify.
func (t *transcript) Snapshot() []llms.Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := []llms.Turn{}
	if err := copier.CopyWithOption(&snapshot, &t.turns, copier.Option{DeepCopy: true}); err != nil {
		logger.Error("failed to copy transcript", "error", err)
		return append([]llms.Turn(nil), t.turns...)
	}
	return snapshot
}
