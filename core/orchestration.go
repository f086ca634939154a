package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/koscakluka/ema-narrator/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrNoLLM              = errors.New("no streaming llm configured")
	ErrOrchestratorClosed = errors.New("orchestrator closed")
)

// Orchestrator runs the conversation: every prompt becomes a stream session
// whose response is narrated before the next prompt is accepted.
type Orchestrator struct {
	llm              LLMWithStream
	instructions     string
	narrator         *Narrator
	segmenterOptions []SegmenterOption

	images  ImageGenerator
	onImage func(string)

	onResponse    func(string)
	onResponseEnd func()

	logger *slog.Logger

	transcript transcript

	// turnMu allows a single active session.
	turnMu        sync.Mutex
	activeMu      sync.Mutex
	activeSession *StreamSession

	closeOnce sync.Once
	closed    chan struct{}
	// background tracks scene image requests.
	background sync.WaitGroup
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		narrator: NewNarrator(),
		onImage:  func(string) {},
		logger:   logger,
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Respond sends prompt to the LLM and narrates the streamed response. It
// returns once the response has been fully narrated. A failed stream still
// narrates and records everything received before the failure.
func (o *Orchestrator) Respond(ctx context.Context, prompt string) error {
	if o.llm == nil {
		return ErrNoLLM
	}

	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	select {
	case <-o.closed:
		return ErrOrchestratorClosed
	default:
	}

	ctx, span := tracer.Start(ctx, "respond to prompt")
	defer span.End()

	history := o.transcript.Snapshot()
	o.transcript.Append(llms.Turn{Role: llms.TurnRoleUser, Content: prompt})

	stream := o.llm.PromptWithStream(ctx, prompt,
		llms.WithInstructions(o.instructions),
		llms.WithTurns(history...),
	)

	session := NewStreamSession(o.narrator, o.segmenterOptions...)
	session.onFragment = o.onResponse
	span.SetAttributes(attribute.String("session.id", session.ID()))

	o.setActiveSession(session)
	response, err := session.Run(ctx, stream)
	o.setActiveSession(nil)

	if o.onResponseEnd != nil {
		o.onResponseEnd()
	}

	if response != "" {
		o.transcript.Append(llms.Turn{
			Role:        llms.TurnRoleAssistant,
			Content:     response,
			Interrupted: err != nil,
		})
	}

	if err != nil {
		err = fmt.Errorf("failed to narrate response: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if o.images != nil && response != "" {
		o.generateSceneImage(context.WithoutCancel(ctx), response)
	}

	return nil
}

// CancelTurn aborts the session that is currently being narrated, if any.
func (o *Orchestrator) CancelTurn() {
	o.activeMu.Lock()
	defer o.activeMu.Unlock()
	if o.activeSession != nil {
		o.activeSession.Abort()
	}
}

// Transcript returns a copy of the conversation so far.
func (o *Orchestrator) Transcript() []llms.Turn {
	return o.transcript.Snapshot()
}

// Close aborts the active session and waits for background image
// generation to finish.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		close(o.closed)
		o.CancelTurn()
		o.turnMu.Lock()
		o.turnMu.Unlock()
		o.background.Wait()
	})
}

func (o *Orchestrator) setActiveSession(session *StreamSession) {
	o.activeMu.Lock()
	o.activeSession = session
	o.activeMu.Unlock()
}

func (o *Orchestrator) generateSceneImage(ctx context.Context, description string) {
	o.background.Add(1)
	go func() {
		defer o.background.Done()

		ctx, span := tracer.Start(ctx, "generate scene image")
		defer span.End()

		url, err := o.images.Generate(ctx, description)
		if err != nil {
			err = fmt.Errorf("failed to generate scene image: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.logger.Warn("scene image generation failed", "error", err)
			return
		}
		o.onImage(url)
	}()
}
