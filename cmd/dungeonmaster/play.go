package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	orchestration "github.com/koscakluka/ema-narrator/core"
)

const (
	quitCommand = "quit"
	wrapWidth   = 80
)

var (
	userPromptStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantPromptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	sceneStyle           = lipgloss.NewStyle().Faint(true)
	errorStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var noSpeech bool

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play an adventure in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		display := orchestration.NewWriterDisplay(out)
		narrator, closeAudio, err := newNarrator(cfg, display, !noSpeech)
		if err != nil {
			return err
		}
		defer closeAudio()

		var opts []orchestration.OrchestratorOption
		images, err := newImages(cfg)
		if err != nil {
			return err
		}
		if images != nil {
			opts = append(opts, orchestration.WithSceneImages(images, func(url string) {
				fmt.Fprintln(out, sceneStyle.Render(wordwrap.String("Scene URL: "+url, wrapWidth)))
			}))
		}

		orchestrator, err := newOrchestrator(cfg, narrator, opts...)
		if err != nil {
			return err
		}
		defer orchestrator.Close()

		return playLoop(ctx, cmd.InOrStdin(), out, orchestrator)
	},
}

func init() {
	playCmd.Flags().BoolVar(&noSpeech, "no-speech", false, "only type the story, do not voice it")
}

func playLoop(ctx context.Context, in io.Reader, out io.Writer, orchestrator *orchestration.Orchestrator) error {
	banner := "Welcome, adventurer. Describe what you do and the dungeon master will answer. " +
		"Type '" + quitCommand + "' to leave the game."
	fmt.Fprintln(out, wordwrap.String(banner, wrapWidth))

	stop := make(chan struct{})
	defer close(stop)
	lines, readErr := readLines(in, stop)
	for {
		fmt.Fprint(out, "\n"+userPromptStyle.Render("user >")+" ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case next, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
				return nil
			}
			line = next
		}

		prompt := strings.TrimSpace(line)
		if prompt == "" {
			continue
		}
		if strings.EqualFold(prompt, quitCommand) {
			return nil
		}

		fmt.Fprint(out, "\n"+assistantPromptStyle.Render("assistant >")+" ")
		err := orchestrator.Respond(ctx, prompt)
		fmt.Fprintln(out)
		if err != nil {
			if errors.Is(err, orchestration.ErrSessionAborted) && ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(out, errorStyle.Render(err.Error()))
		}
	}
}

// readLines scans in on its own goroutine so an interrupt is not stuck behind
// a blocked read. The error channel yields once lines is closed.
func readLines(in io.Reader, stop <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		readErr <- scanner.Err()
	}()
	return lines, readErr
}
