package miniaudio

import (
	"testing"
	"time"
)

func waitForMark(t *testing.T, marks <-chan string, want string) {
	t.Helper()
	select {
	case got := <-marks:
		if got != want {
			t.Fatalf("expected mark %q, got %q", want, got)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected mark %q to be reached", want)
	}
}

func TestProcessAudioCopiesAndPadsWithSilence(t *testing.T) {
	client := &playbackClient{leftoverAudio: []byte{1, 2, 3}}
	process := client.processAudio(2)

	output := []byte{9, 9, 9, 9}
	process(output, nil, 2)

	if want := []byte{1, 2, 3, 0}; string(output) != string(want) {
		t.Fatalf("expected output %v, got %v", want, output)
	}
	if len(client.leftoverAudio) != 0 {
		t.Fatalf("expected all audio consumed, got %d bytes left", len(client.leftoverAudio))
	}
}

func TestProcessAudioReleasesMarksOncePlayed(t *testing.T) {
	client := &playbackClient{leftoverAudio: make([]byte, 6)}
	marks := make(chan string, 2)
	_ = client.Mark("end", func(name string) { marks <- name })

	process := client.processAudio(2)
	output := make([]byte, 4)

	process(output, nil, 2)
	select {
	case name := <-marks:
		t.Fatalf("expected mark %q to wait for the remaining audio", name)
	case <-time.After(10 * time.Millisecond):
	}
	if client.marks[0].position != 2 {
		t.Fatalf("expected mark position to move with playback, got %d", client.marks[0].position)
	}

	process(output, nil, 2)
	waitForMark(t, marks, "end")
	if len(client.marks) != 0 {
		t.Fatalf("expected no marks left, got %d", len(client.marks))
	}
}

func TestProcessMarksReturnsReachedPrefix(t *testing.T) {
	client := &playbackClient{marks: []playbackMark{
		{name: "a", position: 1},
		{name: "b", position: 3},
		{name: "c", position: 8},
	}}

	passed := client.processMarks(4)
	if len(passed) != 2 || passed[0].name != "a" || passed[1].name != "b" {
		t.Fatalf("expected marks a and b to be reached, got %+v", passed)
	}
	if len(client.marks) != 1 || client.marks[0].position != 4 {
		t.Fatalf("expected mark c to remain at position 4, got %+v", client.marks)
	}
}

func TestClearBufferReleasesPendingMarks(t *testing.T) {
	client := &playbackClient{leftoverAudio: make([]byte, 100)}
	marks := make(chan string, 1)
	_ = client.Mark("dropped", func(name string) { marks <- name })

	client.ClearBuffer()

	waitForMark(t, marks, "dropped")
	if len(client.leftoverAudio) != 0 {
		t.Fatalf("expected buffer to be cleared, got %d bytes", len(client.leftoverAudio))
	}
}

func TestSendAudioRequiresDevice(t *testing.T) {
	client := &playbackClient{}
	if err := client.SendAudio([]byte{1}); err == nil {
		t.Fatalf("expected an error without an initialized device")
	}
}
