package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	orchestration "github.com/koscakluka/ema-narrator/core"
	"github.com/koscakluka/ema-narrator/internal/config"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the adventure as a web chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		server := &http.Server{
			Addr:    net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
			Handler: newChatHandler(cfg),
		}

		serveErr := make(chan error, 1)
		go func() {
			slog.Info("serving web chat", "address", "http://"+server.Addr)
			serveErr <- server.ListenAndServe()
		}()

		select {
		case err := <-serveErr:
			return fmt.Errorf("web chat server stopped: %w", err)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down web chat server: %w", err)
		}
		return nil
	},
}

func newChatHandler(cfg *config.Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(chatPage))
	})
	mux.Handle("/ws", otelhttp.NewHandler(&chatSocket{cfg: cfg}, "chat websocket"))
	return mux
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type chatMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
}

const (
	messagePrompt = "prompt"
	messageCancel = "cancel"
	messageDelta  = "delta"
	messageEnd    = "end"
	messageImage  = "image"
	messageError  = "error"
)

// chatSocket gives every connection its own conversation. Narration is only
// typed, audio stays on the server.
type chatSocket struct {
	cfg *config.Config
}

func (h *chatSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("failed to upgrade chat connection", "error", err)
		return
	}
	defer conn.Close()

	client := &chatConn{conn: conn}
	narrator, closeAudio, err := newNarrator(h.cfg, client, false)
	if err != nil {
		_ = client.send(chatMessage{Type: messageError, Text: err.Error()})
		return
	}
	defer closeAudio()

	var opts []orchestration.OrchestratorOption
	images, err := newImages(h.cfg)
	if err != nil {
		_ = client.send(chatMessage{Type: messageError, Text: err.Error()})
		return
	}
	if images != nil {
		opts = append(opts, orchestration.WithSceneImages(images, func(url string) {
			_ = client.send(chatMessage{Type: messageImage, URL: url})
		}))
	}

	orchestrator, err := newOrchestrator(h.cfg, narrator, opts...)
	if err != nil {
		_ = client.send(chatMessage{Type: messageError, Text: err.Error()})
		return
	}
	defer orchestrator.Close()

	// The request context outlives the hijacked connection, connCtx ends when
	// the client goes away.
	connCtx, disconnect := context.WithCancel(r.Context())
	defer disconnect()

	// One prompt may wait while a response is being narrated.
	prompts := make(chan string, 1)
	go func() {
		defer close(prompts)
		defer disconnect()
		for {
			var msg chatMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Debug("chat connection closed", "error", err)
				}
				return
			}

			switch msg.Type {
			case messageCancel:
				orchestrator.CancelTurn()
			case messagePrompt:
				if text := strings.TrimSpace(msg.Text); text != "" {
					select {
					case prompts <- text:
					default:
						_ = client.send(chatMessage{Type: messageError, Text: "the dungeon master is still talking"})
					}
				}
			}
		}
	}()

	for prompt := range prompts {
		if connCtx.Err() != nil {
			return
		}
		err := orchestrator.Respond(connCtx, prompt)
		if err != nil && !errors.Is(err, orchestration.ErrSessionAborted) {
			_ = client.send(chatMessage{Type: messageError, Text: err.Error()})
		}
		if err := client.send(chatMessage{Type: messageEnd}); err != nil {
			return
		}
	}
}

// chatConn streams typed narration over a websocket. Writes are serialized,
// scene images arrive from the background.
type chatConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *chatConn) ShowCharacter(r rune) error {
	return c.send(chatMessage{Type: messageDelta, Text: string(r)})
}

func (c *chatConn) send(msg chatMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

const chatPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Dungeon Master</title>
<style>
body { font-family: sans-serif; max-width: 48em; margin: 2em auto; }
#log p { white-space: pre-wrap; }
.user { color: #1565c0; }
.assistant { color: #2e7d32; }
.error { color: #c62828; }
</style>
</head>
<body>
<h1>Dungeon Master</h1>
<div id="log"></div>
<form id="form">
<input id="prompt" size="60" autocomplete="off" autofocus>
<button>Send</button>
<button type="button" id="cancel">Stop</button>
</form>
<script>
const log = document.getElementById("log");
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
let current = null;
function line(cls, text) {
  const p = document.createElement("p");
  p.className = cls;
  p.textContent = text;
  log.appendChild(p);
  return p;
}
ws.onmessage = (event) => {
  const msg = JSON.parse(event.data);
  if (msg.type === "delta") {
    if (!current) current = line("assistant", "");
    current.textContent += msg.text;
  } else if (msg.type === "end") {
    current = null;
  } else if (msg.type === "image") {
    const img = document.createElement("img");
    img.src = msg.url;
    img.width = 512;
    log.appendChild(img);
  } else if (msg.type === "error") {
    line("error", msg.text);
  }
};
document.getElementById("form").onsubmit = (event) => {
  event.preventDefault();
  const input = document.getElementById("prompt");
  if (!input.value.trim()) return;
  line("user", input.value);
  ws.send(JSON.stringify({type: "prompt", text: input.value}));
  input.value = "";
};
document.getElementById("cancel").onclick = () => ws.send(JSON.stringify({type: "cancel"}));
</script>
</body>
</html>
`
