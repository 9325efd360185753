package agenthost

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/creack/pty"

	"github.com/slotforge/slotforge/internal/model"
	"github.com/slotforge/slotforge/internal/slotlog"
)

const (
	ptyCols = 120
	ptyRows = 40

	infoFileName = ".agent-host.json"
)

// InfoPath returns the lease-file path for slotName under slotsDir.
func InfoPath(slotsDir, slotName string) string {
	return filepath.Join(slotsDir, slotName, infoFileName)
}

// Run is the entry point for `slotforge --host-agent`. It opens a PTY,
// spawns command inside it, listens on a loopback port, and streams PTY
// output to any TUI/CLI client that connects, until the child exits.
func Run(slotName string, command []string, workdir, logFile, slotsDir string) error {
	log := slotlog.ForSlot("agenthost", slotName)

	if len(command) == 0 {
		return fmt.Errorf("agenthost: no command given")
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = workdir
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: ptyRows, Cols: ptyCols})
	if err != nil {
		return fmt.Errorf("agenthost: open pty: %w", err)
	}
	defer ptmx.Close()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("agenthost: listen: %w", err)
	}
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port
	info := model.AgentHostInfo{
		SlotName:  slotName,
		PID:       os.Getpid(),
		Port:      port,
		StartedAt: time.Now().UTC(),
	}

	infoDir := filepath.Join(slotsDir, slotName)
	if err := os.MkdirAll(infoDir, 0o755); err != nil {
		return fmt.Errorf("agenthost: create info dir: %w", err)
	}
	infoPath := filepath.Join(infoDir, infoFileName)
	infoJSON, _ := json.Marshal(info)
	if err := os.WriteFile(infoPath, infoJSON, 0o644); err != nil {
		return fmt.Errorf("agenthost: write info file: %w", err)
	}
	defer os.Remove(infoPath)

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			log.Warn().Err(err).Msg("create log dir")
		}
	}
	logFd, _ := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)

	broadcaster := newBroadcaster()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		buf := make([]byte, 4096)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				data := append([]byte(nil), buf[:n]...)
				if logFd != nil {
					logFd.Write(data)
				}
				broadcaster.Publish(data)
			}
			if err != nil {
				return
			}
		}
	}()

	writer := &ptyWriter{f: ptmx}
	go acceptClients(listener, broadcaster, writer)

	err = cmd.Wait()
	exitCode := 0
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		} else {
			exitCode = -1
		}
	}

	exitJSON, _ := json.Marshal(map[string]int{"exited": exitCode})
	broadcaster.PublishControl(exitJSON)

	time.Sleep(500 * time.Millisecond)

	<-readDone
	if logFd != nil {
		logFd.Close()
	}
	log.Info().Int("exit_code", exitCode).Msg("agent process exited")
	return nil
}

// broadcaster fans PTY output out to every connected client. Each client
// gets its own bounded channel; a slow client drops frames rather than
// blocking the PTY reader or other clients.
type broadcaster struct {
	mu      sync.Mutex
	clients map[chan frame]struct{}
}

type frame struct {
	channel Channel
	payload []byte
}

func newBroadcaster() *broadcaster {
	return &broadcaster{clients: make(map[chan frame]struct{})}
}

func (b *broadcaster) subscribe() chan frame {
	ch := make(chan frame, 256)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broadcaster) unsubscribe(ch chan frame) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
}

func (b *broadcaster) Publish(payload []byte) {
	b.publish(frame{channel: ChannelPTYOutput, payload: payload})
}

func (b *broadcaster) PublishControl(payload []byte) {
	b.publish(frame{channel: ChannelControl, payload: payload})
}

func (b *broadcaster) publish(f frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- f:
		default:
			// client too slow; drop this frame for it
		}
	}
}

// ptyWriter serializes writes to the PTY master across every connected
// client's input-relay goroutine, since creack/pty doesn't guarantee
// concurrent writes are safe.
type ptyWriter struct {
	mu sync.Mutex
	f  *os.File
}

func (w *ptyWriter) Write(p []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.f.Write(p)
}

func (w *ptyWriter) Resize(cols, rows uint16) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pty.Setsize(w.f, &pty.Winsize{Cols: cols, Rows: rows})
}

func acceptClients(listener net.Listener, b *broadcaster, writer *ptyWriter) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		go handleClient(conn, b, writer)
	}
}

func handleClient(conn net.Conn, b *broadcaster, writer *ptyWriter) {
	defer conn.Close()

	sub := b.subscribe()
	defer b.unsubscribe(sub)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for f := range sub {
			if err := WriteFrame(conn, f.channel, f.payload); err != nil {
				return
			}
		}
	}()

	r := bufio.NewReader(conn)
	for {
		ch, payload, err := ReadFrame(r)
		if err != nil {
			break
		}
		switch ch {
		case ChannelPTYInput:
			writer.Write(payload)
		case ChannelControl:
			handleControl(payload, writer)
		}
	}
	conn.Close()
	<-writerDone
}

func handleControl(payload []byte, writer *ptyWriter) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(payload, &msg); err == nil {
		if raw, ok := msg["resize"]; ok {
			var dims [2]int
			if json.Unmarshal(raw, &dims) == nil {
				writer.Resize(uint16(dims[0]), uint16(dims[1]))
			}
		}
		return
	}
	var s string
	if json.Unmarshal(payload, &s) == nil && s == "kill" {
		os.Exit(1)
	}
}
