// Package agentclient is how the daemon and the CLI's `agent attach`
// command talk to a detached agent host process: spawning one,
// connecting to its TCP port, and tearing it down.
package agentclient

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/slotforge/slotforge/internal/agenthost"
	"github.com/slotforge/slotforge/internal/model"
	"github.com/slotforge/slotforge/internal/slotz"
)

const (
	spawnPollInterval = 250 * time.Millisecond
	spawnTimeout      = 10 * time.Second
)

// Connection is a live link to an agent host's TCP stream.
type Connection struct {
	conn net.Conn
	r    *bufio.Reader
}

func (c *Connection) ReadFrame() (agenthost.Channel, []byte, error) {
	ch, payload, err := agenthost.ReadFrame(c.r)
	if err != nil {
		return 0, nil, slotz.Wrap(slotz.KindAgent, "", err)
	}
	return ch, payload, nil
}

func (c *Connection) SendInput(data []byte) error {
	return agenthost.WriteFrame(c.conn, agenthost.ChannelPTYInput, data)
}

func (c *Connection) SendResize(cols, rows int) error {
	payload, _ := json.Marshal(map[string][2]int{"resize": {cols, rows}})
	return agenthost.WriteFrame(c.conn, agenthost.ChannelControl, payload)
}

func (c *Connection) SendKill() error {
	payload, _ := json.Marshal("kill")
	return agenthost.WriteFrame(c.conn, agenthost.ChannelControl, payload)
}

func (c *Connection) Close() error { return c.conn.Close() }

// Spawn launches a detached agent host process running command inside
// workdir, tailing its PTY output to logFile, and waits for it to
// publish its lease file under slotsDir/slotName/.agent-host.json.
func Spawn(slotName string, command []string, workdir, logFile, slotsDir string) error {
	exe, err := os.Executable()
	if err != nil {
		return slotz.Wrap(slotz.KindAgent, slotName, err)
	}

	hostDir := filepath.Join(slotsDir, slotName)
	if err := os.MkdirAll(hostDir, 0o755); err != nil {
		return slotz.Wrap(slotz.KindAgent, slotName, err)
	}

	args := []string{
		"--host-agent",
		"--slot", slotName,
		"--workdir", workdir,
		"--log-file", logFile,
		"--slots-dir", slotsDir,
		"--",
	}
	args = append(args, command...)

	cmd := exec.Command(exe, args...)
	cmd.Stdin = nil
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err == nil {
		cmd.Stdin = devNull
		cmd.Stdout = devNull
		cmd.Stderr = devNull
	}
	setDetachAttrs(cmd)

	if err := cmd.Start(); err != nil {
		return slotz.Wrap(slotz.KindAgent, slotName, err)
	}

	infoPath := agenthost.InfoPath(slotsDir, slotName)
	deadline := time.Now().Add(spawnTimeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(infoPath); err == nil {
			return nil
		}
		time.Sleep(spawnPollInterval)
	}
	return slotz.New(slotz.KindAgent, slotName, "host process did not start in time")
}

// Connect dials a running agent host's TCP port.
func Connect(slotName, slotsDir string) (*Connection, error) {
	info, err := readHostInfo(slotName, slotsDir)
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", info.Port))
	if err != nil {
		return nil, slotz.Wrap(slotz.KindAgent, slotName, err)
	}
	return &Connection{conn: conn, r: bufio.NewReader(conn)}, nil
}

// ListRunning scans slotsDir for live agent hosts, pruning stale lease
// files left behind by processes that died without cleaning up.
func ListRunning(slotsDir string) ([]string, error) {
	entries, err := os.ReadDir(slotsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, slotz.Wrap(slotz.KindAgent, slotsDir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		infoPath := agenthost.InfoPath(slotsDir, e.Name())
		info, err := readHostInfoFromPath(infoPath)
		if err != nil {
			continue
		}
		if isPIDAlive(info.PID) {
			names = append(names, e.Name())
		} else {
			os.Remove(infoPath)
		}
	}
	return names, nil
}

// Kill terminates a slot's agent host process and removes its lease file.
func Kill(slotName, slotsDir string) error {
	infoPath := agenthost.InfoPath(slotsDir, slotName)
	if info, err := readHostInfoFromPath(infoPath); err == nil {
		killPID(info.PID)
	}
	os.Remove(infoPath)
	return nil
}

// IsRunning reports whether slotName has a live agent host process.
func IsRunning(slotName, slotsDir string) bool {
	info, err := readHostInfo(slotName, slotsDir)
	if err != nil {
		return false
	}
	return isPIDAlive(info.PID)
}

func readHostInfo(slotName, slotsDir string) (*model.AgentHostInfo, error) {
	return readHostInfoFromPath(agenthost.InfoPath(slotsDir, slotName))
}

func readHostInfoFromPath(path string) (*model.AgentHostInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, slotz.Wrap(slotz.KindAgent, path, err)
	}
	var info model.AgentHostInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, slotz.Wrap(slotz.KindAgent, path, err)
	}
	return &info, nil
}

