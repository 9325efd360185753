// Package agenthost implements the detached agent host process: it
// opens a PTY, runs an agent command inside it, and streams the PTY to
// any number of TCP clients using a small framed binary protocol.
package agenthost

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/slotforge/slotforge/internal/slotz"
)

// Channel identifies which stream a frame belongs to.
type Channel byte

const (
	ChannelPTYOutput Channel = 0x01
	ChannelPTYInput  Channel = 0x02
	ChannelControl   Channel = 0x03
)

const maxPayload = 65535

// WriteFrame writes [channel:1][len:2 LE][payload] to w, truncating
// payload to maxPayload bytes if it's longer.
func WriteFrame(w io.Writer, ch Channel, payload []byte) error {
	if len(payload) > maxPayload {
		payload = payload[:maxPayload]
	}
	header := make([]byte, 3)
	header[0] = byte(ch)
	binary.LittleEndian.PutUint16(header[1:], uint16(len(payload)))
	if _, err := w.Write(header); err != nil {
		return slotz.Wrap(slotz.KindAgent, "", err)
	}
	if _, err := w.Write(payload); err != nil {
		return slotz.Wrap(slotz.KindAgent, "", err)
	}
	return nil
}

// ReadFrame reads one [channel][len][payload] frame from r.
func ReadFrame(r *bufio.Reader) (Channel, []byte, error) {
	chByte, err := r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	lenBuf := make([]byte, 2)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return 0, nil, err
	}
	n := binary.LittleEndian.Uint16(lenBuf)
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
	}
	return Channel(chByte), payload, nil
}
