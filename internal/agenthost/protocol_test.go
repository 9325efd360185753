package agenthost

import (
	"bufio"
	"bytes"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		ch      Channel
		payload []byte
	}{
		{"pty output", ChannelPTYOutput, []byte("hello from the shell\n")},
		{"pty input", ChannelPTYInput, []byte("ls -la\n")},
		{"control", ChannelControl, []byte(`{"resize":[120,40]}`)},
		{"empty payload", ChannelControl, []byte{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFrame(&buf, tc.ch, tc.payload); err != nil {
				t.Fatalf("WriteFrame: %v", err)
			}

			gotCh, gotPayload, err := ReadFrame(bufio.NewReader(&buf))
			if err != nil {
				t.Fatalf("ReadFrame: %v", err)
			}
			if gotCh != tc.ch {
				t.Errorf("channel = %v, want %v", gotCh, tc.ch)
			}
			if !bytes.Equal(gotPayload, tc.payload) {
				t.Errorf("payload = %q, want %q", gotPayload, tc.payload)
			}
		})
	}
}

func TestWriteFrameTruncatesOversizedPayload(t *testing.T) {
	t.Parallel()

	oversized := bytes.Repeat([]byte("x"), maxPayload+1000)

	var buf bytes.Buffer
	if err := WriteFrame(&buf, ChannelPTYOutput, oversized); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	_, payload, err := ReadFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(payload) != maxPayload {
		t.Fatalf("payload len = %d, want %d", len(payload), maxPayload)
	}
}

func TestReadFrameMultipleInSequence(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	WriteFrame(&buf, ChannelPTYOutput, []byte("one"))
	WriteFrame(&buf, ChannelPTYOutput, []byte("two"))

	r := bufio.NewReader(&buf)

	_, p1, err := ReadFrame(r)
	if err != nil || string(p1) != "one" {
		t.Fatalf("first frame = %q, err = %v", p1, err)
	}
	_, p2, err := ReadFrame(r)
	if err != nil || string(p2) != "two" {
		t.Fatalf("second frame = %q, err = %v", p2, err)
	}
}
