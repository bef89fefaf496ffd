package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/MauroDruwel/Midnight-Investigator/asr"
)

type fakeConn struct {
	frames chan []byte

	mu       sync.Mutex
	messages []Message
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.frames
	if !ok {
		return 0, nil, errors.New("connection closed")
	}
	return websocket.BinaryMessage, data, nil
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	msg, ok := v.(Message)
	if !ok {
		return errors.New("unexpected message type")
	}
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

type fakeDecoder struct {
	reads [][]byte
	next  int

	closedInput atomic.Int32
	stopped     atomic.Int32
}

func (d *fakeDecoder) Feed(data []byte) error { return nil }

func (d *fakeDecoder) ReadNext() ([]byte, error) {
	if d.next >= len(d.reads) {
		return nil, nil
	}
	pcm := d.reads[d.next]
	d.next++
	return pcm, nil
}

func (d *fakeDecoder) CloseInput() { d.closedInput.Add(1) }
func (d *fakeDecoder) Stop()       { d.stopped.Add(1) }

func oneSecondPCM() []byte {
	return make([]byte, 32000)
}

func TestSessionEndToEnd(t *testing.T) {
	engine := &fakeEngine{results: []asr.Result{
		{
			Text: "hello world",
			Segments: []asr.Segment{wordSegment(
				asr.Word{Start: 0, End: 0.5, Text: "hello"},
				asr.Word{Start: 0.5, End: 1.0, Text: "world"},
			)},
		},
		{
			Text: "hello world there",
			Segments: []asr.Segment{wordSegment(
				asr.Word{Start: 0, End: 0.5, Text: "hello"},
				asr.Word{Start: 0.5, End: 1.0, Text: "world"},
				asr.Word{Start: 1.0, End: 1.5, Text: "there"},
			)},
		},
	}}
	decoder := &fakeDecoder{reads: [][]byte{oneSecondPCM(), oneSecondPCM()}}
	conn := &fakeConn{frames: make(chan []byte)}
	close(conn.frames)

	session := NewSession(conn, decoder, engine, testLogger())
	session.Run(context.Background())

	messages := conn.sent()
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3: %+v", len(messages), messages)
	}

	first := messages[0]
	if first.Transcript != "" {
		t.Errorf("first transcript = %q, want empty", first.Transcript)
	}
	if first.Buffer != "hello world" {
		t.Errorf("first buffer = %q, want %q", first.Buffer, "hello world")
	}
	if first.Timestamp != nil {
		t.Error("first message has a timestamp despite no commit")
	}

	second := messages[1]
	if second.Transcript != "hello world" {
		t.Errorf("second transcript = %q, want %q", second.Transcript, "hello world")
	}
	if second.Timestamp == nil {
		t.Fatal("second message missing timestamp")
	}
	if second.Timestamp.Start != 0 || second.Timestamp.End != 1.0 {
		t.Errorf(
			"second timestamp = (%v, %v), want (0, 1)",
			second.Timestamp.Start,
			second.Timestamp.End,
		)
	}
	if second.FullText != "hello world" {
		t.Errorf("second full_text = %q, want %q", second.FullText, "hello world")
	}

	final := messages[2]
	if !final.Final {
		t.Error("last message not marked final")
	}
	if final.Transcript != "there" {
		t.Errorf("final transcript = %q, want %q", final.Transcript, "there")
	}
	if final.FullText != "hello world there" {
		t.Errorf("final full_text = %q, want %q", final.FullText, "hello world there")
	}

	if got := decoder.stopped.Load(); got != 1 {
		t.Errorf("decoder stopped %d times, want 1", got)
	}
}

func TestSessionFinalSentAtMostOnce(t *testing.T) {
	engine := &fakeEngine{results: []asr.Result{
		{Text: "tail"},
	}}
	decoder := &fakeDecoder{reads: [][]byte{oneSecondPCM()}}
	conn := &fakeConn{frames: make(chan []byte)}
	close(conn.frames)

	session := NewSession(conn, decoder, engine, testLogger())
	session.Run(context.Background())
	session.teardown()
	session.teardown()

	finals := 0
	for _, msg := range conn.sent() {
		if msg.Final {
			finals++
		}
	}
	if finals != 1 {
		t.Errorf("final message sent %d times, want 1", finals)
	}
	if got := decoder.stopped.Load(); got != 1 {
		t.Errorf("decoder stopped %d times, want 1", got)
	}
}

func TestSessionNoFinalWhenNothingPending(t *testing.T) {
	engine := &fakeEngine{}
	decoder := &fakeDecoder{}
	conn := &fakeConn{frames: make(chan []byte)}
	close(conn.frames)

	session := NewSession(conn, decoder, engine, testLogger())
	session.Run(context.Background())

	if messages := conn.sent(); len(messages) != 0 {
		t.Errorf("expected no messages, got %+v", messages)
	}
}
