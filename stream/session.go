package stream

import (
	"context"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/MauroDruwel/Midnight-Investigator/asr"
	"github.com/MauroDruwel/Midnight-Investigator/decode"
)

// Timestamp bounds one committed stretch, in absolute session seconds.
type Timestamp struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Message is one outbound transcription update. Transcript holds text newly
// committed this iteration, Buffer the still-unconfirmed tail, FullText the
// cumulative committed transcript. Timestamp is present only when
// Transcript is non-empty; Final marks the terminal message.
type Message struct {
	Transcript string     `json:"transcript"`
	Buffer     string     `json:"buffer"`
	FullText   string     `json:"full_text"`
	Timestamp  *Timestamp `json:"timestamp"`
	Final      bool       `json:"final,omitempty"`
}

// Conn is the slice of *websocket.Conn the session needs, split out so
// tests can drive a session without a network.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
}

// Decoder is the capability the session needs from the decoding process:
// feed compressed bytes in, read raw PCM out, shut down. Implemented by
// decode.Decoder.
type Decoder interface {
	Feed(data []byte) error
	ReadNext() ([]byte, error)
	CloseInput()
	Stop()
}

// Session ties one client connection to one decoder process and one online
// processor. Two loops run for its lifetime: ingest relays client frames
// into the decoder, produce turns decoder output into transcript messages.
// Either loop ending brings the whole session down, and teardown runs
// exactly once no matter which path got there first.
type Session struct {
	conn    Conn
	decoder Decoder
	proc    *OnlineProcessor
	logger  *log.Logger

	accumulator decode.Accumulator
	committed   []string
	finishOnce  sync.Once
}

func NewSession(
	conn Conn,
	decoder Decoder,
	engine asr.Engine,
	logger *log.Logger,
) *Session {
	return &Session{
		conn:    conn,
		decoder: decoder,
		proc:    NewOnlineProcessor(engine, logger),
		logger:  logger,
	}
}

// Run blocks until the session is over: client disconnect, decoder EOF, or
// an error in either loop. All teardown has happened by the time it
// returns.
func (s *Session) Run(ctx context.Context) {
	go s.ingest()
	s.produce(ctx)
	s.teardown()
}

// ingest relays binary frames from the client into the decoder as they
// arrive. On disconnect it closes the decoder's input so the produce loop
// drains the remaining audio and sees EOF.
func (s *Session) ingest() {
	defer s.decoder.CloseInput()
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				s.logger.Warn("client read failed", "error", err)
			} else {
				s.logger.Debug("client disconnected")
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if err := s.decoder.Feed(data); err != nil {
			s.logger.Error("feed decoder", "error", err)
			return
		}
	}
}

// produce reads decoded PCM, accumulates one-second chunks, and runs a
// recognition pass per chunk, sending an update after each.
func (s *Session) produce(ctx context.Context) {
	for {
		pcm, err := s.decoder.ReadNext()
		if err != nil {
			s.logger.Error("read decoder", "error", err)
			return
		}
		if pcm == nil {
			s.logger.Debug("decoder eof")
			return
		}

		samples := s.accumulator.Push(pcm)
		if samples == nil {
			continue
		}

		s.proc.InsertAudioChunk(samples)
		span, err := s.proc.ProcessIter(ctx)
		if err != nil {
			s.logger.Error("transcription failed", "error", err)
			return
		}

		if err := s.send(span, false); err != nil {
			s.logger.Error("send update", "error", err)
			return
		}
	}
}

// teardown stops the decoder and flushes the unconfirmed tail as a final
// message. Runs its work at most once; errors here are swallowed so they
// cannot mask whatever ended the session.
func (s *Session) teardown() {
	s.finishOnce.Do(func() {
		s.decoder.Stop()
		final := s.proc.Finish()
		if final.Empty() {
			return
		}
		if err := s.send(final, true); err != nil {
			s.logger.Debug("final message not delivered", "error", err)
		}
	})
}

func (s *Session) send(span Span, final bool) error {
	msg := Message{
		Transcript: span.Text,
		Final:      final,
	}
	if !final {
		msg.Buffer = joinTokens(s.proc.hypothesis.Complete()).Text
	}
	if !span.Empty() {
		s.committed = append(s.committed, span.Text)
		msg.Timestamp = &Timestamp{Start: span.Start, End: span.End}
	}
	msg.FullText = strings.Join(s.committed, " ")
	return s.conn.WriteJSON(msg)
}
