package web

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/MauroDruwel/Midnight-Investigator/asr"
	"github.com/MauroDruwel/Midnight-Investigator/decode"
	"github.com/MauroDruwel/Midnight-Investigator/stream"
)

// handleTranscribe upgrades the connection and runs one live transcription
// session over it. Setup failures (engine not loadable, ffmpeg missing)
// close the socket with a reason before any audio is accepted.
func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return h.originAllowed(r.Header.Get("Origin"))
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	engine, err := asr.Load(h.cfg.ASR)
	if err != nil {
		h.logger.Error("asr engine unavailable", "error", err)
		h.closeWithReason(conn, "transcription engine unavailable")
		return
	}

	decoder, err := decode.StartDecoder(h.cfg.FFmpegPath, h.logger)
	if err != nil {
		h.logger.Error("decoder spawn failed", "error", err)
		h.closeWithReason(conn, "audio decoder unavailable")
		return
	}

	h.logger.Info("transcription session started", "remote", r.RemoteAddr)
	session := stream.NewSession(conn, decoder, engine, h.logger)
	session.Run(r.Context())
	h.logger.Info("transcription session ended", "remote", r.RemoteAddr)
}

func (h *Handler) closeWithReason(conn *websocket.Conn, reason string) {
	_ = conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, reason),
	)
}

func (h *Handler) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
