package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MauroDruwel/Midnight-Investigator/asr"
	"github.com/MauroDruwel/Midnight-Investigator/interview"
	"github.com/MauroDruwel/Midnight-Investigator/llm"
	"github.com/MauroDruwel/Midnight-Investigator/web"
)

var allowedOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Run:   runServe,
}

var listInterviewsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored interviews",
	Run:   runListInterviews,
}

func webConfig() web.Config {
	return web.Config{
		DataDir:    viper.GetString("data_dir"),
		FFmpegPath: viper.GetString("ffmpeg_path"),
		ASR: asr.Config{
			URL: viper.GetString("whisper_url"),
		},
		AllowedOrigins: allowedOrigins,
	}
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := webConfig()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal("create data dir", "error", err)
	}

	store := interview.NewStore(filepath.Join(cfg.DataDir, "interviews.json"))
	analyst := llm.NewAnalyst(
		viper.GetString("llm_api_key"),
		viper.GetString("llm_base_url"),
		viper.GetString("llm_model"),
		viper.GetString("llm_vision_model"),
		viper.GetString("gemini_api_key"),
		logger.WithPrefix("llm"),
	)
	handler := web.NewHandler(cfg, store, analyst, logger.WithPrefix("web"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(web.CORS(allowedOrigins))
	handler.Routes(r)

	addr := fmt.Sprintf(":%d", viper.GetInt("port"))
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("server stopped", "error", err)
	}
}

func runListInterviews(cmd *cobra.Command, args []string) {
	cfg := webConfig()
	store := interview.NewStore(filepath.Join(cfg.DataDir, "interviews.json"))

	interviews, err := store.List()
	if err != nil {
		logger.Fatal("load interviews", "error", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Guilt", "Audio", "Transcript"})
	table.SetBorder(false)
	table.SetColumnSeparator(" ")

	for _, iv := range interviews {
		guilt := "-"
		if iv.GuiltLevel >= 0 {
			guilt = fmt.Sprintf("%d", iv.GuiltLevel)
		}
		transcript := iv.Transcript
		if len(transcript) > 60 {
			transcript = transcript[:57] + "..."
		}
		table.Append([]string{iv.Name, guilt, iv.AudioPath, transcript})
	}

	table.Render()
}
