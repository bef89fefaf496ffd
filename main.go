package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logger *log.Logger

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listInterviewsCmd)

	rootCmd.PersistentFlags().Int("port", 8000, "HTTP server port")
	rootCmd.PersistentFlags().
		String("data-dir", "data", "Directory for interviews and audio files")
	rootCmd.PersistentFlags().
		String("whisper-url", "http://127.0.0.1:8178", "Whisper server base URL")
	rootCmd.PersistentFlags().String("ffmpeg-path", "ffmpeg", "ffmpeg binary")
	rootCmd.PersistentFlags().String("llm-api-key", "", "LLM proxy API key")
	rootCmd.PersistentFlags().
		String("llm-base-url", "https://ai.hackclub.com/proxy/v1", "OpenAI-compatible base URL")
	rootCmd.PersistentFlags().
		String("llm-model", "openai/gpt-5.1", "Chat model for guilt/summary analysis")
	rootCmd.PersistentFlags().
		String("llm-vision-model", "qwen/qwen3-vl-235b-a22b-instruct", "Vision model for video feedback")
	rootCmd.PersistentFlags().
		String("gemini-api-key", "", "Gemini API key for the analysis fallback")

	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag(
		"whisper_url",
		rootCmd.PersistentFlags().Lookup("whisper-url"),
	)
	viper.BindPFlag(
		"ffmpeg_path",
		rootCmd.PersistentFlags().Lookup("ffmpeg-path"),
	)
	viper.BindPFlag(
		"llm_api_key",
		rootCmd.PersistentFlags().Lookup("llm-api-key"),
	)
	viper.BindPFlag(
		"llm_base_url",
		rootCmd.PersistentFlags().Lookup("llm-base-url"),
	)
	viper.BindPFlag("llm_model", rootCmd.PersistentFlags().Lookup("llm-model"))
	viper.BindPFlag(
		"llm_vision_model",
		rootCmd.PersistentFlags().Lookup("llm-vision-model"),
	)
	viper.BindPFlag(
		"gemini_api_key",
		rootCmd.PersistentFlags().Lookup("gemini-api-key"),
	)
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("Error reading config file: %s\n", err)
		}
	}

	logger = log.New(os.Stdout)

	if viper.GetString("llm_api_key") == "" {
		logger.Warn("llm_api_key not set; analysis endpoints will fail")
	}
}

var rootCmd = &cobra.Command{
	Use:   "investigator",
	Short: "Midnight Investigator backend",
	Long:  `Detective-game backend: live interview transcription, guilt analysis, and suspect ranking.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
