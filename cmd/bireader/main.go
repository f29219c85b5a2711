// Package main provides the bireader CLI: offline alignment and a terminal
// reader driving the session engine.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"bireader-backend/internal/aligner"
	"bireader-backend/internal/audio"
	"bireader-backend/internal/client"
	"bireader-backend/internal/models"
	"bireader-backend/internal/session"
	"bireader-backend/internal/textsource"
)

var (
	alignSource string
	alignTarget string
	alignPretty bool

	readSource     string
	readTarget     string
	readArticleID  string
	readSessionID  string
	readResume     bool
	readAPIURL     string
	readToken      string
	readTTS        string
	readSpeed      float64
	readNoAutoplay bool
	readShowTrans  bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "bireader",
		Short:        "Bilingual sentence-card reader",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newAlignCmd())
	rootCmd.AddCommand(newReadCmd())

	return rootCmd
}

func newAlignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "align",
		Short: "Align a source text with its translation and print the cards as JSON",
		Args:  cobra.NoArgs,
		RunE:  runAlignCmd,
	}
	cmd.Flags().StringVar(&alignSource, "source", "", "source-language file: .txt, .md, .pdf or .docx (required)")
	cmd.Flags().StringVar(&alignTarget, "target", "", "translation text file (required)")
	cmd.Flags().BoolVar(&alignPretty, "pretty", false, "indent the JSON output")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("target")
	return cmd
}

func runAlignCmd(cmd *cobra.Command, _ []string) error {
	processed, err := alignFiles(alignSource, alignTarget)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if alignPretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(processed)
}

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read an article card by card",
		Long: `Read an article card by card.

Offline: pass --source and --target; progress lives only for this run.
Online: pass --article-id (and --session-id or --resume to continue) with
BIREADER_API_URL and BIREADER_TOKEN set, or the matching flags.`,
		Args: cobra.NoArgs,
		RunE: runReadCmd,
	}
	cmd.Flags().StringVar(&readSource, "source", "", "source-language text file (offline)")
	cmd.Flags().StringVar(&readTarget, "target", "", "translation text file (offline)")
	cmd.Flags().StringVar(&readArticleID, "article-id", "", "article to read from the API")
	cmd.Flags().StringVar(&readSessionID, "session-id", "", "session to resume")
	cmd.Flags().BoolVar(&readResume, "resume", false, "resume the latest session of the article")
	cmd.Flags().StringVar(&readAPIURL, "api", os.Getenv("BIREADER_API_URL"), "API base URL, e.g. http://localhost:8080/api/v1")
	cmd.Flags().StringVar(&readToken, "token", os.Getenv("BIREADER_TOKEN"), "access token")
	cmd.Flags().StringVar(&readTTS, "tts", "espeak", "text-to-speech command, empty to disable")
	cmd.Flags().Float64Var(&readSpeed, "speed", 1.0, "speech speed multiplier for a new session")
	cmd.Flags().BoolVar(&readNoAutoplay, "no-autoplay", false, "do not speak each card automatically")
	cmd.Flags().BoolVar(&readShowTrans, "show-translation", false, "show the translation without flipping")
	return cmd
}

func runReadCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := log.New(cmd.ErrOrStderr(), "bireader: ", 0)
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithPlayer(newPlayer(readTTS)),
	}
	settings := models.ReadingSettings{
		AutoPlayTTS:     !readNoAutoplay,
		TTSSpeed:        readSpeed,
		ShowTranslation: readShowTrans,
	}

	eng, err := openEngine(ctx, settings, opts)
	if err != nil {
		return err
	}
	return runReader(ctx, eng, cmd.InOrStdin(), cmd.OutOrStdout())
}

func openEngine(ctx context.Context, settings models.ReadingSettings, opts []session.Option) (*session.Engine, error) {
	if readArticleID == "" {
		if readSource == "" || readTarget == "" {
			return nil, errors.New("either --article-id or both --source and --target are required")
		}
		processed, err := alignFiles(readSource, readTarget)
		if err != nil {
			return nil, err
		}
		return session.Start(ctx, session.NewMemoryStore(nil), uuid.New(), processed, settings, opts...)
	}

	if readAPIURL == "" {
		return nil, errors.New("--api or BIREADER_API_URL is required to read from the server")
	}
	articleID, err := uuid.Parse(readArticleID)
	if err != nil {
		return nil, fmt.Errorf("invalid --article-id: %w", err)
	}

	api := client.New(readAPIURL, readToken)
	processed, err := api.Cards(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cards: %w", err)
	}

	sessionID := readSessionID
	if sessionID == "" && readResume {
		latest, err := api.LatestSession(ctx, articleID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up sessions: %w", err)
		}
		if latest != nil {
			sessionID = latest.ID.String()
		}
	}

	if sessionID == "" {
		return session.Start(ctx, api, articleID, processed, settings, opts...)
	}
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid --session-id: %w", err)
	}
	return session.Resume(ctx, api, id, processed.Sentences, opts...)
}

func alignFiles(sourcePath, targetPath string) (*models.ProcessedArticle, error) {
	source, err := textsource.Paragraphs(sourcePath)
	if err != nil {
		return nil, err
	}
	target, err := textsource.Paragraphs(targetPath)
	if err != nil {
		return nil, err
	}

	processed := aligner.Align(source, target)
	if processed.SentenceCount > 0 {
		if err := aligner.ValidateCards(processed.Sentences); err != nil {
			return nil, err
		}
	}
	return processed, nil
}

// newPlayer speaks through the named command, falling back to macOS say.
func newPlayer(name string) audio.Player {
	if name == "" {
		return audio.Nop{}
	}
	return audio.Chain{
		audio.Command{Name: name, RateFlag: "-s", BaseRate: 160, Voice: "zh"},
		audio.Command{Name: "say", RateFlag: "-r", BaseRate: 180, Voice: "Tingting"},
	}
}
