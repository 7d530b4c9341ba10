package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gfhssssrdg-sys/ai-note-system/internal/config"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/embedding"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/extract"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/llm"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/notes"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/pipeline"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/query"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/system"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/vectorstore"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	ingest := flag.String("ingest", "", "Source to ingest (URL or file path)")
	ask := flag.String("ask", "", "Question to answer from the knowledge base")
	deleteID := flag.String("delete", "", "Note ID to delete")
	list := flag.Bool("list", false, "List all notes")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Optional; API keys usually arrive through the environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	sys, cleanup := buildSystem(cfg)
	defer cleanup()

	ctx := context.Background()
	switch {
	case *ingest != "":
		runIngest(ctx, sys, *ingest)
	case *ask != "":
		runAsk(ctx, sys, *ask)
	case *deleteID != "":
		if err := sys.Delete(ctx, *deleteID); err != nil {
			log.Fatal().Err(err).Str("note_id", *deleteID).Msg("Error deleting note")
		}
		log.Info().Str("note_id", *deleteID).Msg("Deleted note")
	case *list:
		runList(ctx, sys)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func buildSystem(cfg *config.Config) (*system.NoteSystem, func()) {
	embClient, err := embedding.NewClient(&cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	embGateway := embedding.NewServiceGateway(embClient, &cfg.Embedding)

	model, err := llm.NewModel(&cfg.LLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM")
	}
	llmGateway := llm.NewServiceGateway(model, &cfg.LLM)

	var store vectorstore.Store
	switch cfg.Store.Type {
	case "memory":
		store = vectorstore.NewMemory()
	default:
		store, err = vectorstore.NewChromem(cfg.Store.Path, cfg.Store.Collection)
		if err != nil {
			log.Fatal().Err(err).Msg("Error opening vector store")
		}
	}

	var repo notes.Repository
	cleanup := func() {}
	if cfg.Database.DSN != "" {
		bunRepo := notes.NewBunRepository(notes.ConnectDB(cfg.Database.DSN, cfg.Database.Password), cfg.Database.Debug)
		if err := bunRepo.Init(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Error initializing database")
		}
		repo = bunRepo
		cleanup = func() { bunRepo.Close() }
	} else {
		repo = notes.NewMemoryRepository()
	}

	registry := extract.NewRegistry(
		extract.NewWeb(),
		extract.NewMarkdown(),
		extract.NewPDF(),
		extract.NewText(),
		extract.NewDocx(),
		extract.NewXLSX(),
		extract.NewODS(),
	)

	p := pipeline.New(embGateway, store, repo, cfg)
	engine := query.NewEngine(embGateway, store, repo, llmGateway, cfg)
	return system.New(registry, p, engine, repo), cleanup
}

func runIngest(ctx context.Context, sys *system.NoteSystem, source string) {
	note, err := sys.Ingest(ctx, source)
	if err != nil {
		log.Fatal().Err(err).Str("source", source).Msg("Error ingesting source")
	}
	log.Info().Str("note_id", note.ID).Int("chunks", len(note.ChunkIDs)).Msg("Ingested")
	fmt.Printf("%s  %s (%d chunks)\n", note.ID, note.Title, len(note.ChunkIDs))
}

func runAsk(ctx context.Context, sys *system.NoteSystem, question string) {
	result, err := sys.Ask(ctx, question)
	if err != nil {
		log.Fatal().Err(err).Msg("Error answering question")
	}

	fmt.Printf("Q: %s\n\n%s\n", question, result.Answer)
	if !result.Grounded {
		return
	}
	fmt.Printf("\nConfidence: %.2f\nSources:\n", result.Confidence)
	for i, ev := range result.Cited {
		fmt.Printf("  [%d] %s (%s)\n", i+1, ev.NoteTitle, ev.NoteSource)
	}
}

func runList(ctx context.Context, sys *system.NoteSystem) {
	list, err := sys.List(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error listing notes")
	}
	for _, n := range list {
		summary := struct {
			ID      string    `json:"id"`
			Title   string    `json:"title"`
			Source  string    `json:"source"`
			Chunks  int       `json:"chunks"`
			Created time.Time `json:"created"`
		}{n.ID, n.Title, n.Source, len(n.ChunkIDs), n.CreatedAt}
		b, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			log.Warn().Err(err).Msg("Error printing note")
			continue
		}
		fmt.Println(string(b))
	}
}
