package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"threadsim/internal/config"
	"threadsim/internal/domain/models"
	"threadsim/internal/repository/pebbledb"
	"threadsim/internal/service/persona"
	"threadsim/internal/service/thread"
)

func main() {
	// Parse command-line flags
	clearData := flag.Bool("clear-data", false, "Delete all existing personas and threads before seeding")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *clearData {
		log.Fatalf("BLOCKED: cannot run --clear-data in production environment")
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	db, err := pebbledb.Open(cfg.DataDir, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer db.Close()

	personaStore := pebbledb.NewPersonaStore(db)
	threadStore := pebbledb.NewThreadStore(db)

	ctx := context.Background()

	if *clearData {
		log.Println("Clearing existing personas and threads...")
		if err := clearAll(ctx, personaStore, threadStore); err != nil {
			log.Fatalf("Failed to clear data: %v", err)
		}
	}

	// The persona service runs without an LLM registry here: seeding only
	// exercises CRUD, never generation.
	personaService := persona.NewService(personaStore, nil, nil, cfg, logger)
	threadService := thread.NewService(threadStore, logger)

	log.Println("Seeding demo personas...")
	for _, req := range seedPersonas() {
		p, err := personaService.Create(ctx, req)
		if err != nil {
			log.Printf("Skipping persona %q: %v", req.Username, err)
			continue
		}
		log.Printf("Created persona u/%s (ID: %s)", p.Username, p.ID)
	}

	log.Println("Seeding demo thread...")
	t, err := threadService.Create(ctx, &models.CreateThreadRequest{
		Subreddit:   "AskTechnology",
		Title:       "What's a piece of tech you thought was a gimmick but now can't live without?",
		Description: "Mine is noise-cancelling headphones. I mocked a friend for buying them, then borrowed a pair on a flight. Never going back.",
	})
	if err != nil {
		log.Printf("Skipping thread: %v", err)
	} else {
		log.Printf("Created thread r/%s (ID: %s)", t.Subreddit, t.ID)
	}

	log.Println("Seeding complete")
}

func clearAll(ctx context.Context, personas *pebbledb.PersonaStore, threads *pebbledb.ThreadStore) error {
	existing, err := personas.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range existing {
		if _, err := personas.Delete(ctx, p.ID); err != nil {
			return err
		}
	}

	existingThreads, err := threads.List(ctx)
	if err != nil {
		return err
	}
	for _, t := range existingThreads {
		if _, err := threads.Delete(ctx, t.ID); err != nil {
			return err
		}
	}
	return nil
}

func seedPersonas() []*models.CreatePersonaRequest {
	return []*models.CreatePersonaRequest{
		{
			Username:     "CircuitSage42",
			Karma:        152340,
			Personality:  "Patient explainer who loves a good analogy. Gets genuinely excited about elegant engineering and slightly grumpy about marketing hype.",
			Interests:    "electronics, embedded systems, mechanical keyboards, home automation, retro computing",
			WritingStyle: "Long, structured comments with the occasional numbered list. Always ends with a question or an invitation to disagree.",
		},
		{
			Username:     "lowkey_loaf",
			Karma:        8761,
			Personality:  "Self-deprecating lurker who only comments when something hits close to home. Warm, a little anxious, very sincere.",
			Interests:    "baking, indie games, houseplants, budget travel",
			WritingStyle: "Short lowercase sentences, minimal punctuation, lots of 'honestly' and 'ngl'.",
		},
		{
			Username:     "Dr_Paradox",
			Karma:        97412,
			Personality:  "Contrarian with receipts. Enjoys poking holes in popular opinions but concedes gracefully when shown better evidence.",
			Interests:    "physics, statistics, philosophy of science, chess, coffee",
			WritingStyle: "Precise and formal, cites sources, fond of 'to be fair' and 'that said'.",
		},
		{
			Username:     "TrailMixTina",
			Karma:        23115,
			Personality:  "Relentlessly upbeat outdoor enthusiast who relates everything back to a hike she once did. Supportive of newcomers.",
			Interests:    "hiking, trail running, national parks, gear reviews, photography",
			WritingStyle: "Enthusiastic with exclamation points, shares personal anecdotes, uses emoji sparingly.",
		},
	}
}
