package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kokoro-ai/kokoro/internal/character"
	"github.com/kokoro-ai/kokoro/internal/config"
	"github.com/kokoro-ai/kokoro/internal/conversation"
	"github.com/kokoro-ai/kokoro/internal/llm"
	"github.com/kokoro-ai/kokoro/internal/memory"
	"github.com/kokoro-ai/kokoro/internal/prompt"
	"github.com/kokoro-ai/kokoro/internal/repository"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down...")
		cancel()
	}()

	characters, err := character.NewFileRepo(cfg.CharactersDir)
	if err != nil {
		log.Fatalf("failed to load characters: %v", err)
	}

	embedder, err := memory.NewGenAIEmbedder(ctx, cfg.GoogleAPIKey, cfg.EmbeddingModel)
	if err != nil {
		log.Fatalf("failed to create embedder: %v", err)
	}

	generator, err := llm.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.OpenAIBaseURL)
	if err != nil {
		log.Fatalf("failed to create generator: %v", err)
	}

	var (
		vectorStore  memory.VectorStore
		historyStore conversation.HistoryStore
	)
	if cfg.DatabaseURL != "" {
		store, err := repository.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		for _, ch := range characters.List() {
			if err := store.Characters.Upsert(ctx, ch); err != nil {
				log.Fatalf("failed to sync character %s: %v", ch.ID, err)
			}
		}
		vectorStore = store.Memories
		historyStore = store.Conversations
	} else {
		vectorStore = memory.NewChromemStore()
		historyStore = conversation.NewMemoryHistoryStore()
	}

	manager := memory.NewManager(embedder, vectorStore, cfg.TopK, cfg.SimilarityThreshold)
	assembler := prompt.NewAssembler(prompt.SimpleTokenEstimator{})
	orchestrator := conversation.New(characters, manager, assembler, generator, historyStore, conversation.Options{
		HistoryLimit: cfg.HistoryLimit,
		TokenBudget:  cfg.TokenBudget,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	}).WithSummarizer(memory.NewSummarizer(generator))

	characterID := cfg.DefaultCharacter
	if characterID == "" {
		list := characters.List()
		if len(list) == 0 {
			log.Fatal("no characters found; set CHARACTERS_DIR to a directory of character cards")
		}
		characterID = list[0].ID
	}

	ch, err := characters.GetByID(ctx, characterID)
	if err != nil {
		log.Fatalf("failed to load character %s: %v", characterID, err)
	}
	fmt.Printf("chatting with %s (ctrl-d to quit)\n", ch.Name)
	if ch.FirstMessage != "" {
		fmt.Printf("%s: %s\n", ch.Name, ch.FirstMessage)
	}

	runREPL(ctx, orchestrator, ch.Name, characterID)
}

// runREPL reads user lines from stdin and streams replies to stdout.
func runREPL(ctx context.Context, orchestrator *conversation.Orchestrator, characterName, characterID string) {
	scanner := bufio.NewScanner(os.Stdin)
	conversationID := ""

	for {
		fmt.Print("you: ")
		if !scanner.Scan() {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		fmt.Printf("%s: ", characterName)
		for event, err := range orchestrator.ProcessStream(ctx, conversation.Request{
			CharacterID:    characterID,
			ConversationID: conversationID,
			UserText:       text,
		}) {
			if err != nil {
				fmt.Printf("\n[error] %v\n", err)
				break
			}
			if event.Fragment != "" {
				fmt.Print(event.Fragment)
			}
			if event.Reply != nil {
				conversationID = event.Reply.ConversationID
				fmt.Println()
				if !event.Reply.MemoryPersisted {
					fmt.Println("[warn] this exchange was not saved to long-term memory")
				}
			}
		}
	}
}
