package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

type ConsoleConfig struct {
	APIBaseURL string
	Timeout    time.Duration
	UserName   string
	Persona    string
	ChatID     string
}

func main() {
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		Timeout:    30 * time.Second,
		UserName:   getEnv("CONSOLE_USER", "User"),
		Persona:    os.Getenv("CONSOLE_PERSONA"),
		ChatID:     os.Getenv("CHAT_ID"),
	}
	if len(os.Args) > 1 {
		cfg.ChatID = os.Args[1]
	}

	api := NewAPIClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.Timeout})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	if !api.Healthy(ctx) {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	var (
		c   *chatState
		err error
	)
	if cfg.ChatID != "" {
		id, perr := uuid.Parse(cfg.ChatID)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "Invalid chat id %q: %v\n", cfg.ChatID, perr)
			os.Exit(1)
		}
		c, err = loadChat(ctx, api, id)
	} else {
		c, err = newChat(ctx, api, cfg.UserName, cfg.Persona)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open chat: %v\n", err)
		os.Exit(1)
	}

	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	events := make(chan SSEEvent, 16)
	go func() {
		defer close(events)
		_ = api.ListenEvents(streamCtx, c.chat.ID, events)
	}()

	p := tea.NewProgram(NewConsoleUI(cfg, api, c, events),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
