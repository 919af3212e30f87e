package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	config "taskpilot/app/configs"
	"taskpilot/app/core/interaction/cli"
	"taskpilot/app/core/interaction/gateway"
	"taskpilot/app/core/interaction/http"
	"taskpilot/app/core/orchestrator/agent"
	"taskpilot/app/core/orchestrator/backend"
	"taskpilot/app/core/orchestrator/db"
	"taskpilot/app/core/orchestrator/session"
	"taskpilot/app/pkg/logger"
)

func main() {
	if err := logger.Init("output/logs"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Info("TaskPilot Starting...")

	cfgManager, err := config.NewManager(config.DefaultPath())
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	database, err := db.NewSQLiteDB("output/db")
	if err != nil {
		logger.Error("Failed to initialize DB: %v", err)
		os.Exit(1)
	}
	defer database.Close()
	logger.Info("Database initialized successfully")

	sessions, err := session.NewManager(context.Background(), database, cfg.Chat.TitleMaxRunes)
	if err != nil {
		logger.Error("Failed to load conversations: %v", err)
		os.Exit(1)
	}

	generator := backend.NewOpenAIClient(cfg.Backend)
	brain := agent.NewAgent(cfg.Agent.Name, sessions, generator, cfg.Chat)

	gw := gateway.NewGateway(brain)

	cliChannel := cli.NewCLIChannel(cfg.Chat.CLIUserID)
	gw.RegisterChannel(cliChannel)

	httpChannel := http.NewHTTPChannel(cfg.HTTP.Port)
	httpChannel.SetStatusProvider(func(ctx context.Context) map[string]interface{} {
		status := gw.HealthStatus()
		return map[string]interface{}{
			"agent":              brain.Name(),
			"channels":           status.RegisteredChannels,
			"processed_messages": status.ProcessedMessages,
		}
	})
	gw.RegisterChannel(httpChannel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := gw.Start(ctx); err != nil {
			logger.Error("Gateway crashed: %v", err)
			os.Exit(1)
		}
	}()

	logger.Info("TaskPilot is ready to serve.")
	fmt.Println("- CLI Interface: Interactive")
	fmt.Printf("- HTTP Interface: http://localhost:%d/api/message (POST)\n", cfg.HTTP.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal: %v. TaskPilot Shutting Down...", sig)
	cancel()
}
