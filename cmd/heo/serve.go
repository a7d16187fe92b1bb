package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rahul/heo/internal/agent"
	"github.com/rahul/heo/internal/gateway"
	"github.com/rahul/heo/internal/keys"
	"github.com/rahul/heo/internal/observability"
	"github.com/rahul/heo/internal/tools"
	"github.com/rahul/heo/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfgPath := fs.String("config", "config.json", "config file (.json or .yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	live := observability.IsTerminal()
	if live {
		observability.PrintBanner()
		observability.InitializeTerminal()
		defer observability.CleanupTerminal()
	}

	// Route all log output through the terminal mutex so it never
	// interrupts the live status line.
	log.SetOutput(observability.NewTermWriter())

	cfg := config.LoadConfig(*cfgPath)

	kp, created, err := keys.LoadOrCreate(cfg.App.KeypairPath)
	if err != nil {
		return err
	}
	if created {
		log.Printf("Generated new service keypair at %s", cfg.App.KeypairPath)
	}
	log.Printf("Service address: %s", kp.Address())

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	registry := tools.NewRegistry()
	searchTool, err := tools.NewSearchTool()
	if err != nil {
		log.Printf("Warning: Failed to initialize search tool: %v", err)
	} else {
		registry.Register(searchTool)
	}
	registry.Register(tools.NewScraperTool())
	browserTool := tools.NewBrowserTool()
	defer browserTool.Close()
	registry.Register(browserTool)
	registry.Register(tools.NewScheduleTool(a.ledger, func(name string) bool {
		return a.programs.Get(name) != nil
	}))

	var planner gateway.Planner
	llm, err := newModel(cfg)
	switch {
	case err != nil:
		return err
	case llm == nil:
		log.Println("No enabled provider found in config, /plan is disabled")
	default:
		prompts := agent.NewPromptManager(cfg.App.PromptsDir)
		planner = agent.NewPlanner(llm, registry, prompts, a.programs.Names(), a.logger)
	}

	commands := gateway.NewCommands(a.runtime, a.programs, kp, a.ledger, planner)

	router := gateway.NewRouter()
	if tgCfg, ok := cfg.GetTelegramConfig(); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, commands)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		router.Add(gateway.PrefixTelegram, tg)
	}
	if dcCfg, ok := cfg.GetDiscordConfig(); ok {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, commands)
		if err != nil {
			return fmt.Errorf("discord: %w", err)
		}
		router.Add(gateway.PrefixDiscord, dc)
	}
	if router.Len() == 0 {
		return errors.New("no gateway is enabled (telegram or discord)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second
	scheduler := agent.NewScheduler(a.ledger, a.runtime, kp, router, a.logger, interval)
	go scheduler.Start(ctx)

	if live {
		go every(ctx, time.Second, observability.PrintLiveStatus)
	}
	go every(ctx, 30*time.Second, func() {
		observability.Heartbeat()
		a.logger.LogHeartbeat()
	})

	for _, m := range router.Messengers() {
		go func(m gateway.Messenger) {
			if err := m.Start(); err != nil {
				log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
				stop()
			}
		}(m)
	}

	<-ctx.Done()

	for _, m := range router.Messengers() {
		if err := m.Stop(); err != nil {
			log.Printf("Error stopping gateway: %v", err)
		}
	}

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] HEO SHUT DOWN. GOODBYE.\033[0m")
	return nil
}

// newModel builds the default enabled LLM provider, or nil when none is
// enabled.
func newModel(cfg *config.Config) (llms.Model, error) {
	name, pCfg := cfg.GetDefaultProvider()
	switch name {
	case "":
		return nil, nil
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("provider %s is not supported", name)
	}
}

func every(ctx context.Context, d time.Duration, fn func()) {
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
