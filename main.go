package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"auto_release_notes/client"
	"auto_release_notes/generator"
	"auto_release_notes/listing"
	"auto_release_notes/server"
	"auto_release_notes/store"
)

var verbose bool

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	configPath := flag.String("config", "config/config.json", "path to config.json")
	serve := flag.Bool("serve", false, "start web server")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	generateAll := flag.Bool("generate-all", false, "generate notes for listed pull requests, one at a time")
	target := flag.String("target", "http://localhost:8080", "server base URL for --generate-all")
	pages := flag.Int("pages", 1, "listing pages to process with --generate-all")
	delay := flag.Duration("delay", 0, "delay between items with --generate-all (overrides config)")
	flag.BoolVar(&verbose, "v", false, "enable info logs")
	flag.Parse()

	cfg, err := listing.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch {
	case *serve:
		if err := runServe(cfg, *addr); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case *generateAll:
		if err := runGenerateAll(cfg, *target, *pages, *delay); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "nothing to do: pass --serve or --generate-all")
		os.Exit(1)
	}
}

func runServe(cfg listing.Config, addrOverride string) error {
	llm, err := buildLLM(cfg)
	if err != nil {
		return err
	}
	agent, err := generator.NewAgent(llm)
	if err != nil {
		return err
	}
	pulls, err := listing.New(cfg.Repo, nil, verbose, log.Default())
	if err != nil {
		return err
	}
	records, err := store.Open(storePath(cfg))
	if err != nil {
		return err
	}
	srv, err := server.New(agent, pulls, records, verbose)
	if err != nil {
		return err
	}

	listen := cfg.ServerAddr
	if addrOverride != "" {
		listen = addrOverride
	}
	if listen == "" {
		listen = ":8080"
	}
	log.Printf("Starting web server on %s", listen)
	return http.ListenAndServe(listen, srv.Routes())
}

func runGenerateAll(cfg listing.Config, target string, pages int, delay time.Duration) error {
	pulls, err := listing.New(cfg.Repo, nil, verbose, log.Default())
	if err != nil {
		return err
	}
	records, err := store.Open(storePath(cfg))
	if err != nil {
		return err
	}

	ctx := context.Background()
	var items []store.Item
	page := 1
	for i := 0; i < pages && page > 0; i++ {
		res, err := pulls.MergedPulls(ctx, page)
		if err != nil {
			return err
		}
		for _, it := range res.Items {
			item := store.Item{
				ID:          it.ID,
				Description: it.Description,
				Link:        it.Link,
				Diff:        it.Diff,
			}
			// Skip regeneration when notes are already cached.
			if prev, ok, err := records.Get(it.ID); err == nil && ok {
				item.Developer = prev.Developer
				item.Marketing = prev.Marketing
			}
			items = append(items, item)
		}
		page = res.NextPage
	}
	log.Printf("[cli] generating notes for %d items via %s", len(items), target)

	if delay <= 0 {
		delay = 2 * time.Second
		if cfg.GenerateDelayMS > 0 {
			delay = time.Duration(cfg.GenerateDelayMS) * time.Millisecond
		}
	}
	return client.GenerateAll(ctx, target, nil, records, items, delay, log.Default())
}

func storePath(cfg listing.Config) string {
	if cfg.StorePath != "" {
		return cfg.StorePath
	}
	return "data/records.json"
}

func buildLLM(cfg listing.Config) (generator.LLMClient, error) {
	if cfg.LLM == nil || cfg.LLM.Provider == "" {
		return nil, fmt.Errorf("llm config missing; please set llm.provider/model/api_key in config")
	}
	switch cfg.LLM.Provider {
	case "openai":
		return generator.NewOpenAILLMFromConfig(&generator.LLMSettings{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
		})
	case "deepseek":
		// DeepSeek exposes an OpenAI-compatible endpoint; base_url is required.
		if cfg.LLM.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(&generator.LLMSettings{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
		})
	case "mock":
		return generator.MockLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}
