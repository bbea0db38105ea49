package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/rgsec/threatdeck/internal/brain"
	"github.com/rgsec/threatdeck/internal/brief"
	"github.com/rgsec/threatdeck/internal/config"
	"github.com/rgsec/threatdeck/internal/feeds"
	"github.com/rgsec/threatdeck/internal/ioc"
	"github.com/rgsec/threatdeck/internal/logging"
	"github.com/rgsec/threatdeck/internal/pipeline"
	"github.com/rgsec/threatdeck/internal/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	logging.InitConsole(os.Stderr)

	if len(os.Args) > 1 && os.Args[1] == "extract" {
		if err := runExtract(os.Args[2:]); err != nil {
			logging.Fatal("extract failed", "error", err)
		}
		return
	}

	topK := flag.Int("top", 0, "how many ranked items to brief (default from config)")
	fallbackOnly := flag.Bool("fallback-only", false, "skip the LLM collaborator, use deterministic briefs")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Warn("config load failed, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}
	if *topK > 0 {
		cfg.Brief.TopK = *topK
	}

	telemetry.InitMetrics()

	var provider brain.Provider
	if !*fallbackOnly {
		chain := brain.NewChain(brain.ChainSettings{
			Preferred:  cfg.Brief.Provider,
			Model:      cfg.Brief.Model,
			ClaudeKey:  cfg.Brief.ClaudeKey,
			OpenAIKey:  cfg.Brief.OpenAIKey,
			OllamaHost: cfg.Brief.OllamaHost,
		})
		provider = chain.Available()
	}

	builder := brief.NewBuilder(provider, time.Duration(cfg.Brief.TimeoutMS)*time.Millisecond)
	pipe := pipeline.New(builder, cfg.Brief.TopK)

	ctx := context.Background()
	raws := feeds.Default(cfg).Collect(ctx)
	snap := pipe.Run(ctx, raws)

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		logging.Fatal("snapshot encode failed", "error", err)
	}
	fmt.Println(string(out))
}

// runExtract pulls network indicators out of free text: a file argument or
// stdin. Handy for backfilling iocs from advisories pasted off a terminal.
func runExtract(args []string) error {
	var r io.Reader = os.Stdin
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	text, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(ioc.Extract(string(text)), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
