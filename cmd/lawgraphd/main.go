// lawgraphd is the one-shot CLI entry point for the retrieval engine.
//
// Usage:
//
//	lawgraphd search "36조의 내용은?"       # run one query
//	lawgraphd search --synthesize "..."     # query plus a synthesized answer
//	lawgraphd partition --clusters 8        # re-cluster the corpus into domains
//	lawgraphd rebalance                     # fix domain size-bound violations
//	lawgraphd version
//
// All commands accept --config pointing at a YAML file; LAWGRAPH_-prefixed
// environment variables override it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lawgraph/lawgraph/aggregate"
	"github.com/lawgraph/lawgraph/config"
	"github.com/lawgraph/lawgraph/embedding"
	"github.com/lawgraph/lawgraph/expansion"
	"github.com/lawgraph/lawgraph/graph"
	"github.com/lawgraph/lawgraph/llm"
	"github.com/lawgraph/lawgraph/partition"
	"github.com/lawgraph/lawgraph/routing"
	"github.com/lawgraph/lawgraph/service"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "search":
		runSearch(os.Args[2:])
	case "partition":
		runPartition(os.Args[2:])
	case "rebalance":
		runRebalance(os.Args[2:])
	case "version":
		fmt.Printf("lawgraphd %s (%s)\n", Version, GitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `lawgraphd — statutory retrieval engine

Commands:
  search [--config path] [--limit n] [--synthesize] [--collaborate] <query>
  partition [--config path] [--clusters n]
  rebalance [--config path]
  version`)
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	limit := fs.Int("limit", 0, "result limit (0 = config default)")
	synthesize := fs.Bool("synthesize", false, "produce a synthesized answer")
	collaborate := fs.Bool("collaborate", false, "consult multiple domains")
	fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "search requires a query argument")
		os.Exit(1)
	}

	engine, logger := bootstrap(*configPath)
	defer logger.Sync()

	resp, err := engine.Search(context.Background(), service.SearchRequest{
		Query:       fs.Arg(0),
		Limit:       *limit,
		Synthesize:  *synthesize,
		Collaborate: *collaborate,
	})
	if err != nil {
		logger.Fatal("search failed", zap.Error(err))
	}
	printJSON(resp)
}

func runPartition(args []string) {
	fs := flag.NewFlagSet("partition", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	clusters := fs.Int("clusters", 0, "target cluster count (0 = config default)")
	fs.Parse(args)

	engine, logger := bootstrap(*configPath)
	defer logger.Sync()

	report, err := engine.Partition(context.Background(), *clusters)
	if err != nil {
		logger.Fatal("partition failed", zap.Error(err))
	}
	printJSON(report)
}

func runRebalance(args []string) {
	fs := flag.NewFlagSet("rebalance", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	engine, logger := bootstrap(*configPath)
	defer logger.Sync()

	report, err := engine.Rebalance(context.Background())
	if err != nil {
		logger.Fatal("rebalance failed", zap.Error(err))
	}
	printJSON(report)
}

// bootstrap loads config, builds the logger and wires the full engine.
// Failures here are fatal: an engine with a mismatched index or unreachable
// store must refuse to serve rather than return wrong rankings.
func bootstrap(configPath string) (*service.Engine, *zap.Logger) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := cfg.BuildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("starting lawgraphd",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit))

	ctx := context.Background()
	store := graph.NewMemoryStore(cfg.Graph.Dimensions, logger)
	if err := store.Connect(ctx); err != nil {
		logger.Fatal("graph store unavailable", zap.Error(err))
	}
	client := graph.NewClient(store, logger)

	embedder := embedding.NewOpenAIProvider(cfg.Embedding, logger)
	if err := client.CheckDimensions(ctx, embedder.Dimensions()); err != nil {
		logger.Fatal("vector index dimensionality mismatch", zap.Error(err))
	}

	if cfg.Graph.CorpusPath != "" {
		if err := graph.Ingest(ctx, client, cfg.Graph.CorpusPath, logger); err != nil {
			logger.Fatal("corpus ingest failed",
				zap.String("path", cfg.Graph.CorpusPath), zap.Error(err))
		}
	}

	chat := llm.NewOpenAIProvider(cfg.LLM, logger)
	router := routing.NewRouter(llm.NewAssessor(chat, logger), cfg.Routing, logger)
	expander := expansion.NewEngine(client, cfg.Expansion, logger)
	aggregator := aggregate.NewAggregator(cfg.Aggregate, logger)
	synthesizer := llm.NewSynthesizer(chat, cfg.Synthesis, logger)
	partitioner := partition.NewPartitioner(client, llm.NewNamer(chat, logger), cfg.Partition, logger)

	var rdb redis.UniversalClient
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	snapshots := service.NewSnapshotSource(client, rdb, cfg.Redis.TTL, logger)

	engine := service.NewEngine(embedder, router, expander, aggregator,
		synthesizer, partitioner, snapshots, cfg.Service, logger)
	return engine, logger
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode output: %v\n", err)
		os.Exit(1)
	}
}
