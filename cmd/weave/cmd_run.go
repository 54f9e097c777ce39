package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/weavegraph/weave/graph"
	"github.com/weavegraph/weave/graph/model"
	"github.com/weavegraph/weave/graph/model/anthropic"
	"github.com/weavegraph/weave/graph/model/google"
	"github.com/weavegraph/weave/graph/model/openai"
	"github.com/weavegraph/weave/graph/pipeline"
	"github.com/weavegraph/weave/graph/remote"
	"github.com/weavegraph/weave/graph/store"
	"github.com/weavegraph/weave/graph/tool"
)

var (
	runConfig string
	runInput  string
	runJSON   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the demo assistant workflow",
	Long: `Executes a small assistant graph (start -> respond -> finish) with the
given input, logging every lifecycle event. With remote streaming enabled in
the config, events are also pushed to connected listeners (see "weave listen").`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runConfig, "config", "c", "", "path to YAML config")
	runCmd.Flags().StringVarP(&runInput, "input", "i", "Hello!", "workflow input")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "log events as JSONL instead of text")
}

func runRun(cmd *cobra.Command, _ []string) error {
	// A missing .env is fine; environment variables win either way.
	_ = godotenv.Load()

	cfg, err := loadConfig(runConfig)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	pipe := pipeline.New()
	pipeline.NewLogHandler(os.Stderr, runJSON).Attach(pipe)

	if cfg.Remote.Enabled {
		srv := remote.NewServer(remote.ServerConfig{
			Host:                          cfg.Remote.Host,
			Port:                          cfg.Remote.Port,
			AwaitInitialConnection:        cfg.Remote.AwaitInitialConnection,
			AwaitInitialConnectionTimeout: cfg.Remote.AwaitTimeout,
		})
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()
		srv.Attach(pipe)
		if err := srv.AwaitInitialConnection(ctx); err != nil {
			return err
		}
	}

	chat, closeModel, err := buildModel(ctx, cfg.Agent.Model)
	if err != nil {
		return err
	}
	defer closeModel()

	registry := tool.NewRegistry()
	registry.MustRegister(tool.Func(tool.Descriptor{
		Name:        "current_time",
		Description: "Returns the current time in RFC 3339 form.",
	}, func(context.Context, map[string]any) (map[string]any, error) {
		return map[string]any{"time": time.Now().Format(time.RFC3339)}, nil
	}))

	strategy, err := buildStrategy()
	if err != nil {
		return err
	}

	opts := []graph.AgentOption{
		graph.WithChatModel(chat),
		graph.WithToolRegistry(registry),
	}
	if cfg.Agent.StepLimit > 0 {
		opts = append(opts, graph.WithStepLimit(cfg.Agent.StepLimit))
	}
	if backend, err := buildStore(cfg.Store); err != nil {
		return err
	} else if backend != nil {
		defer func() { _ = backend.Close() }()
		opts = append(opts, graph.WithCheckpointBackend(backend))
	}

	agent := graph.NewAgent(cfg.Agent.ID, strategy, pipe, opts...)
	defer func() { _ = agent.Close(context.Background()) }()

	output, err := agent.Run(ctx, runInput)
	if err != nil {
		return err
	}
	fmt.Println(output)
	return nil
}

// buildStrategy wires the demo graph: the single respond node sends the
// input as a prompt through the run's LLM executor.
func buildStrategy() (*graph.Subgraph, error) {
	b := graph.NewBuilder("assistant")
	respond := b.AddNode("respond", "string", "string",
		func(ctx context.Context, rc *graph.RunContext, input any) (any, error) {
			prompt, _ := input.(string)
			out, err := rc.LLM().Execute(ctx, rc, nil, prompt, rc.Tools().Specs())
			if err != nil {
				return nil, err
			}
			return out.Text, nil
		})
	b.AddEdge(b.Start(), respond, nil)
	b.AddEdge(respond, b.Finish(), nil)
	return b.Build()
}

func buildModel(ctx context.Context, name string) (model.ChatModel, func(), error) {
	noop := func() {}
	provider, modelName, _ := strings.Cut(name, "/")
	switch provider {
	case "", "mock":
		return &model.MockChatModel{
			Responses: []model.ChatOut{{Text: "Hello from the mock model."}},
		}, noop, nil
	case "openai":
		return openai.NewChatModel(os.Getenv("OPENAI_API_KEY"), modelName), noop, nil
	case "anthropic":
		return anthropic.NewChatModel(os.Getenv("ANTHROPIC_API_KEY"), modelName), noop, nil
	case "google":
		m, err := google.NewChatModel(ctx, os.Getenv("GEMINI_API_KEY"), modelName)
		if err != nil {
			return nil, noop, err
		}
		return m, func() { _ = m.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown model provider %q", provider)
	}
}

func buildStore(cfg StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.NewSQLiteStore(cfg.DSN)
	case "mysql":
		return store.NewMySQLStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
