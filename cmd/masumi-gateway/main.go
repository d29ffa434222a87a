// Command masumi-gateway runs the agent hiring gateway: it serves the tool
// API, lists the available tools, or executes a single tool from the shell.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	"github.com/masumi-network/masumi-gateway/api"
	"github.com/masumi-network/masumi-gateway/clients/agentic"
	"github.com/masumi-network/masumi-gateway/clients/payment"
	"github.com/masumi-network/masumi-gateway/clients/registry"
	"github.com/masumi-network/masumi-gateway/engine"
	"github.com/masumi-network/masumi-gateway/gatewayconfig"
	"github.com/masumi-network/masumi-gateway/guard"
	"github.com/masumi-network/masumi-gateway/observe"
	otelsink "github.com/masumi-network/masumi-gateway/observe/otel"
	"github.com/masumi-network/masumi-gateway/observe/redisstream"
	observestore "github.com/masumi-network/masumi-gateway/observe/store"
	observesqlite "github.com/masumi-network/masumi-gateway/observe/store/sqlite"
	"github.com/masumi-network/masumi-gateway/remote"
	"github.com/masumi-network/masumi-gateway/tools"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	ctx := context.Background()
	switch strings.TrimSpace(os.Args[1]) {
	case "serve":
		runServe(ctx, os.Args[2:])
	case "tools":
		listTools(os.Args[2:])
	case "call":
		runCall(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Println(`masumi-gateway - hire and monitor agents on the Masumi network (` + guard.AllowedNetwork + ` only)

Usage:
  masumi-gateway serve [--config=FILE] [--addr=HOST:PORT]
  masumi-gateway tools [--config=FILE]
  masumi-gateway call <tool> ['{"json":"args"}'] [--config=FILE]
  masumi-gateway help

Environment:
  MASUMI_REGISTRY_BASE_URL, MASUMI_REGISTRY_TOKEN
  MASUMI_PAYMENT_BASE_URL, MASUMI_PAYMENT_TOKEN
  MASUMI_GATEWAY_ADDR, MASUMI_GATEWAY_TOKEN
  MASUMI_EVENT_DB_PATH, MASUMI_REDIS_ADDR, MASUMI_TRACING_ENABLED`)
}

type serveOptions struct {
	configPath string
	addr       string
}

func parseServeArgs(args []string) serveOptions {
	var opts serveOptions
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--config="):
			opts.configPath = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "--addr="):
			opts.addr = strings.TrimPrefix(arg, "--addr=")
		}
	}
	return opts
}

type gateway struct {
	registry   *tools.Registry
	eventStore observestore.Store
	cleanup    []func()
}

func (g *gateway) close() {
	for i := len(g.cleanup) - 1; i >= 0; i-- {
		g.cleanup[i]()
	}
}

func buildGateway(cfg gatewayconfig.Config) (*gateway, error) {
	timeout := remote.DefaultTimeout
	if cfg.HTTPTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	registryClient, err := registry.New(cfg.RegistryURL, cfg.RegistryToken, registry.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	paymentClient, err := payment.New(cfg.PaymentURL, cfg.PaymentToken, payment.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	agentClient := agentic.New(agentic.WithHTTPClient(httpClient))

	g := &gateway{}
	var sinks []observe.Sink

	if cfg.EventDBPath != "" {
		eventStore, err := observesqlite.New(cfg.EventDBPath)
		if err != nil {
			log.Printf("event store unavailable: %v", err)
		} else {
			g.eventStore = eventStore
			g.cleanup = append(g.cleanup, func() { _ = eventStore.Close() })
			sinks = append(sinks, eventStore)
		}
	}
	if cfg.RedisAddr != "" {
		streamSink, err := redisstream.New(cfg.RedisAddr,
			redisstream.WithStream(cfg.RedisStream),
			redisstream.WithPassword(cfg.RedisPassword),
			redisstream.WithDB(cfg.RedisDB),
		)
		if err != nil {
			log.Printf("redis event stream unavailable: %v", err)
		} else {
			g.cleanup = append(g.cleanup, func() { _ = streamSink.Close() })
			sinks = append(sinks, streamSink)
		}
	}
	if cfg.TracingEnabled {
		sinks = append(sinks, otelsink.NewSink(otel.GetTracerProvider()))
	}

	var sink observe.Sink = observe.NoopSink{}
	if len(sinks) > 0 {
		async := observe.NewAsyncSink(observe.NewMultiSink(sinks...), 256)
		g.cleanup = append(g.cleanup, async.Close)
		sink = async
	}

	eng, err := engine.New(agentClient, paymentClient,
		engine.WithSink(sink),
		engine.WithPreviewLimit(cfg.PreviewLimit),
	)
	if err != nil {
		g.close()
		return nil, err
	}

	reg, err := tools.NewGatewayRegistry(tools.Gateway{
		Engine:   eng,
		Registry: registryClient,
		Payments: paymentClient,
		Agents:   agentClient,
		Sink:     sink,
	})
	if err != nil {
		g.close()
		return nil, err
	}
	g.registry = reg
	return g, nil
}

func loadConfig(path string, requireTokens bool) (gatewayconfig.Config, error) {
	cfg, err := gatewayconfig.Load(path)
	if err != nil {
		return gatewayconfig.Config{}, err
	}
	if requireTokens {
		if err := cfg.Validate(); err != nil {
			return gatewayconfig.Config{}, err
		}
		return cfg, nil
	}
	// Offline commands still need constructible clients.
	if cfg.RegistryToken == "" {
		cfg.RegistryToken = "unconfigured"
	}
	if cfg.PaymentToken == "" {
		cfg.PaymentToken = "unconfigured"
	}
	return cfg, nil
}

func runServe(ctx context.Context, args []string) {
	opts := parseServeArgs(args)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(opts.configPath, true)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	if opts.addr != "" {
		cfg.APIAddr = opts.addr
	}

	g, err := buildGateway(cfg)
	if err != nil {
		log.Fatalf("gateway setup failed: %v", err)
	}
	defer g.close()

	if cfg.APIToken == "" {
		log.Printf("MASUMI_GATEWAY_TOKEN is not set; the API is open to any caller that can reach %s", cfg.APIAddr)
	}

	server := api.NewServer(api.Config{
		Addr:             cfg.APIAddr,
		Tools:            g.registry,
		EventStore:       g.eventStore,
		APIToken:         cfg.APIToken,
		AllowLocalNoAuth: cfg.AllowLocalNoAuth,
	})
	log.Printf("masumi gateway listening on %s (network %s, %d tools)",
		cfg.APIAddr, guard.AllowedNetwork, len(g.registry.Names()))
	if err := server.ListenAndServe(ctx); err != nil && err != context.Canceled {
		log.Fatalf("server error: %v", err)
	}
}

func listTools(args []string) {
	opts := parseServeArgs(args)
	cfg, err := loadConfig(opts.configPath, false)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	g, err := buildGateway(cfg)
	if err != nil {
		log.Fatalf("gateway setup failed: %v", err)
	}
	defer g.close()

	for _, info := range g.registry.Catalog() {
		fmt.Printf("%-26s %s\n", info.Name, info.Description)
	}
	fmt.Println()
	for _, bundle := range g.registry.BundleCatalog() {
		fmt.Printf("@%-25s %s\n", bundle.Name, strings.Join(bundle.Tools, ", "))
	}
}

func runCall(ctx context.Context, args []string) {
	var positional []string
	var configPath string
	for _, arg := range args {
		if strings.HasPrefix(arg, "--config=") {
			configPath = strings.TrimPrefix(arg, "--config=")
			continue
		}
		positional = append(positional, arg)
	}
	if len(positional) == 0 {
		log.Fatal("usage: masumi-gateway call <tool> ['{\"json\":\"args\"}']")
	}
	toolName := positional[0]
	toolArgs := "{}"
	if len(positional) > 1 {
		toolArgs = positional[1]
	}

	cfg, err := loadConfig(configPath, true)
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	g, err := buildGateway(cfg)
	if err != nil {
		log.Fatalf("gateway setup failed: %v", err)
	}
	defer g.close()

	result, err := g.registry.Execute(ctx, toolName, json.RawMessage(toolArgs))
	if err != nil {
		log.Fatalf("tool %s failed: %v", toolName, err)
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("failed to render result: %v", err)
	}
	fmt.Println(string(out))
}
