package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/driftlabs/helmsman/pkg/agent"
	"github.com/driftlabs/helmsman/pkg/config"
	"github.com/driftlabs/helmsman/pkg/provider"
	"github.com/driftlabs/helmsman/pkg/provider/builtin"
	"github.com/driftlabs/helmsman/pkg/secrets"
	"github.com/driftlabs/helmsman/pkg/telemetry"
)

const version = "0.1.0"

type globalFlags struct {
	ConfigPath string
	AgentFile  string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		fatal(err)
	}
	if global.AgentFile != "" {
		cfg.Agent.File = global.AgentFile
	}
	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	switch args[0] {
	case "run":
		ensureNoArgs(args[1:])
		runLoop(ctx, global, cfg)
	case "action":
		runAction(ctx, global, cfg, args[1:])
	case "providers":
		ensureNoArgs(args[1:])
		runProviders(ctx, global, cfg)
	case "operations":
		runOperations(ctx, global, cfg, args[1:])
	case "configure":
		runConfigure(ctx, global, cfg, args[1:])
	case "help":
		printUsage()
	case "version":
		fmt.Println(version)
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--agent":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --agent")
			}
			flags.AgentFile = args[i+1]
			i++
		case strings.HasPrefix(arg, "--agent="):
			flags.AgentFile = strings.TrimPrefix(arg, "--agent=")
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

// bootstrap opens the secret store, loads the agent definition, and
// registers every provider block. Interactive commands get a prompt hook;
// everything else stays env-driven.
func bootstrap(ctx context.Context, cfg *config.Config, interactive bool, metrics *telemetry.RuntimeMetrics) (*provider.Registry, *config.Definition, func(), error) {
	store, err := secrets.Open(cfg.Secrets.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() { _ = store.Close() }

	env := provider.Env{Secrets: store}
	if interactive {
		reader := bufio.NewReader(os.Stdin)
		env.Prompt = func(label string) (string, error) {
			fmt.Printf("%s: ", label)
			line, err := reader.ReadString('\n')
			if err != nil {
				return "", err
			}
			return strings.TrimSpace(line), nil
		}
	}

	def, err := config.LoadDefinition(cfg.Agent.File)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	registry := provider.NewRegistry(env, provider.WithMetrics(metrics))
	builtin.Register(registry)
	for _, block := range def.Providers {
		registry.Register(ctx, block)
	}
	return registry, def, cleanup, nil
}

func runLoop(ctx context.Context, global globalFlags, cfg *config.Config) {
	shutdown, err := telemetry.InitWithConfig("helmsman", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		fatal(err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	metrics, err := telemetry.NewRuntimeMetrics()
	if err != nil {
		fatal(err)
	}

	registry, def, cleanup, err := bootstrap(ctx, cfg, false, metrics)
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	a, err := agent.New(def, registry, agent.WithMetrics(metrics))
	if err != nil {
		fatal(err)
	}

	// Apply log-level changes from the runtime config file without a restart.
	if global.ConfigPath != "" {
		if watcher, werr := config.NewWatcher(global.ConfigPath); werr == nil {
			watcher.OnChange(func(updated *config.Config) {
				telemetry.SetLogLevel(os.Stderr, updated.Log.Level, updated.Log.Format)
			})
			watcher.Start(ctx)
			defer watcher.Stop()
		}
	}

	if err := a.Run(ctx); err != nil {
		fatal(err)
	}
	fmt.Printf("agent %s stopped: %s\n", def.Name, a.Status())
}

func runAction(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	if len(args) < 2 {
		fatal(fmt.Errorf("usage: helmsman action <provider> <operation> [params...]"))
	}
	registry, _, cleanup, err := bootstrap(ctx, cfg, false, nil)
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	positional := make([]any, 0, len(args)-2)
	for _, raw := range args[2:] {
		positional = append(positional, raw)
	}
	result, err := registry.Dispatch(ctx, args[0], args[1], positional)
	if err != nil {
		fatal(err)
	}
	if global.JSON {
		printJSON(map[string]any{"result": result})
		return
	}
	fmt.Printf("%v\n", result)
}

func runProviders(ctx context.Context, global globalFlags, cfg *config.Config) {
	registry, _, cleanup, err := bootstrap(ctx, cfg, false, nil)
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	type providerStatus struct {
		Name       string `json:"name"`
		LLM        bool   `json:"llm"`
		Configured bool   `json:"configured"`
	}
	statuses := make([]providerStatus, 0, len(registry.Names()))
	for _, name := range registry.Names() {
		p, err := registry.Get(name)
		if err != nil {
			continue
		}
		statuses = append(statuses, providerStatus{
			Name:       name,
			LLM:        p.LLMProvider(),
			Configured: p.IsConfigured(ctx, false),
		})
	}

	if global.JSON {
		printJSON(statuses)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "PROVIDER", "LLM", "CONFIGURED")
	for _, s := range statuses {
		mark := color.RedString("✗")
		if s.Configured {
			mark = color.GreenString("✓")
		}
		llm := "-"
		if s.LLM {
			llm = "yes"
		}
		writeRow(writer, s.Name, llm, mark)
	}
	_ = writer.Flush()
}

func runOperations(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: helmsman operations <provider>"))
	}
	registry, _, cleanup, err := bootstrap(ctx, cfg, false, nil)
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	p, err := registry.Get(args[0])
	if err != nil {
		fatal(err)
	}

	type paramDoc struct {
		Name     string `json:"name"`
		Kind     string `json:"kind"`
		Required bool   `json:"required"`
	}
	type operationDoc struct {
		Name        string     `json:"name"`
		Description string     `json:"description,omitempty"`
		Params      []paramDoc `json:"params,omitempty"`
	}
	docs := make([]operationDoc, 0, len(p.Operations()))
	for _, op := range p.Operations() {
		doc := operationDoc{Name: op.Name, Description: op.Description}
		for _, param := range op.Params {
			doc.Params = append(doc.Params, paramDoc{
				Name:     param.Name,
				Kind:     string(param.Kind),
				Required: param.Required,
			})
		}
		docs = append(docs, doc)
	}

	if global.JSON {
		printJSON(docs)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "OPERATION", "PARAMETERS", "DESCRIPTION")
	for _, doc := range docs {
		params := make([]string, 0, len(doc.Params))
		for _, param := range doc.Params {
			cell := param.Name + ":" + param.Kind
			if param.Required {
				cell += "*"
			}
			params = append(params, cell)
		}
		writeRow(writer, doc.Name, strings.Join(params, " "), doc.Description)
	}
	_ = writer.Flush()
}

func runConfigure(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: helmsman configure <provider>"))
	}
	registry, _, cleanup, err := bootstrap(ctx, cfg, true, nil)
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	name := args[0]
	if registry.Configure(ctx, name) {
		fmt.Printf("%s provider %s configured\n", color.GreenString("✓"), name)
		return
	}
	fmt.Printf("%s provider %s not configured\n", color.RedString("✗"), name)
	os.Exit(1)
}

func printJSON(value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(payload))
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		col = strings.TrimSpace(col)
		if col == "" {
			col = "-"
		}
		cols[i] = strings.Join(strings.Fields(col), " ")
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func printUsage() {
	fmt.Println(`Helmsman: a pluggable autonomous-agent runtime

Usage:
  helmsman [global flags] <command> [args]

Global flags:
  --config <path>   Runtime config file (YAML)
  --agent <path>    Agent definition file (overrides config)
  --json            JSON output

Commands:
  run                                  Run the agent loop until interrupted
  action <provider> <op> [params...]  Perform one operation with positional params
  providers                            List registered providers and status
  operations <provider>                List a provider's operations
  configure <provider>                 Interactively configure credentials
  version`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func ensureNoArgs(args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}
}
