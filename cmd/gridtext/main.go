// Package main implements the gridtext command line tool: validate index
// configuration payloads, inspect compiled schemas, dry-run hot-swap
// decisions, and run ad-hoc searches against a scratch index.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gridtext/gridtext/internal/config"
	"github.com/gridtext/gridtext/internal/engine"
	"github.com/gridtext/gridtext/internal/index"
	"github.com/gridtext/gridtext/internal/observability"
	"github.com/gridtext/gridtext/internal/options"
	"github.com/gridtext/gridtext/internal/partition"
	"github.com/gridtext/gridtext/pkg/types"
)

func main() {
	// Local .env overrides are optional.
	_ = godotenv.Load()

	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "validate":
		err = runValidate(args[1:])
	case "schema":
		err = runSchema(args[1:])
	case "diff":
		err = runDiff(args[1:])
	case "search":
		err = runSearch(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("gridtext: %v", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: gridtext <command> [arguments]

Commands:
  validate <payload>            parse an index configuration payload and report it
  schema <payload>              dump the compiled field mappers of a payload's schema
  diff <current> <proposed>     decide whether proposed can hot-swap over current
  search [flags] <expression>   build an index from a payload and run a query

Payload files may be JSON or YAML maps of option keys to values.

Search flags:
  -payload file   index configuration payload (required)
  -config file    runtime configuration file (YAML or JSON)
  -docs file      documents to ingest before searching, a map of key to row
  -index name     index name (default "scratch")
  -limit n        maximum merged hits (default 10)

Runtime configuration resolves defaults first, then the -config file, then
GRIDTEXT_* environment variables.
`)
}

// runValidate parses a payload and prints the resolved option set.
func runValidate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("validate: expected one payload file, found %d argument(s)", len(args))
	}
	opts, err := loadOptions(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("payload %s is valid\n", args[0])
	fmt.Printf("  version:            %d\n", opts.Version)
	fmt.Printf("  keyspace:           %s\n", opts.Schema.Keyspace)
	fmt.Printf("  fields:             %d\n", len(opts.Schema.Fields()))
	fmt.Printf("  partitioner:        %s\n", describePartitioner(opts))
	fmt.Printf("  refresh_seconds:    %v\n", opts.RefreshSeconds)
	fmt.Printf("  ram_buffer_mb:      %v\n", opts.RAMBufferMB)
	fmt.Printf("  max_cached_mb:      %v\n", opts.MaxCachedMB)
	fmt.Printf("  optimizer_enabled:  %v\n", opts.OptimizerEnabled)
	fmt.Printf("  optimizer_schedule: %s\n", opts.OptimizerSchedule)
	if opts.DirectoryPath != "" {
		fmt.Printf("  directory_path:     %s\n", opts.DirectoryPath)
	}
	return nil
}

// runSchema dumps the compiled mapper list of a payload's schema.
func runSchema(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("schema: expected one payload file, found %d argument(s)", len(args))
	}
	opts, err := loadOptions(args[0])
	if err != nil {
		return err
	}

	s := opts.Schema
	fmt.Printf("schema of %s (default analyzer %q):\n", args[0], s.DefaultAnalyzer)
	for _, m := range s.Mappers() {
		line := fmt.Sprintf("  %-30s %-12s columns=%s", m.Name, m.Kind, strings.Join(m.Columns, ","))
		if m.Validated {
			line += " validated"
		}
		if m.Analyzer != "" {
			line += fmt.Sprintf(" analyzer=%s", m.Analyzer)
		}
		fmt.Println(line)
	}
	return nil
}

// runDiff replays the hot-swap decision for a proposed payload against the
// current one.
func runDiff(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("diff: expected current and proposed payload files, found %d argument(s)", len(args))
	}
	current, err := loadOptions(args[0])
	if err != nil {
		return fmt.Errorf("current payload: %w", err)
	}
	proposed, err := loadOptions(args[1])
	if err != nil {
		return fmt.Errorf("proposed payload: %w", err)
	}

	switch {
	case current.SchemaJSON != proposed.SchemaJSON:
		fmt.Println("REBUILD: schema changed")
	case !current.Partitioner.Equal(proposed.Partitioner):
		fmt.Println("REBUILD: partitioner changed")
	case current.DirectoryPath != proposed.DirectoryPath:
		fmt.Println("REBUILD: directory path changed")
	case proposed.Version < current.Version:
		fmt.Printf("REJECT: proposed version %d is older than current version %d\n",
			proposed.Version, current.Version)
	case options.AllowedUpdate(current, proposed):
		fmt.Println("HOT-SWAP: proposed configuration can be applied in place")
	default:
		fmt.Println("NO-OP: no operational change")
	}
	return nil
}

// runSearch builds a scratch index under the configured data directory from a
// configuration payload, optionally ingests documents, and runs one query
// through the full fan-out path.
func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	payloadPath := fs.String("payload", "", "index configuration payload")
	configPath := fs.String("config", "", "runtime configuration file")
	docsPath := fs.String("docs", "", "documents to ingest before searching")
	name := fs.String("index", "scratch", "index name")
	limit := fs.Int("limit", 10, "maximum merged hits")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *payloadPath == "" {
		return fmt.Errorf("search: -payload is required")
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("search: expected one query expression, found %d argument(s)", fs.NArg())
	}

	cfg, err := loadRuntimeConfig(*configPath)
	if err != nil {
		return err
	}
	payload, err := loadPayload(*payloadPath)
	if err != nil {
		return err
	}

	factory := engine.NewSQLiteFactory(engine.NewConnectionPool(engine.PoolConfig{
		MaxTotalConnections: cfg.Pool.MaxConnections,
		IdleTimeout:         cfg.Pool.IdleTimeout,
	}))
	defer factory.Close()

	idx, err := index.New(index.Config{
		Name:        *name,
		Directory:   cfg.DataDir,
		Opener:      factory.Opener(),
		Affinity:    partition.NewTokenRouter(),
		Concurrency: cfg.Search.Concurrency,
		Stats:       observability.NewSearchStats(cfg.Stats.Window),
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	if cfg.Search.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Search.Timeout)
		defer cancel()
	}

	if err := idx.CreateOrUpdate(ctx, payload, false); err != nil {
		return err
	}
	defer idx.Drop(context.Background())

	if *docsPath != "" {
		docs, err := loadDocuments(*docsPath)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(docs))
		for key := range docs {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if err := idx.Upsert(ctx, key, docs[key]); err != nil {
				return err
			}
		}
		if err := idx.Commit(ctx); err != nil {
			return err
		}
	}

	res, err := idx.Search(ctx, index.Query{Expression: fs.Arg(0), Limit: *limit})
	if err != nil {
		return err
	}
	fmt.Printf("%d hit(s), %d partition(s) scanned, %d pruned\n", len(res.Hits), res.Scanned, res.Pruned)
	for _, h := range res.Hits {
		fmt.Printf("  %-24s score=%.4f partition=%d\n", h.DocID, h.Score, h.Partition)
	}
	return nil
}

// loadRuntimeConfig resolves the runtime configuration: defaults, then the
// optional file, then environment overrides.
func loadRuntimeConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDocuments reads a JSON or YAML file mapping document keys to rows.
func loadDocuments(path string) (map[string]types.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raw map[string]map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON %s: %w", path, err)
		}
	}

	docs := make(map[string]types.Row, len(raw))
	for key, row := range raw {
		docs[key] = types.Row(row)
	}
	return docs, nil
}

// loadOptions reads a payload file (JSON or YAML option map) and parses it.
func loadOptions(path string) (*options.IndexOptions, error) {
	payload, err := loadPayload(path)
	if err != nil {
		return nil, err
	}
	opts, err := options.Parse(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// loadPayload normalizes a JSON or YAML option map into the flat JSON string
// map the options parser accepts. Nested values (schema, partitioner) are
// re-serialized as JSON strings.
func loadPayload(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return "", fmt.Errorf("failed to parse YAML %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return "", fmt.Errorf("failed to parse JSON %s: %w", path, err)
		}
	}

	flat := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			flat[key] = v
		case map[string]any, []any:
			encoded, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("failed to encode option %q of %s: %w", key, path, err)
			}
			flat[key] = string(encoded)
		default:
			flat[key] = fmt.Sprintf("%v", v)
		}
	}

	encoded, err := json.Marshal(flat)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload %s: %w", path, err)
	}
	return string(encoded), nil
}

func describePartitioner(opts *options.IndexOptions) string {
	if opts.Partitioner.Partitions > 1 || opts.Partitioner.Type == "token" {
		return fmt.Sprintf("%s (%d partitions)", opts.Partitioner.Type, opts.Partitioner.Partitions)
	}
	return opts.Partitioner.Type
}
