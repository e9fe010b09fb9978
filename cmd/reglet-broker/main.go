// reglet-broker negotiates capability requests on a terminal.
//
// Usage:
//
//	reglet-broker [flags] request <file.jsonc>   run one negotiation, print the outcome
//	reglet-broker [flags] schema [type]          print wire JSON Schemas
//	reglet-broker keygen                         print a fresh signing key and its DID
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/reglet-dev/reglet-broker"
	"github.com/reglet-dev/reglet-broker/application/config"
	"github.com/reglet-dev/reglet-broker/application/schema"
	"github.com/reglet-dev/reglet-broker/infrastructure/prompter"
	"github.com/reglet-dev/reglet-broker/provider"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	logLevel    string
	store       string
	statePath   string
	origin      string
	seedDir     string
	seedPattern string
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var opts options
	flagSet := pflag.NewFlagSet("reglet-broker", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML configuration file")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flagSet.StringVar(&opts.store, "store", "", "state store driver: memory, file or sqlite")
	flagSet.StringVar(&opts.statePath, "state-path", "", "directory or database file for the state store")
	flagSet.StringVar(&opts.origin, "origin", "https://localhost", "origin reported for the requesting site")
	flagSet.StringVar(&opts.seedDir, "seed-dir", "", "directory of seed permission files")
	flagSet.StringVar(&opts.seedPattern, "seed-pattern", "", "glob selecting seed files under --seed-dir")
	flagSet.Usage = func() {
		fmt.Fprintf(stderr, "Usage: reglet-broker [flags] <request FILE | schema [TYPE] | keygen>\n\nFlags:\n")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		flagSet.Usage()
		return fmt.Errorf("missing command")
	}
	switch rest[0] {
	case "request":
		if len(rest) != 2 {
			return fmt.Errorf("request takes exactly one file")
		}
		cfg, err := loadConfig(opts)
		if err != nil {
			return err
		}
		return runRequest(cfg, opts.origin, rest[1], stdin, stdout, stderr)
	case "schema":
		return runSchema(rest[1:], stdout)
	case "keygen":
		return runKeygen(stdout)
	default:
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func loadConfig(opts options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.store != "" {
		cfg.Store.Driver = opts.store
	}
	if opts.statePath != "" {
		cfg.Store.Path = opts.statePath
	}
	if opts.seedDir != "" {
		cfg.Provider.SeedDir = opts.seedDir
	}
	if opts.seedPattern != "" {
		cfg.Provider.SeedPattern = opts.seedPattern
	}
	return cfg, cfg.Validate()
}

func runRequest(cfg config.Config, origin, path string, stdin io.Reader, stdout, stderr io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := broker.New(cfg, broker.WithRenderer(prompter.NewCliPrompter(stdin, stderr)))
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("failed to start provider: %w", err)
	}
	outcome, err := b.Request(ctx, origin, jsonc.ToJSON(data))
	if err != nil {
		return err
	}
	out, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(out))
	return err
}

func runSchema(args []string, stdout io.Writer) error {
	names := args
	if len(names) == 0 {
		names = schema.WireTypeNames()
	}
	if len(names) == 1 && names[0] == "list" {
		_, err := fmt.Fprintln(stdout, strings.Join(schema.WireTypeNames(), "\n"))
		return err
	}
	for _, name := range names {
		raw, err := schema.GenerateWireSchema(name)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(stdout, "%s\n", raw); err != nil {
			return err
		}
	}
	return nil
}

func runKeygen(stdout io.Writer) error {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	key := base64.StdEncoding.EncodeToString(priv)
	iss, err := provider.NewIssuer(provider.WithSigningKey(key))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "signing_key: %s\n# did: %s\n", key, iss.DID())
	return err
}
