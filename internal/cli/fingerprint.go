package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/goliatone/go-graph-datasource/cache"
	"github.com/goliatone/go-graph-datasource/query"
)

var errFileRequired = errors.New("query file is required")

// FingerprintCmd returns the fingerprint command.
func FingerprintCmd() *Command {
	flags := flag.NewFlagSet("fingerprint", flag.ContinueOnError)
	namespace := flags.StringP("namespace", "n", "", "prefix the fingerprint with a cache namespace")

	return &Command{
		Flags: flags,
		Usage: "fingerprint [--namespace NS] <file>",
		Short: "Print the cache key of a query file",
		Long: `Print the cache key of a query file.

The file holds {"query": "...", "bindVars": {...}}. Comments and trailing
commas are allowed.`,
		Exec: func(o *IO, args []string) error {
			return execFingerprint(o, *namespace, args)
		},
	}
}

func execFingerprint(o *IO, namespace string, args []string) error {
	if len(args) == 0 {
		return errFileRequired
	}

	q, err := loadQuery(args[0])
	if err != nil {
		return err
	}

	cfg := cache.Config{Namespace: namespace}
	o.Println(cfg.NewFingerprinter().Fingerprint(q))

	return nil
}

func loadQuery(path string) (query.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return query.Query{}, fmt.Errorf("reading query file: %w", err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return query.Query{}, fmt.Errorf("parsing query file %s: %w", path, err)
	}

	var q query.Query
	if err := json.Unmarshal(standardized, &q); err != nil {
		return query.Query{}, fmt.Errorf("parsing query file %s: %w", path, err)
	}
	if q.IsEmpty() {
		return query.Query{}, fmt.Errorf("query file %s: empty query", path)
	}

	return query.New(q.Text, q.BindVars), nil
}
