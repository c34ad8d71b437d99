package main

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/refbase-dev/refbase-admin/internal/config"
	"github.com/refbase-dev/refbase-admin/internal/vault"
	"github.com/refbase-dev/refbase-admin/pkg/grid"
	"github.com/refbase-dev/refbase-admin/pkg/schema"
	"github.com/refbase-dev/refbase-admin/pkg/sdk"
)

var (
	flagConfig string
	flagLocale int
)

var rootCmd = &cobra.Command{
	Use:   "refbase",
	Short: "Manage reference data tables",
	Long: `refbase is the admin CLI for the refbase master-data store.

It talks to a running refbase-admind daemon when REFBASE_ADDR is set,
and falls back to an embedded store under the data directory otherwise.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath(), "path to the config file")
	rootCmd.PersistentFlags().IntVar(&flagLocale, "locale", 1, "locale id for display names and edits")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(flagConfig)
}

// openStore resolves the backing store through environment discovery.
func openStore(cfg config.Config) (sdk.MasterStore, error) {
	return sdk.New(cfg.DataDir)
}

func requestContext(cfg config.Config) schema.RequestContext {
	return schema.RequestContext{
		LocaleID:  flagLocale,
		AuthToken: loadToken(cfg),
	}
}

// loadToken returns the session token: the environment wins, then the
// sealed token file written by "refbase login".
func loadToken(cfg config.Config) string {
	if tok := os.Getenv("REFBASE_TOKEN"); tok != "" {
		return tok
	}
	data, err := os.ReadFile(tokenPath(cfg))
	if err != nil {
		return ""
	}
	tok, err := vault.OpenToken(string(data), sealKey())
	if err != nil {
		return ""
	}
	return tok
}

func tokenPath(cfg config.Config) string {
	return cfg.DataDir + "/token"
}

// sealKey derives a machine-local key. This keeps the token out of plain
// text on disk; it is obfuscation, not a secret store.
func sealKey() []byte {
	host, _ := os.Hostname()
	sum := sha256.Sum256([]byte("refbase-seal:" + host))
	return sum[:]
}

// tableDef resolves a catalog table by name.
func tableDef(name string) (schema.TableDef, error) {
	for _, def := range schema.DefaultCatalog() {
		if def.Name == name {
			return def, nil
		}
	}
	return schema.TableDef{}, fmt.Errorf("unknown table %q", name)
}

// newGrid builds a loaded grid for one table. Partial loads degrade rather
// than fail: lookup labels fall back to the placeholder and the warning is
// printed once.
func newGrid(table string, activeOnly bool, pageSize int) (*grid.Grid, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	def, err := tableDef(table)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	g := grid.New(store, requestContext(cfg), grid.Options{
		Table:      def,
		Locales:    cfg.Locales,
		PageSize:   pageSize,
		ActiveOnly: activeOnly,
	})
	if err := g.Load(); err != nil {
		var partial *grid.PartialLoadError
		if errors.As(err, &partial) {
			fmt.Fprintf(os.Stderr, "warning: %v\n", partial)
		} else {
			return nil, err
		}
	}
	return g, nil
}

// parseFieldValue converts a CLI string into the column's canonical type.
func parseFieldValue(col schema.Column, raw string) (any, error) {
	switch col.Kind {
	case schema.KindID:
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: expected a numeric id, got %q", col.Key, raw)
		}
		return id, nil
	case schema.KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: expected true or false, got %q", col.Key, raw)
		}
		return b, nil
	default:
		return raw, nil
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "refbase.yaml"
	}
	return home + "/.refbase/config.yaml"
}
