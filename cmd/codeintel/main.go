// Command codeintel is a thin CLI over the codeintel Engine: it indexes a
// project directory and answers definition, call-graph, and summary-stats
// queries against the resulting in-memory registry.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	codeintel "github.com/CRJFisher/ariadne-sub017"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "codeintel",
	Short:         "Multi-language static code intelligence",
	Long:          "Indexes TypeScript/JavaScript, Python, and Rust source with tree-sitter and answers definition and call-graph queries.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.PersistentFlags().StringSliceVar(&flagExclude, "exclude", nil, "folder names to skip while indexing (repeatable)")
	rootCmd.PersistentFlags().StringSliceVar(&flagLangs, "lang", nil, "restrict indexing to these languages: typescript, javascript, python, rust (repeatable)")
}

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Index a directory and print summary stats",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildAndResolve(args[0])
		if err != nil {
			return err
		}
		defer engine.Close()
		stats, err := engine.Stats()
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a query against a freshly indexed project",
}

func init() {
	queryCmd.AddCommand(queryStatsCmd)
	queryCmd.AddCommand(queryDefinitionCmd)
	queryCmd.AddCommand(queryCallGraphCmd)
	queryCmd.AddCommand(querySourceCmd)
}

var queryStatsCmd = &cobra.Command{
	Use:   "stats <path>",
	Short: "Print index stats for a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildAndResolve(args[0])
		if err != nil {
			return err
		}
		defer engine.Close()
		stats, err := engine.Stats()
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var (
	flagFile string
	flagLine int
	flagCol  int
)

var queryDefinitionCmd = &cobra.Command{
	Use:   "definition <path>",
	Short: "Resolve the reference at --file/--line/--col to its definitions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildAndResolve(args[0])
		if err != nil {
			return err
		}
		defer engine.Close()

		snap, err := engine.Snapshot()
		if err != nil {
			return err
		}
		abs, err := filepath.Abs(flagFile)
		if err != nil {
			return fmt.Errorf("resolving file path: %w", err)
		}
		f, ok := snap.FileByPath[abs]
		if !ok {
			f, ok = snap.FileByPath[flagFile]
		}
		if !ok {
			return fmt.Errorf("file not indexed: %s", flagFile)
		}

		var refID int64
		for _, r := range snap.RefsByFile(f.ID) {
			if r.StartLine == flagLine && r.StartCol == flagCol {
				refID = r.ID
				break
			}
		}
		if refID == 0 {
			return fmt.Errorf("no reference at %s:%d:%d", flagFile, flagLine, flagCol)
		}

		all, err := engine.Store().ResolvedReferencesByRef(refID)
		if err != nil {
			return err
		}
		var targets []string
		for _, rr := range all {
			targets = append(targets, rr.TargetSymbolID)
		}
		return printJSON(targets)
	},
}

var (
	flagSymbol    string
	flagDirection string
	flagDepth     int
)

var queryCallGraphCmd = &cobra.Command{
	Use:   "callgraph <path>",
	Short: "Print the transitive callers or callees of --symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildAndResolve(args[0])
		if err != nil {
			return err
		}
		defer engine.Close()

		g, err := engine.CallGraph()
		if err != nil {
			return err
		}
		if flagSymbol == "" {
			var out []string
			for _, n := range g.EntryPoints() {
				out = append(out, n.Symbol.ID)
			}
			return printJSON(map[string]any{"entry_points": out})
		}

		var nodes []string
		if flagDirection == "callers" {
			ns, _ := g.TransitiveCallers(flagSymbol, flagDepth)
			for _, n := range ns {
				nodes = append(nodes, n.Symbol.ID)
			}
		} else {
			ns, _ := g.TransitiveCallees(flagSymbol, flagDepth)
			for _, n := range ns {
				nodes = append(nodes, n.Symbol.ID)
			}
		}
		return printJSON(map[string]any{
			"symbol":    flagSymbol,
			"tree_size": g.TreeSize(flagSymbol),
			"nodes":     nodes,
		})
	},
}

var flagSymbolID string

var querySourceCmd = &cobra.Command{
	Use:   "source <path>",
	Short: "Print the source text and docstring for --symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := buildAndResolve(args[0])
		if err != nil {
			return err
		}
		defer engine.Close()

		def, err := engine.GetDefinition(flagSymbolID)
		if err != nil {
			return err
		}
		if def == nil {
			return fmt.Errorf("no definition with symbol id %q", flagSymbolID)
		}
		ctx, err := engine.GetSourceWithContext(def, "", 0)
		if err != nil {
			return err
		}
		return printJSON(ctx)
	},
}

func init() {
	querySourceCmd.Flags().StringVar(&flagSymbolID, "symbol", "", "SymbolId to print source for")

	queryDefinitionCmd.Flags().StringVar(&flagFile, "file", "", "file path of the reference")
	queryDefinitionCmd.Flags().IntVar(&flagLine, "line", 1, "1-based line of the reference")
	queryDefinitionCmd.Flags().IntVar(&flagCol, "col", 0, "0-based column of the reference")

	queryCallGraphCmd.Flags().StringVar(&flagSymbol, "symbol", "", "root SymbolId; omitted prints entry points")
	queryCallGraphCmd.Flags().StringVar(&flagDirection, "direction", "callees", "callers|callees")
	queryCallGraphCmd.Flags().IntVar(&flagDepth, "depth", 100, "max traversal depth (capped at 100)")
}

var (
	flagExclude []string
	flagLangs   []string
)

// buildAndResolve indexes path into a fresh Engine and resolves it, since an
// in-memory registry has no persistence between CLI invocations.
func buildAndResolve(path string) (*codeintel.Engine, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	engine, err := codeintel.New()
	if err != nil {
		return nil, err
	}
	engine.SetLanguages(flagLangs)
	if err := engine.Initialize(abs, flagExclude); err != nil {
		engine.Close()
		return nil, fmt.Errorf("indexing: %w", err)
	}
	if err := engine.Resolve(); err != nil {
		engine.Close()
		return nil, fmt.Errorf("resolving: %w", err)
	}
	return engine, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
