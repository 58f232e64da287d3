// 数据导入工具：读取规范化 JSON（snake_case），父级优先写入存储并重建全文索引
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"cambo-gazetteer/internal/config"
	"cambo-gazetteer/internal/domain"
	"cambo-gazetteer/internal/logger"
	"cambo-gazetteer/internal/seed"
	"cambo-gazetteer/internal/store"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const programName = "gazetteer-seed"

var globalFlags = struct {
	debug      bool
	configFile string
	noIndex    bool
	dryRun     bool
}{}

func readUnits(path string) ([]domain.Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return seed.Parse(f)
}

// printSummary：按类型打印条数并提示孤立单元
func printSummary(units []domain.Unit) {
	counts := seed.CountByType(units)
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	fmt.Printf("Loaded %d administrative units\n", len(units))
	for _, t := range types {
		fmt.Printf("  %-13s %d\n", t, counts[domain.UnitType(t)])
	}
	if orphans := seed.Orphans(units); len(orphans) > 0 {
		logger.L().Warn("seed_orphans", "count", len(orphans), "first", orphans[0])
	}
}

func seedRun(ctx context.Context, cfg *config.Config, path string) error {
	start := time.Now()
	units, err := readUnits(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	printSummary(units)
	if globalFlags.dryRun {
		return nil
	}

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	bar := progressbar.NewOptions(len(units),
		progressbar.OptionSetDescription("Seeding units"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
		progressbar.OptionFullWidth(),
	)
	err = seed.Load(ctx, st, units, seed.Options{
		RebuildIndex: cfg.SearchIndex && !globalFlags.noIndex,
		Progress:     func(n int) { _ = bar.Add(n) },
	})
	if err != nil {
		return err
	}
	logger.L().Info("seed_done", "units", len(units), "driver", cfg.DBDriver, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   programName + " <gazetteer-normalized.json>",
		Short: "Load the normalized gazetteer dataset into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(globalFlags.configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			level := cfg.LogLevel
			if globalFlags.debug {
				level = "debug"
			}
			logger.Setup(logger.Options{Level: level, Format: cfg.LogFormat})
			return seedRun(cmd.Context(), cfg, args[0])
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&globalFlags.configFile, "config", "", "path to config file")
	rootCmd.Flags().BoolVar(&globalFlags.noIndex, "no-index", false, "skip rebuilding the full-text search index")
	rootCmd.Flags().BoolVar(&globalFlags.dryRun, "dry-run", false, "parse and validate only")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
