package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/outofforest/parallel"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/sirupsen/logrus"
	"github.com/yiblet/cliphist/internal/cachefs"
	"github.com/yiblet/cliphist/internal/clipboard"
	"github.com/yiblet/cliphist/internal/clipboard/sysboard"
	"github.com/yiblet/cliphist/internal/config"
	"github.com/yiblet/cliphist/internal/history"
	"github.com/yiblet/cliphist/internal/indexlist"
	"github.com/yiblet/cliphist/internal/metrics"
	"github.com/yiblet/cliphist/internal/store/dbstore"
	"github.com/yiblet/cliphist/internal/store/logstore"
)

// CLI handles the command-line interface
type CLI struct {
	cfg       *config.Config
	configs   *config.ConfigManager
	dir       *cachefs.Dir
	logger    *logrus.Logger
	clipboard clipboard.Clipboard
	registry  *prometheus.Registry

	in  io.Reader
	out io.Writer
}

// NewWithArgs creates a new CLI instance. The cache directory is taken from
// the --cache-dir flag, then the config file, then the default location.
func NewWithArgs(args *Args) (*CLI, error) {
	var configs *config.ConfigManager
	if args != nil && args.ConfigFile != nil {
		configs = config.NewConfigManagerWithPath(*args.ConfigFile)
	} else {
		var err error
		configs, err = config.NewConfigManager()
		if err != nil {
			return nil, fmt.Errorf("failed to create config manager: %w", err)
		}
	}

	cfg, err := configs.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cacheDir := cfg.CacheDir
	if args != nil && args.CacheDir != nil {
		cacheDir = *args.CacheDir
	}
	dir, err := cachefs.NewWithPath(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(cfg.Level())
	if args != nil && args.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	return &CLI{
		cfg:       cfg,
		configs:   configs,
		dir:       dir,
		logger:    logger,
		clipboard: sysboard.New(),
		registry:  prometheus.NewRegistry(),
		in:        os.Stdin,
		out:       os.Stdout,
	}, nil
}

// CacheDir returns the directory holding the history log
func (c *CLI) CacheDir() string {
	return c.dir.Root()
}

// Execute runs the CLI command based on parsed arguments
func (c *CLI) Execute(ctx context.Context, args *Args) error {
	if err := args.Validate(); err != nil {
		return err
	}

	switch {
	case args.Watch != nil:
		return c.executeWatch(ctx, args.Watch)
	case args.Store != nil:
		return c.executeStore(ctx, args.Store)
	case args.List != nil:
		return c.executeList(ctx, args.List)
	case args.Show != nil:
		return c.executeShow(ctx, args.Show)
	case args.Delete != nil:
		return c.executeDelete(ctx, args.Delete)
	case args.Favorite != nil:
		return c.executeFavorite(ctx, args.Favorite)
	case args.Clear != nil:
		return c.executeClear(ctx, args.Clear)
	case args.Compact != nil:
		return c.executeCompact(ctx)
	case args.Stats != nil:
		return c.executeStats(ctx)
	case args.Dump != nil:
		return c.executeDump(args.Dump)
	case args.Generate != nil:
		return c.executeGenerate(args.Generate)
	case args.Config != nil:
		return c.executeConfig(args.Config)
	case args.Settings != nil:
		return c.executeSettings(ctx, args.Settings)
	default:
		return fmt.Errorf("no command specified")
	}
}

// openSettings opens the preferences database in the cache directory
func (c *CLI) openSettings() (*dbstore.SettingsStore, error) {
	if err := c.dir.MkdirAll(); err != nil {
		return nil, err
	}
	settings, err := dbstore.NewSettingsStore(c.dir.Path(c.cfg.SettingsDB))
	if err != nil {
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}
	return settings, nil
}

// openHistory loads the history log. The caller must Close the manager.
func (c *CLI) openHistory(ctx context.Context) (*history.Manager, error) {
	settingsStore, err := c.openSettings()
	if err != nil {
		return nil, err
	}
	settings, err := history.SettingsFromStore(settingsStore)
	settingsStore.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	// fresh registry per load so the instruments register once
	c.registry = prometheus.NewRegistry()
	opts := []logstore.Option{
		logstore.WithLogName(c.cfg.LogFile),
		logstore.WithMaxWastedOps(c.cfg.MaxWastedOps),
		logstore.WithWriteRetries(c.cfg.WriteRetries),
		logstore.WithMetrics(metrics.New(c.registry)),
	}
	if c.cfg.LegacyRegistry != "" {
		opts = append(opts, logstore.WithLegacyPath(c.cfg.LegacyRegistry))
	}
	s, err := logstore.New(c.dir, c.logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create log store: %w", err)
	}

	m, err := history.NewManager(ctx, s, settings, c.logger)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}
	return m, nil
}

// withHistory runs fn against the loaded history and waits for its writes
func (c *CLI) withHistory(ctx context.Context, fn func(m *history.Manager) error) (err error) {
	m, err := c.openHistory(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = fmt.Errorf("failed to write history: %w", cerr)
		}
	}()
	return fn(m)
}

// executeWatch handles the 'cliphist watch' command. One task forwards
// clipboard changes; the other owns the history and records them.
func (c *CLI) executeWatch(ctx context.Context, cmd *WatchCmd) error {
	return c.withHistory(ctx, func(m *history.Manager) error {
		texts := make(chan string)

		err := parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
			spawn("clipboard", parallel.Fail, func(ctx context.Context) error {
				defer close(texts)
				changes, err := c.clipboard.Watch(ctx)
				if err != nil {
					return fmt.Errorf("failed to watch clipboard: %w", err)
				}
				for text := range changes {
					select {
					case texts <- text:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				return ctx.Err()
			})
			spawn("history", parallel.Exit, func(ctx context.Context) error {
				recorded := 0
				for text := range texts {
					e, created, err := m.Observe(text)
					if err != nil {
						c.logger.WithError(err).Warn("skipping copied text")
						continue
					}
					if e == nil {
						continue
					}
					if err := m.Sync(ctx); err != nil {
						c.logger.WithError(err).Error("failed to write history")
					}
					c.logger.WithField("id", e.ID).WithField("new", created).Info("recorded copy")

					recorded++
					if cmd.Count > 0 && recorded >= cmd.Count {
						return nil
					}
				}
				return ctx.Err()
			})
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}

// executeStore handles the 'cliphist store' command
func (c *CLI) executeStore(ctx context.Context, cmd *StoreCmd) error {
	var text string
	switch {
	case cmd.Text != nil:
		text = *cmd.Text
	case cmd.Clipboard:
		var err error
		text, err = c.clipboard.Read()
		if err != nil {
			return fmt.Errorf("failed to read clipboard: %w", err)
		}
	default:
		data, err := io.ReadAll(c.in)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		text = string(data)
	}

	return c.withHistory(ctx, func(m *history.Manager) error {
		e, created, err := m.Observe(text)
		if err != nil {
			return fmt.Errorf("failed to store content: %w", err)
		}
		switch {
		case e == nil:
			return fmt.Errorf("no input provided")
		case created:
			fmt.Fprintf(c.out, "Stored #%d: %s\n", e.ID, history.Preview(e.Text, history.DefaultPreviewLength))
		default:
			fmt.Fprintf(c.out, "Already stored #%d: %s\n", e.ID, history.Preview(e.Text, history.DefaultPreviewLength))
		}
		return nil
	})
}

// executeList handles the 'cliphist list' command
func (c *CLI) executeList(ctx context.Context, cmd *ListCmd) error {
	return c.withHistory(ctx, func(m *history.Manager) error {
		var entries []*indexlist.Entry
		if cmd.Search != "" {
			entries = m.Search(cmd.Search)
			if cmd.Limit > 0 && len(entries) > cmd.Limit {
				entries = entries[:cmd.Limit]
			}
		} else {
			entries = m.Recent(cmd.Favorites, cmd.Limit)
		}

		if len(entries) == 0 {
			fmt.Fprintln(c.out, "History is empty.")
			return nil
		}
		for _, e := range entries {
			marker := " "
			if e.Favorite {
				marker = "*"
			}
			disk := "-"
			if e.Persisted() {
				disk = strconv.FormatUint(uint64(e.DiskID), 10)
			}
			fmt.Fprintf(c.out, "%6d %6s %s %s\n", e.ID, disk, marker, history.Preview(e.Text, history.DefaultPreviewLength))
		}
		return nil
	})
}

// executeShow handles the 'cliphist show' command
func (c *CLI) executeShow(ctx context.Context, cmd *ShowCmd) error {
	return c.withHistory(ctx, func(m *history.Manager) error {
		e, err := m.Find(cmd.ID)
		if err != nil {
			return err
		}
		if cmd.Clipboard {
			if err := c.clipboard.Write(e.Text); err != nil {
				return fmt.Errorf("failed to write to clipboard: %w", err)
			}
			fmt.Fprintf(c.out, "Copied to clipboard: %s\n", history.Preview(e.Text, history.DefaultPreviewLength))
			return nil
		}
		_, err = io.WriteString(c.out, e.Text)
		return err
	})
}

// executeDelete handles the 'cliphist delete' command
func (c *CLI) executeDelete(ctx context.Context, cmd *DeleteCmd) error {
	return c.withHistory(ctx, func(m *history.Manager) error {
		for _, id := range cmd.IDs {
			if err := m.Delete(id); err != nil {
				return fmt.Errorf("failed to delete: %w", err)
			}
			fmt.Fprintf(c.out, "Deleted #%d\n", id)
		}
		return nil
	})
}

// executeFavorite handles the 'cliphist favorite' command
func (c *CLI) executeFavorite(ctx context.Context, cmd *FavoriteCmd) error {
	return c.withHistory(ctx, func(m *history.Manager) error {
		e, err := m.ToggleFavorite(cmd.ID)
		if err != nil {
			return fmt.Errorf("failed to toggle favorite: %w", err)
		}
		if e.Favorite {
			fmt.Fprintf(c.out, "Pinned #%d\n", e.ID)
		} else {
			fmt.Fprintf(c.out, "Unpinned #%d\n", e.ID)
		}
		return nil
	})
}

// executeClear handles the 'cliphist clear' command
func (c *CLI) executeClear(ctx context.Context, cmd *ClearCmd) error {
	return c.withHistory(ctx, func(m *history.Manager) error {
		n := m.Entries().Len()
		if n == 0 {
			fmt.Fprintln(c.out, "History is already empty.")
			return nil
		}

		// Prompt for confirmation unless --force is used
		if !cmd.Force {
			fmt.Fprintf(c.out, "This will delete %d item(s) from history. Continue? [y/N]: ", n)
			response, _ := bufio.NewReader(c.in).ReadString('\n')
			response = strings.ToLower(strings.TrimSpace(response))
			if response != "y" && response != "yes" {
				fmt.Fprintln(c.out, "Cancelled.")
				return nil
			}
		}

		m.Clear()
		fmt.Fprintf(c.out, "Cleared %d item(s) from history.\n", n)
		return nil
	})
}

// executeCompact handles the 'cliphist compact' command
func (c *CLI) executeCompact(ctx context.Context) error {
	return c.withHistory(ctx, func(m *history.Manager) error {
		m.Compact()
		if err := m.Sync(ctx); err != nil {
			return fmt.Errorf("failed to compact: %w", err)
		}
		stats := m.Stats()
		fmt.Fprintf(c.out, "Compacted log: %d entries, %d favorites\n", stats.Entries, stats.Favorites)
		return nil
	})
}

// executeStats handles the 'cliphist stats' command
func (c *CLI) executeStats(ctx context.Context) error {
	return c.withHistory(ctx, func(m *history.Manager) error {
		stats := m.Stats()
		settings := m.Settings()

		logSize, err := c.dir.Size(c.cfg.LogFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat log: %w", err)
		}

		printField(c.out, "cache dir", c.dir.Root())
		printField(c.out, "entries", fmt.Sprintf("%d / %d", stats.Entries, settings.HistorySize))
		printField(c.out, "favorites", stats.Favorites)
		printField(c.out, "characters", stats.Bytes)
		printField(c.out, "persisted", stats.Persisted)
		printField(c.out, "wasted ops", fmt.Sprintf("%d / %d", stats.Wasted, c.cfg.MaxWastedOps))
		printField(c.out, "log bytes", logSize)
		printField(c.out, "cache only favorites", settings.CacheOnlyFavorites)

		families, err := c.registry.Gather()
		if err != nil {
			return fmt.Errorf("failed to gather metrics: %w", err)
		}
		for _, mf := range families {
			for _, metric := range mf.GetMetric() {
				printField(c.out, metricName(mf.GetName(), metric), metricValue(mf.GetType(), metric))
			}
		}
		return nil
	})
}

// executeDump handles the 'cliphist dump' command
func (c *CLI) executeDump(cmd *DumpCmd) error {
	path := c.dir.Path(c.cfg.LogFile)
	if cmd.File != nil {
		path = *cmd.File
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	return DumpLog(c.out, f, history.DefaultPreviewLength)
}

// executeGenerate handles the 'cliphist generate' command
func (c *CLI) executeGenerate(cmd *GenerateCmd) error {
	path := c.dir.Path(c.cfg.LogFile)
	if cmd.File != nil {
		path = *cmd.File
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if cmd.Force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		return fmt.Errorf("failed to create log: %w", err)
	}

	n, err := GenerateLog(f, cmd.Entries, uint64(cmd.Entries))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Wrote %d entries (%d bytes) to %s\n", cmd.Entries, n, path)
	return nil
}

// executeConfig handles the 'cliphist config' command
func (c *CLI) executeConfig(cmd *ConfigCmd) error {
	switch {
	case cmd.Get != nil:
		value, err := c.configs.Get(cmd.Get.Key)
		if err != nil {
			return fmt.Errorf("failed to get config value: %w", err)
		}
		fmt.Fprintln(c.out, value)
		return nil
	case cmd.Set != nil:
		if err := c.configs.Update(cmd.Set.Key, cmd.Set.Value); err != nil {
			return fmt.Errorf("failed to set config value: %w", err)
		}
		fmt.Fprintf(c.out, "Set %s = %s\n", cmd.Set.Key, cmd.Set.Value)
		return nil
	case cmd.List != nil:
		values, err := c.configs.List()
		if err != nil {
			return fmt.Errorf("failed to list config values: %w", err)
		}
		fmt.Fprintf(c.out, "Configuration (%s):\n", c.configs.GetConfigPath())
		printSorted(c.out, values)
		return nil
	default:
		return fmt.Errorf("no config subcommand specified")
	}
}

// executeSettings handles the 'cliphist settings' command
func (c *CLI) executeSettings(ctx context.Context, cmd *SettingsCmd) error {
	settings, err := c.openSettings()
	if err != nil {
		return err
	}
	defer settings.Close()

	switch {
	case cmd.Get != nil:
		value, err := settings.Get(cmd.Get.Key)
		if err != nil {
			return fmt.Errorf("failed to get setting: %w", err)
		}
		fmt.Fprintln(c.out, value)
		return nil
	case cmd.Set != nil:
		if err := history.ValidateSetting(cmd.Set.Key, cmd.Set.Value); err != nil {
			return err
		}
		// the history is loaded with the previous settings so the manager
		// can prune or rewrite the log for the change
		return c.withHistory(ctx, func(m *history.Manager) error {
			if err := settings.Set(cmd.Set.Key, cmd.Set.Value); err != nil {
				return fmt.Errorf("failed to set setting: %w", err)
			}
			next, err := history.SettingsFromStore(settings)
			if err != nil {
				return fmt.Errorf("failed to read settings: %w", err)
			}
			if err := m.SetSettings(next); err != nil {
				return fmt.Errorf("failed to apply settings: %w", err)
			}
			fmt.Fprintf(c.out, "Set %s = %s\n", cmd.Set.Key, cmd.Set.Value)
			return nil
		})
	case cmd.List != nil:
		values, err := settings.List()
		if err != nil {
			return fmt.Errorf("failed to list settings: %w", err)
		}
		fmt.Fprintln(c.out, "Current settings:")
		printSorted(c.out, values)
		return nil
	default:
		return fmt.Errorf("no settings subcommand specified")
	}
}

func printSorted(w io.Writer, values map[string]string) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", k, values[k])
	}
}

func metricName(name string, m *dto.Metric) string {
	if len(m.GetLabel()) == 0 {
		return name
	}
	labels := make([]string, 0, len(m.GetLabel()))
	for _, l := range m.GetLabel() {
		labels = append(labels, l.GetName()+"="+l.GetValue())
	}
	return name + "{" + strings.Join(labels, ",") + "}"
}

func metricValue(t dto.MetricType, m *dto.Metric) string {
	switch t {
	case dto.MetricType_COUNTER:
		return fmt.Sprintf("%g", m.GetCounter().GetValue())
	case dto.MetricType_GAUGE:
		return fmt.Sprintf("%g", m.GetGauge().GetValue())
	case dto.MetricType_HISTOGRAM:
		h := m.GetHistogram()
		return fmt.Sprintf("count=%d sum=%g", h.GetSampleCount(), h.GetSampleSum())
	default:
		return t.String()
	}
}
