package cli

import (
	"fmt"
)

// Args represents the top-level command structure
type Args struct {
	ConfigFile *string `arg:"--config-file,env:CLIPHIST_CONFIG" help:"Path to the config file (default: ~/.config/cliphist/config.yaml)"`
	CacheDir   *string `arg:"--cache-dir,env:CLIPHIST_CACHE_DIR" help:"Directory holding the history log (overrides config)"`
	Verbose    bool    `arg:"-v,--verbose" help:"Log debug output to stderr"`

	Watch    *WatchCmd    `arg:"subcommand:watch" help:"Record clipboard copies until interrupted"`
	Store    *StoreCmd    `arg:"subcommand:store" help:"Record text in the history"`
	List     *ListCmd     `arg:"subcommand:list" help:"List history entries, newest first"`
	Show     *ShowCmd     `arg:"subcommand:show" help:"Print an entry"`
	Delete   *DeleteCmd   `arg:"subcommand:delete" help:"Delete entries"`
	Favorite *FavoriteCmd `arg:"subcommand:favorite" help:"Toggle the favorite flag of an entry"`
	Clear    *ClearCmd    `arg:"subcommand:clear" help:"Delete all non-favorite entries"`
	Compact  *CompactCmd  `arg:"subcommand:compact" help:"Rewrite the history log"`
	Stats    *StatsCmd    `arg:"subcommand:stats" help:"Show history and log statistics"`
	Dump     *DumpCmd     `arg:"subcommand:dump" help:"Print the records of a history log"`
	Generate *GenerateCmd `arg:"subcommand:generate" help:"Write a synthetic history log"`
	Config   *ConfigCmd   `arg:"subcommand:config" help:"Manage engine configuration"`
	Settings *SettingsCmd `arg:"subcommand:settings" help:"Manage history preferences"`
}

// WatchCmd represents the 'cliphist watch' command
type WatchCmd struct {
	Count int `arg:"-n,--count" help:"Stop after recording this many copies (0 = until interrupted)"`
}

// StoreCmd represents the 'cliphist store' command
type StoreCmd struct {
	Text      *string `arg:"positional" help:"Text to record (default: read stdin)"`
	Clipboard bool    `arg:"-c,--clipboard" help:"Read from clipboard"`
}

// ListCmd represents the 'cliphist list' command
type ListCmd struct {
	Favorites bool   `arg:"-f,--favorites" help:"List favorites instead of history"`
	Limit     int    `arg:"-n,--limit" default:"20" help:"Maximum number of entries (0 = all)"`
	Search    string `arg:"-s,--search" help:"Only list entries containing this text"`
}

// ShowCmd represents the 'cliphist show' command
type ShowCmd struct {
	ID        uint64 `arg:"positional,required" help:"Entry id"`
	Clipboard bool   `arg:"-c,--clipboard" help:"Copy to clipboard instead of printing"`
}

// DeleteCmd represents the 'cliphist delete' command
type DeleteCmd struct {
	IDs []uint64 `arg:"positional,required" help:"Entry ids"`
}

// FavoriteCmd represents the 'cliphist favorite' command
type FavoriteCmd struct {
	ID uint64 `arg:"positional,required" help:"Entry id"`
}

// ClearCmd represents the 'cliphist clear' command
type ClearCmd struct {
	Force bool `arg:"-f,--force" help:"Skip confirmation prompt"`
}

// CompactCmd represents the 'cliphist compact' command
type CompactCmd struct{}

// StatsCmd represents the 'cliphist stats' command
type StatsCmd struct{}

// DumpCmd represents the 'cliphist dump' command
type DumpCmd struct {
	File *string `arg:"positional" help:"Log file (default: the configured history log)"`
}

// GenerateCmd represents the 'cliphist generate' command
type GenerateCmd struct {
	Entries int     `arg:"-n,--entries" default:"10000" help:"Number of entries to generate"`
	File    *string `arg:"positional" help:"Output file (default: the configured history log)"`
	Force   bool    `arg:"-f,--force" help:"Overwrite an existing file"`
}

// ConfigCmd represents the 'cliphist config' command
type ConfigCmd struct {
	Get  *KeyGetCmd  `arg:"subcommand:get" help:"Get a configuration value"`
	Set  *KeySetCmd  `arg:"subcommand:set" help:"Set a configuration value"`
	List *KeyListCmd `arg:"subcommand:list" help:"List all configuration values"`
}

// SettingsCmd represents the 'cliphist settings' command
type SettingsCmd struct {
	Get  *KeyGetCmd  `arg:"subcommand:get" help:"Get a preference"`
	Set  *KeySetCmd  `arg:"subcommand:set" help:"Set a preference"`
	List *KeyListCmd `arg:"subcommand:list" help:"List all preferences"`
}

// KeyGetCmd reads one key
type KeyGetCmd struct {
	Key string `arg:"positional,required" help:"Key to get"`
}

// KeySetCmd writes one key
type KeySetCmd struct {
	Key   string `arg:"positional,required" help:"Key to set"`
	Value string `arg:"positional,required" help:"Value to set"`
}

// KeyListCmd lists all keys
type KeyListCmd struct{}

// Description returns the program description
func (Args) Description() string {
	return "cliphist - clipboard history with an append-only on-disk log"
}

// Version returns the program version
func (Args) Version() string {
	return "cliphist 0.1.0"
}

// Epilogue returns additional help text
func (Args) Epilogue() string {
	return `Examples:
  cliphist watch                       # Record clipboard copies
  echo "hello" | cliphist store        # Record stdin
  cliphist list -n 5                   # Five newest entries
  cliphist show 12 -c                  # Copy entry 12 back to the clipboard
  cliphist favorite 12                 # Pin entry 12
  cliphist settings set history-size 200
  cliphist dump                        # Inspect the log records`
}

// Validate performs validation on the parsed arguments
func (args *Args) Validate() error {
	switch {
	case args.Watch != nil:
		return args.Watch.Validate()
	case args.Store != nil:
		return args.Store.Validate()
	case args.List != nil:
		return args.List.Validate()
	case args.Show != nil:
		return validateID(args.Show.ID)
	case args.Delete != nil:
		return args.Delete.Validate()
	case args.Favorite != nil:
		return validateID(args.Favorite.ID)
	case args.Generate != nil:
		return args.Generate.Validate()
	case args.Config != nil:
		return validateKeyCmd(args.Config.Get, args.Config.Set, args.Config.List, "config")
	case args.Settings != nil:
		return validateKeyCmd(args.Settings.Get, args.Settings.Set, args.Settings.List, "settings")
	}
	return nil
}

// Validate validates watch command arguments
func (w *WatchCmd) Validate() error {
	if w.Count < 0 {
		return fmt.Errorf("count must be non-negative")
	}
	return nil
}

// Validate validates store command arguments
func (s *StoreCmd) Validate() error {
	if s.Text != nil && s.Clipboard {
		return fmt.Errorf("cannot specify both text and clipboard input")
	}
	return nil
}

// Validate validates list command arguments
func (l *ListCmd) Validate() error {
	if l.Limit < 0 {
		return fmt.Errorf("limit must be non-negative")
	}
	return nil
}

// Validate validates delete command arguments
func (d *DeleteCmd) Validate() error {
	if len(d.IDs) == 0 {
		return fmt.Errorf("at least one id is required")
	}
	for _, id := range d.IDs {
		if err := validateID(id); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates generate command arguments
func (g *GenerateCmd) Validate() error {
	if g.Entries <= 0 {
		return fmt.Errorf("at least one entry must be generated")
	}
	return nil
}

func validateID(id uint64) error {
	if id == 0 {
		return fmt.Errorf("ids start at 1")
	}
	return nil
}

func validateKeyCmd(get *KeyGetCmd, set *KeySetCmd, list *KeyListCmd, name string) error {
	if get == nil && set == nil && list == nil {
		return fmt.Errorf("no %s subcommand specified", name)
	}
	return nil
}
