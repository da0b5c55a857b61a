package history

import (
	"fmt"
	"strconv"

	"github.com/yiblet/cliphist/internal/store"
)

// Setting keys as stored in the settings database.
const (
	KeyHistorySize        = "history-size"
	KeyCacheSize          = "cache-size"
	KeyCacheOnlyFavorites = "cache-only-favorites"
	KeyMoveItemFirst      = "move-item-first"
	KeyStripText          = "strip-text"
)

const (
	DefaultHistorySize = 50
	DefaultCacheSize   = 5
)

// Settings are the user preferences that shape the history.
type Settings struct {
	// HistorySize caps the number of non-favorite entries.
	HistorySize int

	// CacheSize caps the text held by non-favorite entries, in MiB of
	// characters.
	CacheSize int

	// CacheOnlyFavorites keeps non-favorite entries out of the log.
	CacheOnlyFavorites bool

	// MoveItemFirst moves an entry to the newest position when its text is
	// copied again.
	MoveItemFirst bool

	// StripText trims surrounding whitespace from copied text.
	StripText bool
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		HistorySize: DefaultHistorySize,
		CacheSize:   DefaultCacheSize,
	}
}

// Validate checks that the limits are usable.
func (s Settings) Validate() error {
	if s.HistorySize <= 0 {
		return fmt.Errorf("%s must be positive, got %d", KeyHistorySize, s.HistorySize)
	}
	if s.CacheSize <= 0 {
		return fmt.Errorf("%s must be positive, got %d", KeyCacheSize, s.CacheSize)
	}
	return nil
}

// MaxBytes is CacheSize in characters.
func (s Settings) MaxBytes() int {
	return s.CacheSize << 20
}

// SettingsFromStore reads the settings from a config store. Missing keys keep
// their defaults; malformed values are errors.
func SettingsFromStore(cs store.ConfigStore) (Settings, error) {
	values, err := cs.List()
	if err != nil {
		return Settings{}, fmt.Errorf("failed to list settings: %w", err)
	}

	s := DefaultSettings()
	ints := map[string]*int{
		KeyHistorySize: &s.HistorySize,
		KeyCacheSize:   &s.CacheSize,
	}
	bools := map[string]*bool{
		KeyCacheOnlyFavorites: &s.CacheOnlyFavorites,
		KeyMoveItemFirst:      &s.MoveItemFirst,
		KeyStripText:          &s.StripText,
	}

	for key, dst := range ints {
		raw, ok := values[key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid %s %q: %w", key, raw, err)
		}
		*dst = n
	}
	for key, dst := range bools {
		raw, ok := values[key]
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid %s %q: %w", key, raw, err)
		}
		*dst = b
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ValidateSetting checks a single key/value pair before it is stored.
func ValidateSetting(key, value string) error {
	switch key {
	case KeyHistorySize, KeyCacheSize:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		if n <= 0 {
			return fmt.Errorf("%s must be positive, got %d", key, n)
		}
	case KeyCacheOnlyFavorites, KeyMoveItemFirst, KeyStripText:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
	default:
		return fmt.Errorf("unknown setting: %s", key)
	}
	return nil
}
