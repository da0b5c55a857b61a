package logstore

import (
	"io/fs"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
	"github.com/yiblet/cliphist/internal/indexlist"
	"github.com/yiblet/cliphist/internal/store"
)

// loadLegacy migrates the JSON snapshot written by older versions, if any.
//
// The snapshot is an array, oldest first, of either plain strings or
// {"contents": string, "favorite": bool} objects. After migration the
// snapshot is rewritten as a compacted log and removed.
func (s *Store) loadLegacy() (*store.State, error) {
	s.setWasted(0)
	if s.legacyPath == "" {
		return store.NewState(), nil
	}

	data, err := s.dir.ReadFile(s.legacyPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return store.NewState(), nil
		}
		return nil, errors.Wrap(err, "read legacy snapshot")
	}

	log := s.logger.WithField("action", "migrate").WithField("path", s.dir.Path(s.legacyPath))

	state, err := parseLegacy(data)
	if err != nil {
		aside, qerr := s.dir.Quarantine(s.legacyPath)
		if qerr != nil {
			return nil, errors.Wrap(qerr, "move unreadable legacy snapshot aside")
		}
		log.WithError(err).WithField("quarantined_as", aside).
			Warn("legacy snapshot is unreadable, starting with empty history")
		return store.NewState(), nil
	}

	if err := s.rewrite(snapshotState(state)); err != nil {
		return nil, err
	}
	if err := s.dir.Remove(s.legacyPath); err != nil {
		log.WithError(err).Warn("removing migrated legacy snapshot")
	}

	log.WithField("entries", state.Entries.Len()).
		WithField("favorites", state.Favorites.Len()).
		Info("migrated legacy snapshot")
	return state, nil
}

func parseLegacy(data []byte) (*store.State, error) {
	state := store.NewState()

	var itemErr error
	add := func(text string, favorite bool) {
		if strings.IndexByte(text, 0) >= 0 {
			// not representable in the log
			return
		}
		e := indexlist.NewText(state.NextID, text)
		state.NextID++
		e.Favorite = favorite
		if favorite {
			state.Favorites.Append(e)
		} else {
			state.Entries.Append(e)
		}
	}

	_, err := jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if itemErr != nil || err != nil {
			if itemErr == nil {
				itemErr = err
			}
			return
		}

		switch dataType {
		case jsonparser.String:
			text, err := jsonparser.ParseString(value)
			if err != nil {
				itemErr = err
				return
			}
			add(text, false)

		case jsonparser.Object:
			text, err := jsonparser.GetString(value, "contents")
			if err != nil {
				itemErr = errors.Wrap(err, "legacy entry contents")
				return
			}
			favorite, err := jsonparser.GetBoolean(value, "favorite")
			if err != nil && !errors.Is(err, jsonparser.KeyPathNotFoundError) {
				itemErr = errors.Wrap(err, "legacy entry favorite")
				return
			}
			add(text, favorite)

		default:
			itemErr = errors.Errorf("unexpected legacy entry of type %s", dataType)
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse legacy snapshot")
	}
	if itemErr != nil {
		return nil, errors.Wrap(itemErr, "parse legacy snapshot")
	}
	return state, nil
}
