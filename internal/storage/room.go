package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/escape-engine/pkg/room"
)

// Room operations (filesystem-backed)

func (r *RedisStorage) roomsDir() string {
	return filepath.Join(r.dataDir, "rooms")
}

// ListRooms maps room names to file names. Files that do not parse are
// skipped with a warning.
func (r *RedisStorage) ListRooms(ctx context.Context) (map[string]string, error) {
	rooms := make(map[string]string)

	err := filepath.WalkDir(r.roomsDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if _, ferr := room.FormatFor(path); ferr != nil {
			return nil
		}

		def, err := room.Load(path)
		if err != nil {
			r.logger.Warn("Failed to load room file", "path", path, "error", err)
			return nil
		}
		rooms[def.Name] = filepath.Base(path)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to walk rooms directory", "error", err)
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// GetRoom loads and validates a room definition from the rooms directory
func (r *RedisStorage) GetRoom(ctx context.Context, filename string) (*room.Definition, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return nil, fmt.Errorf("invalid room file name: %q", filename)
	}
	path := filepath.Join(r.roomsDir(), filename)
	r.logger.Debug("Loading room", "filename", filename, "full_path", path)

	def, err := room.Load(path)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			r.logger.Warn("Room file not found", "path", path)
		}
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("room %s is invalid: %w", filename, err)
	}
	return def, nil
}
