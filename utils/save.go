package utils

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SaveFileAtomic writes through fill into a pending file next to path and
// renames it into place only when fill succeeds.
func SaveFileAtomic(path string, fill func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "Failed to create directory for %q", path)
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return errors.Wrapf(err, "Failed to create pending file for %q", path)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			log.Debug().Err(err).Str("path", path).Msg("cleanup pending file")
		}
	}()

	if err := fill(pending); err != nil {
		return errors.Wrapf(err, "Failed to write %q", path)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return errors.Wrapf(err, "Failed to replace %q", path)
	}
	return nil
}
