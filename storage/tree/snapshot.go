package tree

import (
	"fmt"
	"io"

	"github.com/jrife/sertree/storage/kv"
	"go.uber.org/zap"
)

// ExportTree writes the raw contents of a tree to w and
// returns the number of bytes written
func (db *DB) ExportTree(name string, w io.Writer) (int64, error) {
	t, err := db.OpenRelaxedTree(name)

	if err != nil {
		return 0, err
	}

	snapshot, err := kv.Snapshot(t.bucket)

	if err != nil {
		return 0, t.storeError("export", err)
	}

	defer snapshot.Close()

	n, err := io.Copy(w, snapshot)

	if err != nil {
		return n, t.storeError("export", err)
	}

	t.logger.Debug("exported tree", zap.Int64("bytes", n))

	return n, nil
}

// ImportTree replaces the contents of a tree with a stream
// written by ExportTree and returns the number of entries
func (db *DB) ImportTree(name string, r io.Reader) (int, error) {
	t, err := db.OpenRelaxedTree(name)

	if err != nil {
		return 0, err
	}

	n, err := kv.ApplySnapshot(t.bucket, r)

	if err != nil {
		return n, t.storeError("import", fmt.Errorf("after %d entries: %w", n, err))
	}

	t.logger.Debug("imported tree", zap.Int("entries", n))

	return n, nil
}
