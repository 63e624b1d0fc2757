package playlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"pld/internal/models"
	"pld/internal/playlog/interfaces"
	"pld/internal/providers"
	"pld/internal/structures"
)

// BackupManager archives the document before destructive imports. Archives
// are zstd-compressed JSON named playlog-<unixnano>.json.zst, pruned to the
// configured count, newest kept. Restoring one is a manual operation.
type BackupManager struct {
	conf       *structures.Config
	compressor interfaces.CompressorInterface
	logger     providers.Logger
}

func NewBackupManager(conf *structures.Config, compressor interfaces.CompressorInterface, logger providers.Logger) interfaces.BackupInterface {
	return &BackupManager{
		conf:       conf,
		compressor: compressor,
		logger:     logger,
	}
}

func (b *BackupManager) Archive(doc *models.PersistedDocument) error {
	dir := b.conf.Persistence.BackupDir
	if dir == "" {
		return nil
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	compressed, err := b.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path := filepath.Join(dir, fmt.Sprintf("playlog-%d.json.zst", time.Now().UnixNano()))
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, compressed, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpFile, path); err != nil {
		return err
	}
	b.logger.Infof(providers.TypeApp, "Archived document to %s (%d records)", path, len(doc.PlayRecords))

	b.prune(dir)
	return nil
}

// prune removes the oldest archives beyond persistence.backupKeep. The
// unixnano file names are fixed width, so a reverse string sort orders
// newest first.
func (b *BackupManager) prune(dir string) {
	keep := b.conf.Persistence.BackupKeep
	if keep <= 0 {
		return
	}

	files, err := filepath.Glob(filepath.Join(dir, "playlog-*.json.zst"))
	if err != nil {
		b.logger.Errorf(providers.TypeApp, "Backup prune scan failed: %s", err)
		return
	}
	if len(files) <= keep {
		return
	}

	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	for _, old := range files[keep:] {
		if err := os.Remove(old); err != nil {
			b.logger.Errorf(providers.TypeApp, "Failed to prune backup %s: %s", old, err)
			continue
		}
		b.logger.Debugf(providers.TypeApp, "Pruned backup %s", old)
	}
}

func (b *BackupManager) Close() {
	b.compressor.Close()
}
