package playlog

import (
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"pld/internal/models"
	"pld/internal/playlog/interfaces"
	"pld/internal/providers"
)

// FileManager reads and writes the play-log document. The file is plain JSON;
// writes go through a temp file with fsync then rename so a crash never leaves
// a half-written document behind.
type FileManager struct {
	logger providers.Logger
}

func NewFileManager(logger providers.Logger) interfaces.FileManagerInterface {
	return &FileManager{logger: logger}
}

func (f *FileManager) Save(fileName string, doc *models.PersistedDocument) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fileName), 0755); err != nil {
		return err
	}

	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(jsonData)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

// Load reads the document from disk. A missing file simply means a fresh
// installation. A file that does not parse is moved aside to <file>.corrupt
// and treated as absent, so a damaged document never blocks startup.
func (f *FileManager) Load(fileName string) (*models.PersistedDocument, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var doc models.PersistedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		quarantine := fileName + ".corrupt"
		f.logger.Warnf(providers.TypeApp, "Document %s is not parseable (%s), moving to %s and starting empty", fileName, err, quarantine)
		if renameErr := os.Rename(fileName, quarantine); renameErr != nil {
			f.logger.Errorf(providers.TypeApp, "Failed to quarantine corrupt document: %s", renameErr)
		}
		return nil, nil
	}
	return &doc, nil
}
