package interfaces

import "pld/internal/models"

type FileManagerInterface interface {
	Save(fileName string, doc *models.PersistedDocument) error
	// Load returns nil without error when no document exists yet. A document
	// that cannot be parsed is quarantined and reported as absent.
	Load(fileName string) (*models.PersistedDocument, error)
}

type BackupInterface interface {
	Archive(doc *models.PersistedDocument) error
	Close()
}
