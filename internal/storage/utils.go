package storage

import (
	"github.com/rai1001/CulinaryOs/internal/log"
	"github.com/rai1001/CulinaryOs/pkg/storage"
)

// InitStore opens the Postgres store for dbConnStr, or an in-memory store when it is empty.
func InitStore(dbConnStr string) (storage.Store, error) {
	if dbConnStr == "" {
		log.GetLogger().Warn("No database configured, using the in-memory store")
		return storage.NewMemoryStore(), nil
	}
	store, err := NewPostgresStore(dbConnStr)
	if err != nil {
		return nil, err
	}
	return store, nil
}
