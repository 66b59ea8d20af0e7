package storage

import "dre-insights/models"

// TransactionWriter is the interface any export sink must satisfy.
type TransactionWriter interface {
	Write(txs []*models.Transaction) error
	Close() error
}

// AreaStore is the read/write surface for the user-editable coordinates
// reference table.
type AreaStore interface {
	Areas() ([]models.Area, error)
	PersistAreas(areas []models.Area) error
}
