package store

import (
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SqliteStore implements both HistoryStore and BalanceHashStore on one
// sqlite database. Saves run inside a transaction, which gives the same
// no-partial-write guarantee the file store gets from rename.
type SqliteStore struct {
	db *gorm.DB
}

// OpenSqlite opens (or creates) the database at dbPath and runs migrations.
func OpenSqlite(dbPath string) (*SqliteStore, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&SigninRecordRow{}, &MetaRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SqliteStore{db: db}, nil
}

// NewSqliteStore wraps an already-open gorm handle. Used by tests with an
// in-memory database.
func NewSqliteStore(db *gorm.DB) (*SqliteStore, error) {
	if err := db.AutoMigrate(&SigninRecordRow{}, &MetaRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SqliteStore{db: db}, nil
}

// Load reads every signin record row into the history map.
func (s *SqliteStore) Load() (map[string]Record, error) {
	var rows []SigninRecordRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	history := make(map[string]Record, len(rows))
	for _, row := range rows {
		history[row.AccountKey] = Record{Time: row.SigninTime, Balance: row.Balance}
	}
	return history, nil
}

// Save upserts the whole history map in one transaction.
func (s *SqliteStore) Save(history map[string]Record) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for key, rec := range history {
			row := SigninRecordRow{
				AccountKey: key,
				SigninTime: rec.Time,
				Balance:    rec.Balance,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "account_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"signin_time", "balance", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("upsert record %s: %w", key, err)
			}
		}
		return nil
	})
}

// LoadHash returns the stored balance hash, or "" when none exists.
func (s *SqliteStore) LoadHash() (string, error) {
	var row MetaRow
	err := s.db.Where("key = ?", balanceHashKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load balance hash: %w", err)
	}
	return row.Value, nil
}

// SaveHash upserts the balance hash row.
func (s *SqliteStore) SaveHash(hash string) error {
	row := MetaRow{Key: balanceHashKey, Value: hash}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save balance hash: %w", err)
	}
	return nil
}

// HashStore adapts the sqlite store to the BalanceHashStore interface so the
// same database backs both contracts.
func (s *SqliteStore) HashStore() BalanceHashStore {
	return sqliteHashStore{s}
}

type sqliteHashStore struct {
	s *SqliteStore
}

func (h sqliteHashStore) Load() (string, error)  { return h.s.LoadHash() }
func (h sqliteHashStore) Save(hash string) error { return h.s.SaveHash(hash) }
