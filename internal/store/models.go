package store

import "time"

// SigninRecordRow is the sqlite row form of Record, one row per account.
type SigninRecordRow struct {
	AccountKey string `gorm:"primaryKey"`
	SigninTime time.Time
	Balance    *float64
	UpdatedAt  time.Time
}

// MetaRow is a small key/value row used for run-level metadata such as the
// balance hash.
type MetaRow struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

const balanceHashKey = "balance_hash"
