package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// BackupSchemaVersion is the newest export schema this build understands.
// Imports with a greater version are rejected; equal or older are accepted.
const BackupSchemaVersion = 2

// BackupExport is the portable full-data export exchanged between devices.
// Unknown fields are ignored on decode; missing required fields are a
// validation error, not a crash.
type BackupExport struct {
	Metadata BackupMetadata `json:"metadata"`
	Data     BackupData     `json:"data"`
}

type BackupMetadata struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	App        string    `json:"app"`
}

type BackupData struct {
	Accounts     []BackupAccount     `json:"accounts"`
	Transactions []BackupTransaction `json:"transactions"`
	Categories   []BackupCategory    `json:"categories"`
}

type BackupAccount struct {
	ID            string `json:"id"`
	BankCode      string `json:"bankCode"`
	AccountNumber string `json:"accountNumber"`
	Name          string `json:"name"`
	Balance       int64  `json:"balance"`
}

type BackupCategory struct {
	ID        string `json:"id"`
	ParentID  string `json:"parentId,omitempty"`
	Name      string `json:"name"`
	Icon      string `json:"icon,omitempty"`
	SortOrder int    `json:"sortOrder"`
	IsSystem  bool   `json:"isSystem"`
}

type BackupTransaction struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"accountId"`
	CategoryID      string    `json:"categoryId,omitempty"`
	Type            string    `json:"type"`
	Amount          int64     `json:"amount"`
	TransactionDate time.Time `json:"transactionDate"`
	Merchant        string    `json:"merchant,omitempty"`
	Description     string    `json:"description,omitempty"`
	Reference       string    `json:"reference,omitempty"`
	BalanceAfter    *int64    `json:"balanceAfter,omitempty"`
}

// ParseBackup decodes and validates an export document.
func ParseBackup(data []byte) (*BackupExport, error) {
	var b BackupExport
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks the required top-level fields are present.
func (b *BackupExport) Validate() error {
	if b.Metadata.Version == 0 {
		return fmt.Errorf("backup missing metadata.version")
	}
	if b.Metadata.App == "" {
		return fmt.Errorf("backup missing metadata.app")
	}
	return nil
}
