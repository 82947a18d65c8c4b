package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tcs-sec/vulncases/internal/database/models"
)

// ErrDuplicateVulnID reports a write that collided with the unique index on
// vuln_id. Callers distinguish it from validation and storage failures.
var ErrDuplicateVulnID = errors.New("duplicate vuln_id")

// TestCaseStore owns the test_cases collection.
type TestCaseStore struct {
	db *gorm.DB
}

func NewTestCaseStore(db *gorm.DB) *TestCaseStore {
	return &TestCaseStore{db: db}
}

// EnsureSchema creates the test_cases table and the unique index on vuln_id
// (uniq_vuln_id). Safe to re-run.
func (s *TestCaseStore) EnsureSchema() error {
	if err := s.db.AutoMigrate(&models.TestCase{}); err != nil {
		return fmt.Errorf("migrate test_cases: %w", err)
	}
	return nil
}

// Insert writes a batch of validated test cases inside one transaction, so a
// duplicate vuln_id anywhere in the batch leaves nothing behind.
func (s *TestCaseStore) Insert(ctx context.Context, docs []models.TestCase) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&docs).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, ErrDuplicateVulnID
		}
		return 0, fmt.Errorf("insert test cases: %w", err)
	}
	return len(docs), nil
}

// InsertSkipDuplicates writes the batch while ignoring records whose vuln_id
// already exists. Used by the sample loader.
func (s *TestCaseStore) InsertSkipDuplicates(ctx context.Context, docs []models.TestCase) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "vuln_id"}}, DoNothing: true}).
		Create(&docs)
	if res.Error != nil {
		return 0, fmt.Errorf("insert test cases: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// Find returns all test cases, optionally filtered by canonical platform
// value, ordered by vuln_id so listings are deterministic.
func (s *TestCaseStore) Find(ctx context.Context, platform string) ([]models.TestCase, error) {
	q := s.db.WithContext(ctx).Order("vuln_id")
	if platform != "" {
		q = q.Where("platform = ?", platform)
	}
	var out []models.TestCase
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("find test cases: %w", err)
	}
	return out, nil
}

// Update merges the supplied fields into the record with the given vuln_id,
// leaving all other columns untouched. Returns whether a record matched; a
// missing key is not an error. An empty patch only checks membership.
func (s *TestCaseStore) Update(ctx context.Context, vulnID string, patch map[string]any) (bool, error) {
	cols := models.PatchColumns(patch)
	if len(cols) == 0 {
		var n int64
		err := s.db.WithContext(ctx).
			Model(&models.TestCase{}).
			Where("vuln_id = ?", vulnID).
			Count(&n).Error
		if err != nil {
			return false, fmt.Errorf("check test case %s: %w", vulnID, err)
		}
		return n > 0, nil
	}

	res := s.db.WithContext(ctx).
		Model(&models.TestCase{}).
		Where("vuln_id = ?", vulnID).
		Updates(cols)
	if res.Error != nil {
		return false, fmt.Errorf("update test case %s: %w", vulnID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Patch is one partial update keyed by vuln_id.
type Patch struct {
	VulnID string
	Fields map[string]any
}

// UpdateResult reports how a batch of patches landed.
type UpdateResult struct {
	Updated  int      `json:"updated"`
	NotFound []string `json:"not_found"`
}

// BatchUpdate applies patches independently. Unmatched keys are collected in
// NotFound rather than aborting the batch.
func (s *TestCaseStore) BatchUpdate(ctx context.Context, patches []Patch) (UpdateResult, error) {
	res := UpdateResult{NotFound: []string{}}
	for _, p := range patches {
		matched, err := s.Update(ctx, p.VulnID, p.Fields)
		if err != nil {
			return res, err
		}
		if matched {
			res.Updated++
		} else {
			res.NotFound = append(res.NotFound, p.VulnID)
		}
	}
	return res, nil
}

// Delete removes every record whose vuln_id is in the key set and returns
// how many were removed. Missing keys simply do not count.
func (s *TestCaseStore) Delete(ctx context.Context, vulnIDs []string) (int64, error) {
	if len(vulnIDs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("vuln_id IN ?", vulnIDs).
		Delete(&models.TestCase{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete test cases: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Ping verifies store connectivity for the health endpoint.
func (s *TestCaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
