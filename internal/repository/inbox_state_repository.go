package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/blahbox/internal/model"
)

// stateWriteRetries bounds the optimistic-concurrency loop on appends.
const stateWriteRetries = 8

// ErrStateConflict reports a persistent state append that kept losing the
// version race past its retry budget.
var ErrStateConflict = errors.New("inbox state write conflict, retries exhausted")

// InboxStateRepository owns the authoritative copy of per-(group, inbox)
// state. The cache holds a best-effort view of the same records.
type InboxStateRepository interface {
	// Append adds an item reference to (groupID, inboxNumber), creating the
	// record on first use. TopInbox never decreases. Concurrent writers are
	// serialized by version-checked updates with retries.
	Append(ctx context.Context, groupID string, inboxNumber int, itemID string) error
	Get(ctx context.Context, groupID string, inboxNumber int) (*model.InboxState, error)
}

type inboxStateRepository struct{ db *gorm.DB }

func NewInboxStateRepository(db *gorm.DB) InboxStateRepository {
	return &inboxStateRepository{db: db}
}

func (r *inboxStateRepository) Append(ctx context.Context, groupID string, inboxNumber int, itemID string) error {
	for attempt := 0; attempt < stateWriteRetries; attempt++ {
		var rec model.InboxStateRecord
		err := r.db.WithContext(ctx).
			Where("group_id = ? AND inbox_number = ?", groupID, inboxNumber).
			First(&rec).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			ids, _ := json.Marshal([]string{itemID})
			rec = model.InboxStateRecord{
				GroupID:     groupID,
				InboxNumber: inboxNumber,
				ItemIDs:     string(ids),
				TopInbox:    inboxNumber,
				Version:     1,
			}
			res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				return nil
			}
			// lost the create race, reload and append instead
			continue
		}
		if err != nil {
			return err
		}

		var ids []string
		if rec.ItemIDs != "" {
			if uErr := json.Unmarshal([]byte(rec.ItemIDs), &ids); uErr != nil {
				return fmt.Errorf("decode inbox state %s/%d: %w", groupID, inboxNumber, uErr)
			}
		}
		ids = append(ids, itemID)
		encoded, _ := json.Marshal(ids)
		top := rec.TopInbox
		if inboxNumber > top {
			top = inboxNumber
		}

		res := r.db.WithContext(ctx).
			Model(&model.InboxStateRecord{}).
			Where("group_id = ? AND inbox_number = ? AND version = ?", groupID, inboxNumber, rec.Version).
			Updates(map[string]any{
				"item_ids":  string(encoded),
				"top_inbox": top,
				"version":   rec.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			return nil
		}
		// a concurrent append advanced the version, re-read and retry
	}
	return fmt.Errorf("%w: %s/%d", ErrStateConflict, groupID, inboxNumber)
}

func (r *inboxStateRepository) Get(ctx context.Context, groupID string, inboxNumber int) (*model.InboxState, error) {
	var rec model.InboxStateRecord
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND inbox_number = ?", groupID, inboxNumber).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st := &model.InboxState{TopInbox: rec.TopInbox}
	if rec.ItemIDs != "" {
		if uErr := json.Unmarshal([]byte(rec.ItemIDs), &st.ItemIDs); uErr != nil {
			return nil, fmt.Errorf("decode inbox state %s/%d: %w", groupID, inboxNumber, uErr)
		}
	}
	return st, nil
}
