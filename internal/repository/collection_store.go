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

// ErrNoCollection reports an insert into a collection that was never created.
var ErrNoCollection = errors.New("collection does not exist")

// FindOrder selects the iteration order over a collection.
type FindOrder int

const (
	// OrderInsertion walks oldest to newest (natural order of numbered inboxes).
	OrderInsertion FindOrder = iota
	// OrderReverse walks newest to oldest (recents feeds).
	OrderReverse
)

// CollectionStore provides named, bounded, insertion-ordered document
// collections. Inserting past the capacity silently evicts the oldest entries.
type CollectionStore interface {
	Exists(ctx context.Context, name string) (bool, error)
	CreateCapped(ctx context.Context, name string, maxItems, maxBytes int64) error
	Insert(ctx context.Context, name string, doc any) error
	Find(ctx context.Context, name string, order FindOrder, limit int) ([]json.RawMessage, error)
}

// InboxCollectionName derives the numbered-inbox collection name. Safe and
// unsafe inboxes live in separate namespaces.
func InboxCollectionName(groupID string, inboxNumber int, safe bool) string {
	if safe {
		return fmt.Sprintf("inbox_safe_%s_%d", groupID, inboxNumber)
	}
	return fmt.Sprintf("inbox_%s_%d", groupID, inboxNumber)
}

// RecentsCollectionName derives the per-group recents collection name.
func RecentsCollectionName(groupID string) string {
	return "recents_" + groupID
}

type collectionStore struct{ db *gorm.DB }

func NewCollectionStore(db *gorm.DB) CollectionStore { return &collectionStore{db: db} }

func (s *collectionStore) Exists(ctx context.Context, name string) (bool, error) {
	var cnt int64
	if err := s.db.WithContext(ctx).
		Model(&model.CappedCollection{}).
		Where("name = ?", name).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (s *collectionStore) CreateCapped(ctx context.Context, name string, maxItems, maxBytes int64) error {
	// 幂等：重复创建不报错
	c := &model.CappedCollection{Name: name, MaxItems: maxItems, MaxBytes: maxBytes}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c).Error
}

func (s *collectionStore) Insert(ctx context.Context, name string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("collection %s: encode doc: %w", name, err)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var coll model.CappedCollection
		if err := tx.Where("name = ?", name).First(&coll).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrNoCollection, name)
			}
			return err
		}
		row := &model.CollectionDoc{Collection: name, Body: string(body), Bytes: int64(len(body))}
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		return enforceCap(tx, &coll)
	})
}

// enforceCap drops the oldest docs until the collection is back under both its
// item and byte budgets. Runs inside the insert transaction.
func enforceCap(tx *gorm.DB, coll *model.CappedCollection) error {
	if coll.MaxItems > 0 {
		var cnt int64
		if err := tx.Model(&model.CollectionDoc{}).
			Where("collection = ?", coll.Name).
			Count(&cnt).Error; err != nil {
			return err
		}
		if over := cnt - coll.MaxItems; over > 0 {
			var seqs []int64
			if err := tx.Model(&model.CollectionDoc{}).
				Where("collection = ?", coll.Name).
				Order("seq ASC").
				Limit(int(over)).
				Pluck("seq", &seqs).Error; err != nil {
				return err
			}
			if err := tx.Where("seq IN ?", seqs).Delete(&model.CollectionDoc{}).Error; err != nil {
				return err
			}
		}
	}
	if coll.MaxBytes > 0 {
		type docSize struct {
			Seq   int64
			Bytes int64
		}
		var rows []docSize
		if err := tx.Model(&model.CollectionDoc{}).
			Select("seq", "bytes").
			Where("collection = ?", coll.Name).
			Order("seq ASC").
			Scan(&rows).Error; err != nil {
			return err
		}
		var total int64
		for _, r := range rows {
			total += r.Bytes
		}
		var evict []int64
		for _, r := range rows {
			if total <= coll.MaxBytes {
				break
			}
			evict = append(evict, r.Seq)
			total -= r.Bytes
		}
		if len(evict) > 0 {
			if err := tx.Where("seq IN ?", evict).Delete(&model.CollectionDoc{}).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *collectionStore) Find(ctx context.Context, name string, order FindOrder, limit int) ([]json.RawMessage, error) {
	sortSpec := "seq ASC"
	if order == OrderReverse {
		sortSpec = "seq DESC"
	}
	q := s.db.WithContext(ctx).
		Model(&model.CollectionDoc{}).
		Where("collection = ?", name).
		Order(sortSpec)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var bodies []string
	if err := q.Pluck("body", &bodies).Error; err != nil {
		return nil, err
	}
	// Only the bodies leave the store; the row seq stays internal.
	out := make([]json.RawMessage, len(bodies))
	for i, b := range bodies {
		out[i] = json.RawMessage(b)
	}
	return out, nil
}
