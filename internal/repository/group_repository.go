package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/blahbox/internal/model"
)

// GroupRepository exposes group inbox metadata to the reader. The bounds are
// maintained elsewhere; this side only consumes them.
type GroupRepository interface {
	// GetGroup returns the group's metadata, or (nil, nil) when unknown.
	GetGroup(ctx context.Context, groupID string) (*model.Group, error)
	// GetGroupByID is the authoritative refresh path used by the reader's
	// self-healing fallback: it re-reads the group scoped to its locale.
	GetGroupByID(ctx context.Context, locale, groupID string) (*model.Group, error)
	Upsert(ctx context.Context, g *model.Group) error
}

type groupRepository struct{ db *gorm.DB }

func NewGroupRepository(db *gorm.DB) GroupRepository { return &groupRepository{db: db} }

func (r *groupRepository) GetGroup(ctx context.Context, groupID string) (*model.Group, error) {
	var g model.Group
	err := r.db.WithContext(ctx).Where("id = ?", groupID).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *groupRepository) GetGroupByID(ctx context.Context, locale, groupID string) (*model.Group, error) {
	var g model.Group
	err := r.db.WithContext(ctx).Where("id = ? AND locale = ?", groupID, locale).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *groupRepository) Upsert(ctx context.Context, g *model.Group) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(g).Error
}
