package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/d60-Lab/blahbox/internal/model"
)

type BlahRepository interface {
	Create(ctx context.Context, b *model.Blah) error
	GetByID(ctx context.Context, id string) (*model.Blah, error)
}

type blahRepository struct{ db *gorm.DB }

func NewBlahRepository(db *gorm.DB) BlahRepository { return &blahRepository{db: db} }

func (r *blahRepository) Create(ctx context.Context, b *model.Blah) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *blahRepository) GetByID(ctx context.Context, id string) (*model.Blah, error) {
	var b model.Blah
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}
