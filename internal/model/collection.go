package model

import "time"

// CappedCollection 有界集合注册表（容量配置，按名字寻址）
type CappedCollection struct {
	Name      string `gorm:"primaryKey;type:varchar(128)"`
	MaxItems  int64  `gorm:"not null;default:0"`
	MaxBytes  int64  `gorm:"not null;default:0"`
	CreatedAt time.Time
}

func (CappedCollection) TableName() string { return "capped_collections" }

// CollectionDoc one document inside a capped collection. Seq is the insertion
// order and is an implementation artifact: it never leaves the repository.
type CollectionDoc struct {
	Seq        int64  `gorm:"primaryKey;autoIncrement"`
	Collection string `gorm:"type:varchar(128);index:idx_doc_collection;not null"`
	Body       string `gorm:"type:text"`
	Bytes      int64  `gorm:"not null;default:0"`
	CreatedAt  time.Time
}

func (CollectionDoc) TableName() string { return "collection_docs" }
