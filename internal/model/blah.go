package model

import "time"

// Blah 内容主体（发布后由分发器扇入收件箱）
type Blah struct {
	ID        string   `gorm:"primaryKey;type:varchar(36)"`
	AuthorID  string   `gorm:"type:varchar(36);index:idx_blah_author;not null"`
	GroupID   string   `gorm:"type:varchar(36);index:idx_blah_group;not null"`
	TypeID    string   `gorm:"type:varchar(36)"`
	Text      string   `gorm:"type:text"`
	ImageIDs  []string `gorm:"serializer:json"`
	Badged    bool
	// Counters are nullable on purpose: "never set" and "zero" are different
	// things once the blah is snapshotted into an inbox.
	UpVotes   *int64
	DownVotes *int64
	Views     *int64
	Opens     *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Blah) TableName() string { return "blahs" }
