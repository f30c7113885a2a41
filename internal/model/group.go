package model

import "time"

// Group 群组收件箱元数据（只读消费；边界由外部群组管理任务维护）
// The safe bounds cover inboxes no longer receiving concurrent writes; the
// unrestricted bounds include inboxes that may still be filling up. Nil means
// "unknown", which readers treat as 0.
type Group struct {
	ID             string `gorm:"primaryKey;type:varchar(36)"`
	Locale         string `gorm:"type:varchar(8);index:idx_group_locale"`
	Name           string `gorm:"type:varchar(128)"`
	FirstInbox     *int
	LastInbox      *int
	FirstSafeInbox *int
	LastSafeInbox  *int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Group) TableName() string { return "groups" }
