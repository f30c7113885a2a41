package model

import "time"

// InboxState is the cached view of one (group, inbox) pair: the ordered item
// references (newest appended last) plus the highest inbox number known to
// exist for the group at the time of the last update.
type InboxState struct {
	ItemIDs  []string `json:"item_ids"`
	TopInbox int      `json:"top_inbox"`
}

// InboxStateRecord 收件箱状态持久化记录（缓存失效后的权威副本）
// TopInbox 只增不减；Version 用于乐观并发控制（写冲突时重试）。
type InboxStateRecord struct {
	GroupID     string `gorm:"primaryKey;type:varchar(36)"`
	InboxNumber int    `gorm:"primaryKey;autoIncrement:false"`
	ItemIDs     string `gorm:"type:text"` // JSON array of item ids, append-only
	TopInbox    int    `gorm:"not null;default:0"`
	Version     int64  `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (InboxStateRecord) TableName() string { return "inbox_states" }
