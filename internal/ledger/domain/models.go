// Package domain defines the cement bag ledger rows and the store contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// BagStatus is the lifecycle state of a bag.
type BagStatus string

const (
	BagStatusProduced BagStatus = "PRODUCED"
	BagStatusUsed     BagStatus = "USED"
)

// PhotoFlag records whether a usage event carried photographic evidence.
type PhotoFlag string

const (
	PhotoFlagPresent PhotoFlag = "HAS_PHOTO"
	PhotoFlagAbsent  PhotoFlag = "NO_PHOTO"
)

// Bag is one produced bag. RowID orders rows by insertion.
type Bag struct {
	RowID         snowflake.ID `gorm:"column:row_id;primaryKey;autoIncrement:false" json:"-"`
	BagID         string       `gorm:"column:bag_id;type:varchar(128);not null;index" json:"bag_id"`
	BatchNo       string       `gorm:"column:batch_no;type:varchar(128);not null" json:"batch_no"`
	PlantID       string       `gorm:"column:plant_id;type:varchar(64);not null" json:"plant_id"`
	CreatedAt     time.Time    `gorm:"column:created_at;not null" json:"created_at"`
	Status        BagStatus    `gorm:"column:status;type:varchar(16);not null" json:"status"`
	CurrentSiteID string       `gorm:"column:current_site_id;type:varchar(128);not null;default:''" json:"current_site_id"`
}

// TableName sets the database table name.
func (Bag) TableName() string { return "bags" }

// UsageRecord is one consumption event against a bag.
type UsageRecord struct {
	RowID     snowflake.ID      `gorm:"column:row_id;primaryKey;autoIncrement:false" json:"-"`
	UsageID   string            `gorm:"column:usage_id;type:varchar(64);not null" json:"usage_id"`
	BagID     string            `gorm:"column:bag_id;type:varchar(128);not null;index" json:"bag_id"`
	WorkerID  string            `gorm:"column:worker_id;type:varchar(128);not null" json:"worker_id"`
	SiteID    string            `gorm:"column:site_id;type:varchar(128);not null" json:"site_id"`
	Timestamp time.Time         `gorm:"column:timestamp;not null" json:"timestamp"`
	PhotoFlag PhotoFlag         `gorm:"column:photo_flag;type:varchar(16);not null" json:"photo_flag"`
	Metadata  datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }
