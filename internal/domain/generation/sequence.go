package generation

import "time"

// SequenceMark records the highest sequence number ever handed out for a log,
// so emptying the log never lets a number be reused.
type SequenceMark struct {
	Name      string    `gorm:"column:name;primaryKey" json:"name"`
	Value     int64     `gorm:"column:value;not null;default:0" json:"value"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (SequenceMark) TableName() string { return "sequence_mark" }
