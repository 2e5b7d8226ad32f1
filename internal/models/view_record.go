package models

// ViewRecordModel is one counted view. The (post, fingerprint, day) unique
// index is the authority for at-most-once counting. Rows are append-only.
type ViewRecordModel struct {
	Base
	PostID      string `json:"post_id"     gorm:"size:36;not null;uniqueIndex:idx_view_post_fp_day,priority:1"`
	Fingerprint string `json:"fingerprint" gorm:"size:128;not null;uniqueIndex:idx_view_post_fp_day,priority:2"`
	Day         string `json:"day"         gorm:"size:10;not null;uniqueIndex:idx_view_post_fp_day,priority:3;index"`
	IP          string `json:"ip"          gorm:"size:64"`
	UA          string `json:"ua"          gorm:"type:text"`
	Referrer    string `json:"referrer"    gorm:"type:text"`
	Device      string `json:"device"      gorm:"size:16"`
	Browser     string `json:"browser"     gorm:"size:32"`
	OS          string `json:"os"          gorm:"size:32"`
}

func (ViewRecordModel) TableName() string { return "view_records" }
