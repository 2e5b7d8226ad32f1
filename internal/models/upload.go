package models

// UploadStatus tracks whether an uploaded blob is referenced by saved content.
type UploadStatus string

const (
	UploadPending UploadStatus = "pending"
	UploadActive  UploadStatus = "active"
	// UploadDiscarded marks a key whose blob is being or has been deleted.
	// The row outlives the blob so a late save of the key fails.
	UploadDiscarded UploadStatus = "discarded"
)

// UploadModel is the server-side ledger of uploaded blobs.
type UploadModel struct {
	Base
	Key         string       `json:"key"          gorm:"size:512;uniqueIndex;not null"`
	Folder      string       `json:"folder"       gorm:"size:191;index;not null"`
	FileName    string       `json:"file_name"`
	ContentType string       `json:"content_type" gorm:"size:64"`
	Status      UploadStatus `json:"status"       gorm:"size:16;index;not null;default:'pending'"`
	RefID       string       `json:"ref_id"       gorm:"size:36;index"`
	Size        int64        `json:"size"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
}

func (UploadModel) TableName() string { return "uploads" }
