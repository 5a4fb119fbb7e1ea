package history

import "time"

// Run is one recorded top-level run.
type Run struct {
	ID             string `gorm:"primaryKey;size:36"`
	Engine         string `gorm:"size:255;index"`
	Status         string `gorm:"size:16;index"` // success, failure
	Attempts       int
	FailedAttempts int
	TotalTokens    int
	ElapsedMS      int64
	// Inputs and Output are YAML documents.
	Inputs    string `gorm:"type:text"`
	Output    string `gorm:"type:text"`
	Error     string `gorm:"type:text"`
	ErrorKind string `gorm:"size:32"`
	StartedAt time.Time `gorm:"index"`
	CreatedAt time.Time

	Failures []Failure `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// TableName implements gorm's tabler.
func (Run) TableName() string { return "structgenie_runs" }

// Failure is one failed attempt of a run.
type Failure struct {
	ID      uint   `gorm:"primaryKey"`
	RunID   string `gorm:"size:36;index"`
	Attempt int
	Kind    string `gorm:"size:32"`
	Message string `gorm:"type:text"`
}

// TableName implements gorm's tabler.
func (Failure) TableName() string { return "structgenie_failures" }
