package database

// Observation identifies the observation a File belongs to. The record
// is created on demand when a file resolving against a store references
// an obsid the catalog has not seen yet; the time fields are opaque
// astronomical metadata (Julian dates, local sidereal time) carried for
// downstream consumers and not interpreted here.
type Observation struct {
	ObsID    int64    `gorm:"column:obsid;primaryKey" json:"obsid"`
	StartJD  float64  `gorm:"column:start_jd" json:"start_jd"`
	StopJD   *float64 `gorm:"column:stop_jd" json:"stop_jd,omitempty"`
	LSTStart float64  `gorm:"column:lst_start" json:"lst_start"`
}

// TableName gives the Observation table name.
func (Observation) TableName() string {
	return "observation"
}
