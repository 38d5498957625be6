package model

// CropProfile is catalog reference data. The reminder pipeline only reads it.
type CropProfile struct {
	Base
	Name                 string `json:"name" db:"name"`
	ScientificName       string `json:"scientific_name,omitempty" db:"scientific_name"`
	GrowingPeriodDays    int    `json:"growing_period_days" db:"growing_period_days"`
	WateringIntervalDays int    `json:"watering_interval_days" db:"watering_interval_days"`
}
