package utils

import "time"

// =============================================================================
// Sampling Constants
// =============================================================================

const (
	// DefaultSamplePeriod is the cadence between raw samples of a setpoint
	DefaultSamplePeriod = 200 * time.Millisecond

	// DefaultUpdatePeriod is how often sampling progress is echoed to the operator
	DefaultUpdatePeriod = time.Second

	// DefaultNumberOfSamples is the length of one sampling pass
	DefaultNumberOfSamples = 30

	// DefaultBeginKey starts a sampling pass; DefaultRepeatKey repeats one
	DefaultBeginKey  = ' '
	DefaultRepeatKey = ' '
)

// =============================================================================
// Calibration Constants
// =============================================================================

const (
	// DefaultIntervalDays is the calibration validity interval given to new sensors
	DefaultIntervalDays = 180

	// DegenerateSlope replaces the slope of a fit whose x-span is zero
	DegenerateSlope = 0.00001

	// NernstSlopeMV is the ideal pH electrode slope at 25 Celsius in mV/pH
	NernstSlopeMV = 59.16

	// KelvinOffset is the freezing point of water in Kelvin
	KelvinOffset = 273.15
)

// =============================================================================
// Document Constants
// =============================================================================

const (
	// DefaultDocumentName is the base name of the persisted sensor document
	DefaultDocumentName = "coefficients"

	// DocumentSuffix is appended to document names lacking it
	DocumentSuffix = ".toml"

	// ArchiveSuffix marks compressed document snapshots
	ArchiveSuffix = ".sz"

	// DateLayout is the ISO date layout used for calibration timestamps
	DateLayout = "2006-01-02"

	// SaveStampLayout is the layout of the advisory save time at the document root
	SaveStampLayout = "2006-01-02T15:04:05"
)
