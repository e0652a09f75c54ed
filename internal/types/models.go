package types

// CarType is the closed vehicle-category vocabulary the extraction prompt asks for.
type CarType string

const (
	CarTypeSUV        CarType = "SUV"
	CarTypePickup     CarType = "Pickup"
	CarTypeSedan      CarType = "Sedan"
	CarTypeHatch      CarType = "Hatch"
	CarTypeTruck      CarType = "Truck"
	CarTypeBus        CarType = "Bus"
	CarTypeMotorcycle CarType = "Motorcycle"
	CarTypeUndefined  CarType = "Undefined"
	CarTypeOther      CarType = "Other"
)

func (c CarType) Valid() bool {
	switch c {
	case "", CarTypeSUV, CarTypePickup, CarTypeSedan, CarTypeHatch,
		CarTypeTruck, CarTypeBus, CarTypeMotorcycle, CarTypeUndefined, CarTypeOther:
		return true
	}
	return false
}

// DriverInfo is what the model could tell about the driver.
type DriverInfo string

const (
	DriverMale      DriverInfo = "male"
	DriverFemale    DriverInfo = "female"
	DriverUndefined DriverInfo = "undefined"
)

func (d DriverInfo) Valid() bool {
	switch d {
	case "", DriverMale, DriverFemale, DriverUndefined:
		return true
	}
	return false
}

// Severity buckets an infraction as low, med or high.
type Severity string

const (
	SeverityLow  Severity = "low"
	SeverityMed  Severity = "med"
	SeverityHigh Severity = "high"
)

func (s Severity) Valid() bool {
	switch s {
	case "", SeverityLow, SeverityMed, SeverityHigh:
		return true
	}
	return false
}

// InputAudio is one uploaded recording: logical name plus raw bytes.
type InputAudio struct {
	Name string
	Data []byte
}

// StructuredRecord is the canonical per-recording output, persisted as
// processed/<filename>.json. Enum fields carry whatever the model answered;
// callers that care should check Valid().
type StructuredRecord struct {
	CarType               CarType    `json:"car_type"`
	CarModel              string     `json:"car_model"`
	CarColor              string     `json:"car_color"`
	InfractionDescription string     `json:"infraction_description"`
	LicensePlate          string     `json:"license_plate"`
	Location              string     `json:"location"`
	DriverInfo            DriverInfo `json:"driver_info"`
	InfractionSeverity    Severity   `json:"infraction_severity"`
	Transcription         string     `json:"transcription"`
	Filename              string     `json:"filename"`
	RecordingDate         string     `json:"recording_date"`
	MediaCreateDate       string     `json:"media_create_date,omitempty"`
}
