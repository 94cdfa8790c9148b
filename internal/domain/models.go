package domain

// Device represents one monitored unit reported by the vendor cloud.
// Top-level devices own zero or more sub-devices through Sublist; the tree
// is shallow (two levels) and rebuilt from scratch on every dashboard build.
type Device struct {
	ID         string             `json:"deviceId"`
	Name       string             `json:"deviceName"`
	Category   string             `json:"category"`
	Sublist    []*Device          `json:"sublist,omitempty"`
	LatestData map[string]float64 `json:"latestData"`
	Alarms     []Alarm            `json:"alarms"`
	Error      string             `json:"error,omitempty"`
}

// Alarm is an active alarm attached to a device.
type Alarm struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Level    string `json:"level,omitempty"`
	RaisedAt int64  `json:"raisedAt,omitempty"` // ms epoch
}

// Well-known reading names in a device's latest-data payload.
const (
	ReadingBatteryLevel   = "batteryLevel"
	ReadingBatteryVoltage = "batteryVoltage"
	ReadingSolarWatts     = "solarWatts"
	ReadingSolarAmps      = "solarAmps"
	ReadingSolarVolts     = "solarVolts"
)
