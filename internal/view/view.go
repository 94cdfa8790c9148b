package view

import (
	"math"
	"strconv"

	"solarkiosk/internal/domain"
)

// Location keys shown on the kiosk.
const (
	LocationHouse = "house"
	LocationShed  = "shed"
)

// Gauge colors keyed to the combined battery level.
const (
	ColorGreen  = "green"
	ColorYellow = "yellow"
	ColorRed    = "red"
)

// Circumference of the kiosk's circular gauge stroke (SVG radius 90).
const Circumference = 2 * math.Pi * 90

// Roles maps device naming to display locations. Classification by exact
// name match is brittle but mirrors how the installation labels devices;
// the names are configurable rather than hard-coded.
type Roles struct {
	HouseControllerName string
	ShedControllerName  string
	BatteryCategory     string
}

// DefaultRoles returns the installation's stock device labels.
func DefaultRoles() Roles {
	return Roles{
		HouseControllerName: "Controller House",
		ShedControllerName:  "Controller Shed",
		BatteryCategory:     "Battery",
	}
}

// Model is the full kiosk view model, one entry per location.
type Model struct {
	Locations map[string]*Location `json:"locations"`
}

// Location is the display state for one location.
type Location struct {
	Key           string    `json:"key"`
	Solar         *Solar    `json:"solar"` // nil renders the placeholder dash
	Batteries     []Battery `json:"batteries"`
	CombinedLevel float64   `json:"combinedLevel"`
	Color         string    `json:"color"`
	GaugeOffset   float64   `json:"gaugeOffset"`
}

// Solar carries the controller's solar readings formatted for display.
type Solar struct {
	Watts string `json:"watts"`
	Amps  string `json:"amps"`
	Volts string `json:"volts"`
}

// Battery is one battery's display row.
type Battery struct {
	Name    string `json:"name"`
	Level   int    `json:"level"`
	Voltage string `json:"voltage"`
}

// Build derives the kiosk view model from the dashboard payload. Exactly one
// top-level hub is expected; its children are classified into the house and
// shed locations, with all batteries grouped under the house.
func Build(devices []*domain.Device, roles Roles) Model {
	model := Model{Locations: map[string]*Location{
		LocationHouse: newLocation(LocationHouse),
		LocationShed:  newLocation(LocationShed),
	}}

	hub := findHub(devices)
	if hub == nil {
		return model
	}

	house := model.Locations[LocationHouse]
	shed := model.Locations[LocationShed]

	var batteries []*domain.Device
	for _, child := range hub.Sublist {
		switch {
		case child.Name == roles.HouseControllerName:
			house.Solar = solarFor(child)
		case child.Name == roles.ShedControllerName:
			shed.Solar = solarFor(child)
		case child.Category == roles.BatteryCategory:
			batteries = append(batteries, child)
		}
	}

	for _, bat := range batteries {
		house.Batteries = append(house.Batteries, Battery{
			Name:    bat.Name,
			Level:   int(math.Round(reading(bat, domain.ReadingBatteryLevel))),
			Voltage: formatReading(reading(bat, domain.ReadingBatteryVoltage)),
		})
	}

	house.CombinedLevel = CombinedBatteryLevel(batteries)
	house.Color = LevelColor(house.CombinedLevel)
	house.GaugeOffset = GaugeOffset(house.CombinedLevel)

	return model
}

// CombinedBatteryLevel is the arithmetic mean of batteryLevel across all
// batteries that report one, 0 when none do.
func CombinedBatteryLevel(batteries []*domain.Device) float64 {
	var sum float64
	var count int
	for _, bat := range batteries {
		if level, ok := bat.LatestData[domain.ReadingBatteryLevel]; ok {
			sum += level
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// LevelColor maps a percentage to the gauge color: >=50 green, 25-49 yellow,
// below 25 red.
func LevelColor(percent float64) string {
	switch {
	case percent >= 50:
		return ColorGreen
	case percent >= 25:
		return ColorYellow
	default:
		return ColorRed
	}
}

// GaugeOffset maps a percentage to the gauge's stroke-dashoffset: 0 maps to
// the full circumference, 100 to zero.
func GaugeOffset(percent float64) float64 {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return Circumference * (1 - percent/100)
}

func newLocation(key string) *Location {
	return &Location{
		Key:           key,
		Batteries:     []Battery{},
		Color:         LevelColor(0),
		GaugeOffset:   GaugeOffset(0),
		CombinedLevel: 0,
	}
}

// findHub picks the single expected top-level device.
func findHub(devices []*domain.Device) *domain.Device {
	if len(devices) == 0 {
		return nil
	}
	return devices[0]
}

// solarFor formats a controller's solar readings, each defaulting to 0 when
// absent. A controller with no data at all yields nil, which the kiosk
// renders as a dash.
func solarFor(controller *domain.Device) *Solar {
	if controller == nil || len(controller.LatestData) == 0 {
		return nil
	}
	return &Solar{
		Watts: formatReading(reading(controller, domain.ReadingSolarWatts)),
		Amps:  formatReading(reading(controller, domain.ReadingSolarAmps)),
		Volts: formatReading(reading(controller, domain.ReadingSolarVolts)),
	}
}

func reading(dev *domain.Device, name string) float64 {
	if dev.LatestData == nil {
		return 0
	}
	return dev.LatestData[name]
}

// formatReading renders a reading with one decimal place.
func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
