// Package config carries the building, timing and dispatch parameters.
// Values come from defaults, overridden by an optional YAML file, then by
// an optional .env file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/joho/godotenv"
)

type Config struct {
	// Building
	Floors           int `yaml:"Floors"`
	ElevatorsCount   int `yaml:"ElevatorsCount"`
	ElevatorCapacity int `yaml:"ElevatorCapacity"`

	// Timings, in simulated time
	TimeMoveOneFloor time.Duration `yaml:"TimeMoveOneFloor"`
	TimeDoors        time.Duration `yaml:"TimeDoors"`
	TimeBoarding     time.Duration `yaml:"TimeBoarding"`

	// Route limits
	MaxPlannedStops          int `yaml:"MaxPlannedStops"`
	ReserveReverseSoonFloors int `yaml:"ReserveReverseSoonFloors"`

	// En-route pickup ("steal") behaviour
	EnroutePickupEnabled            bool `yaml:"EnroutePickupEnabled"`
	EnrouteStealMinAssignedDistance int  `yaml:"EnrouteStealMinAssignedDistance"`

	// Reassignment hysteresis
	CallReassignCooldown       time.Duration `yaml:"CallReassignCooldown"`
	CallReassignMinImprovement int           `yaml:"CallReassignMinImprovement"`

	// Soft zoning: car 1 covers the low zone, car 2 the high zone, any
	// further car is a swing car covering the whole building.
	ZoningEnabled   bool `yaml:"ZoningEnabled"`
	ZoneSplitFloor  int  `yaml:"ZoneSplitFloor"`
	ZoneSoftPenalty int  `yaml:"ZoneSoftPenalty"`

	// Dispatcher tuning
	NoElevatorLogCooldown time.Duration `yaml:"NoElevatorLogCooldown"`
	DispatcherEventBatch  int           `yaml:"DispatcherEventBatch"`

	// Generator and shutdown
	PassengerLimit     int           `yaml:"PassengerLimit"`
	RequestIntervalMin time.Duration `yaml:"RequestIntervalMin"`
	RequestIntervalMax time.Duration `yaml:"RequestIntervalMax"`
	DrainTimeout       time.Duration `yaml:"DrainTimeout"`
}

func Default() *Config {
	return &Config{
		Floors:           15,
		ElevatorsCount:   3,
		ElevatorCapacity: 5,

		TimeMoveOneFloor: 800 * time.Millisecond,
		TimeDoors:        500 * time.Millisecond,
		TimeBoarding:     200 * time.Millisecond,

		MaxPlannedStops:          20,
		ReserveReverseSoonFloors: 3,

		EnroutePickupEnabled:            true,
		EnrouteStealMinAssignedDistance: 3,

		CallReassignCooldown:       1500 * time.Millisecond,
		CallReassignMinImprovement: 12,

		ZoningEnabled:   true,
		ZoneSplitFloor:  0, // derived from Floors in normalize
		ZoneSoftPenalty: 10,

		NoElevatorLogCooldown: 1500 * time.Millisecond,
		DispatcherEventBatch:  64,

		PassengerLimit:     30,
		RequestIntervalMin: 500 * time.Millisecond,
		RequestIntervalMax: 1200 * time.Millisecond,
		DrainTimeout:       3 * time.Minute,
	}
}

// Load builds the effective config: defaults, then the YAML file at path
// (skipped when absent), then .env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if file, err := os.Open(path); err == nil {
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
				return nil, err
			}
		}
	}

	if env, err := godotenv.Read(".env"); err == nil {
		cfg.applyEnv(env)
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnv(env map[string]string) {
	setInt(env, "FLOORS", &c.Floors)
	setInt(env, "ELEVATORS_COUNT", &c.ElevatorsCount)
	setInt(env, "ELEVATOR_CAPACITY", &c.ElevatorCapacity)
	setMs(env, "TIME_MOVE_ONE_FLOOR", &c.TimeMoveOneFloor)
	setMs(env, "TIME_DOORS", &c.TimeDoors)
	setMs(env, "TIME_BOARDING", &c.TimeBoarding)
	setInt(env, "MAX_PLANNED_STOPS", &c.MaxPlannedStops)
	setInt(env, "RESERVE_REVERSE_SOON_FLOORS", &c.ReserveReverseSoonFloors)
	setBool(env, "ENROUTE_PICKUP_ENABLED", &c.EnroutePickupEnabled)
	setInt(env, "ENROUTE_STEAL_MIN_ASSIGNED_DISTANCE", &c.EnrouteStealMinAssignedDistance)
	setMs(env, "CALL_REASSIGN_COOLDOWN_MS", &c.CallReassignCooldown)
	setInt(env, "CALL_REASSIGN_MIN_IMPROVEMENT", &c.CallReassignMinImprovement)
	setBool(env, "ZONING_ENABLED", &c.ZoningEnabled)
	setInt(env, "ZONE_SPLIT_FLOOR", &c.ZoneSplitFloor)
	setInt(env, "ZONE_SOFT_PENALTY", &c.ZoneSoftPenalty)
	setMs(env, "NO_ELEVATOR_LOG_COOLDOWN_MS", &c.NoElevatorLogCooldown)
	setInt(env, "DISPATCHER_EVENT_BATCH", &c.DispatcherEventBatch)
	setInt(env, "PASSENGER_LIMIT", &c.PassengerLimit)
	setMs(env, "REQUEST_INTERVAL_MIN", &c.RequestIntervalMin)
	setMs(env, "REQUEST_INTERVAL_MAX", &c.RequestIntervalMax)
	setMs(env, "DRAIN_TIMEOUT_MS", &c.DrainTimeout)
}

func (c *Config) normalize() {
	if c.ZoneSplitFloor <= 0 {
		c.ZoneSplitFloor = (c.Floors + 1) / 2
	}
	if c.RequestIntervalMax < c.RequestIntervalMin {
		c.RequestIntervalMax = c.RequestIntervalMin
	}
}

// SwingElevatorID is the id of the car exempt from zoning, -1 when there
// are fewer than three cars.
func (c *Config) SwingElevatorID() int {
	if c.ElevatorsCount >= 3 {
		return c.ElevatorsCount
	}
	return -1
}

func (c *Config) ZoneMinFloor(elevatorID int) int {
	if !c.ZoningEnabled || elevatorID == c.SwingElevatorID() {
		return 1
	}
	if c.ElevatorsCount >= 2 && elevatorID == 2 {
		return c.ZoneSplitFloor
	}
	return 1
}

func (c *Config) ZoneMaxFloor(elevatorID int) int {
	if !c.ZoningEnabled || elevatorID == c.SwingElevatorID() {
		return c.Floors
	}
	if c.ElevatorsCount >= 2 && elevatorID == 1 {
		return c.ZoneSplitFloor
	}
	return c.Floors
}

// ZonePenalty is the soft cost added when callFloor lies outside the
// car's preferred zone.
func (c *Config) ZonePenalty(elevatorID, callFloor int) int {
	if !c.ZoningEnabled {
		return 0
	}
	if callFloor < c.ZoneMinFloor(elevatorID) || callFloor > c.ZoneMaxFloor(elevatorID) {
		return c.ZoneSoftPenalty
	}
	return 0
}

func setInt(env map[string]string, key string, dst *int) {
	if raw, ok := env[key]; ok {
		if v, err := strconv.Atoi(raw); err == nil {
			*dst = v
		}
	}
}

func setBool(env map[string]string, key string, dst *bool) {
	if raw, ok := env[key]; ok {
		if v, err := strconv.ParseBool(raw); err == nil {
			*dst = v
		}
	}
}

func setMs(env map[string]string, key string, dst *time.Duration) {
	if raw, ok := env[key]; ok {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			*dst = time.Duration(v) * time.Millisecond
		}
	}
}
