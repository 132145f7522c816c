package models

// ParamID names a monitored engine parameter
type ParamID string

const (
	ParamRPM         ParamID = "RPM"
	ParamSpeed       ParamID = "Speed"
	ParamCoolantTemp ParamID = "Coolant_Temp"
	ParamMAP         ParamID = "MAP"
	ParamIAT         ParamID = "IAT"
	ParamThrottle    ParamID = "Throttle"
	ParamMAF         ParamID = "MAF"
	ParamTiming      ParamID = "Timing_Advance"
	ParamO2B1S1      ParamID = "O2_B1S1"
	ParamO2B2S1      ParamID = "O2_B2S1"
)

// Param defines a single mode 01 parameter and how to decode it.
// The physical value is raw*Scale + Offset2, where raw is the first
// one (uint8) or two (uint16, big endian) data bytes of the response.
type Param struct {
	ID          ParamID
	Name        string
	PID         byte
	DataType    string // uint8, uint16
	Scale       float64
	Offset2     float64
	Unit        string
	Description string
	MinValue    float64
	MaxValue    float64
}

// Params is the fixed list polled on every tick, in log column order
var Params = []Param{
	{
		ID:          ParamRPM,
		Name:        "Engine RPM",
		PID:         0x0C,
		DataType:    "uint16",
		Scale:       0.25,
		Unit:        "rpm",
		Description: "Engine speed",
		MinValue:    800,
		MaxValue:    6000,
	},
	{
		ID:          ParamSpeed,
		Name:        "Vehicle Speed",
		PID:         0x0D,
		DataType:    "uint8",
		Scale:       1,
		Unit:        "km/h",
		Description: "Vehicle speed",
		MinValue:    0,
		MaxValue:    120,
	},
	{
		ID:          ParamCoolantTemp,
		Name:        "Coolant Temp",
		PID:         0x05,
		DataType:    "uint8",
		Scale:       1,
		Offset2:     -40,
		Unit:        "°C",
		Description: "Engine coolant temperature",
		MinValue:    80,
		MaxValue:    95,
	},
	{
		ID:          ParamMAP,
		Name:        "MAP",
		PID:         0x0B,
		DataType:    "uint8",
		Scale:       1,
		Unit:        "kPa",
		Description: "Intake manifold absolute pressure",
		MinValue:    20,
		MaxValue:    100,
	},
	{
		ID:          ParamIAT,
		Name:        "Intake Temp",
		PID:         0x0F,
		DataType:    "uint8",
		Scale:       1,
		Offset2:     -40,
		Unit:        "°C",
		Description: "Intake air temperature",
		MinValue:    20,
		MaxValue:    60,
	},
	{
		ID:          ParamThrottle,
		Name:        "Throttle",
		PID:         0x11,
		DataType:    "uint8",
		Scale:       100.0 / 255.0,
		Unit:        "%",
		Description: "Absolute throttle position",
		MinValue:    0,
		MaxValue:    100,
	},
	{
		ID:          ParamMAF,
		Name:        "MAF",
		PID:         0x10,
		DataType:    "uint16",
		Scale:       0.01,
		Unit:        "g/s",
		Description: "Mass air flow rate",
		MinValue:    3,
		MaxValue:    45,
	},
	{
		ID:          ParamTiming,
		Name:        "Timing Advance",
		PID:         0x0E,
		DataType:    "uint8",
		Scale:       0.5,
		Offset2:     -64,
		Unit:        "°",
		Description: "Ignition timing advance before TDC",
		MinValue:    -5,
		MaxValue:    35,
	},
	{
		ID:          ParamO2B1S1,
		Name:        "O2 B1S1",
		PID:         0x14,
		DataType:    "uint8",
		Scale:       0.005,
		Unit:        "V",
		Description: "Oxygen sensor bank 1 sensor 1 voltage",
		MinValue:    0.1,
		MaxValue:    0.9,
	},
	{
		ID:          ParamO2B2S1,
		Name:        "O2 B2S1",
		PID:         0x18,
		DataType:    "uint8",
		Scale:       0.005,
		Unit:        "V",
		Description: "Oxygen sensor bank 2 sensor 1 voltage",
		MinValue:    0.1,
		MaxValue:    0.9,
	},
}

// ParamByID returns the definition for id
func ParamByID(id ParamID) (Param, bool) {
	for _, p := range Params {
		if p.ID == id {
			return p, true
		}
	}
	return Param{}, false
}

// IsO2 reports whether id is an oxygen sensor reading
func (id ParamID) IsO2() bool {
	return id == ParamO2B1S1 || id == ParamO2B2S1
}
