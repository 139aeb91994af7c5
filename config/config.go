package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const CONFILE = "config.yml"

// Pattern selects the stimulus driver.
type Pattern string

const (
	LuminanceMixture Pattern = "luminanceMixture"
	Continuous       Pattern = "continuous"
	Wobble           Pattern = "wobble"
)

// Direction selects the movement axis and the initial camera pose.
type Direction string

const (
	Right   Direction = "right"
	Forward Direction = "forward"
)

var validPatterns = map[Pattern]bool{
	LuminanceMixture: true,
	Continuous:       true,
	Wobble:           true,
}

var validDirections = map[Direction]bool{
	Right:   true,
	Forward: true,
}

type Config struct {
	Session SessionConfig `yaml:"Session"`
	Sensor  SensorConfig  `yaml:"Sensor"`
	Host    HostConfig    `yaml:"Host"`
	Logging struct {
		Monitor LogConfig `yaml:"Monitor"`
		Plain   LogConfig `yaml:"Plain"`
	} `yaml:"Logging"`
	Web WebConfig `yaml:"Web"`
}

// SessionConfig is immutable for the duration of one run.
type SessionConfig struct {
	Pattern        Pattern       `yaml:"Pattern" json:"Pattern"`
	Direction      Direction     `yaml:"Direction" json:"Direction"`
	CameraSpeed    float64       `yaml:"CameraSpeed" json:"CameraSpeed"`
	DisplayRate    float64       `yaml:"DisplayRate" json:"DisplayRate"`
	BufferDuration time.Duration `yaml:"BufferDuration" json:"BufferDuration"`
	TrialDuration  time.Duration `yaml:"TrialDuration" json:"TrialDuration"`
	RecordDuration time.Duration `yaml:"RecordDuration" json:"RecordDuration"`
	Participant    string        `yaml:"Participant" json:"Participant"`
	TrialNumber    int           `yaml:"TrialNumber" json:"TrialNumber"`
	OutputDir      string        `yaml:"OutputDir" json:"OutputDir"`
}

// UpdateInterval is the time between two discrete stimulus frames.
func (s SessionConfig) UpdateInterval() float64 {
	return 1 / s.DisplayRate
}

// CaptureIntervalDistance is the distance a camera travels per discrete frame.
func (s SessionConfig) CaptureIntervalDistance() float64 {
	return s.CameraSpeed / s.DisplayRate
}

type SensorConfig struct {
	Enabled      bool             `yaml:"Enabled"`
	Simulate     bool             `yaml:"Simulate"`
	Port         string           `yaml:"Port"`
	BaudRate     int              `yaml:"BaudRate"`
	DataBits     int              `yaml:"DataBits"`
	StopBits     int              `yaml:"StopBits"`
	Parity       string           `yaml:"Parity"`
	ReadTimeout  time.Duration    `yaml:"ReadTimeout"`
	LoopDelay    time.Duration    `yaml:"LoopDelay"`
	JoinTimeout  time.Duration    `yaml:"JoinTimeout"`
	DefaultValue float64          `yaml:"DefaultValue"`
	Simulation   SimulationConfig `yaml:"Simulation"`
}

// SimulationConfig shapes the readings produced by the simulated port.
type SimulationConfig struct {
	Mean      float64       `yaml:"Mean"`
	Amplitude float64       `yaml:"Amplitude"`
	Period    time.Duration `yaml:"Period"`
	Interval  time.Duration `yaml:"Interval"`
}

type HostConfig struct {
	TickRate     float64       `yaml:"TickRate"`
	ResponseGPIO int           `yaml:"ResponseGPIO"`
	ResponseHold time.Duration `yaml:"ResponseHold"`
}

type LogConfig struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

type WebConfig struct {
	Enabled bool   `yaml:"Enabled"`
	Address string `yaml:"Address"`
}

// ReadConfig decodes and validates the YAML file at cfile. Unset values
// are filled with defaults before validation.
func ReadConfig(cfile string) (*Config, error) {
	f, err := os.Open(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't open config file %s: %w", cfile, err)
	}
	defer f.Close()

	var conf Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&conf); err != nil {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	conf.applyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return &conf, nil
}

func (c *Config) applyDefaults() {
	if c.Session.Pattern == "" {
		c.Session.Pattern = Continuous
	}
	if c.Session.Direction == "" {
		c.Session.Direction = Right
	}
	if c.Session.DisplayRate == 0 {
		c.Session.DisplayRate = 10
	}
	if c.Session.TrialDuration == 0 {
		c.Session.TrialDuration = 180 * time.Second
	}
	if c.Session.RecordDuration == 0 {
		c.Session.RecordDuration = time.Second
	}
	if c.Session.OutputDir == "" {
		c.Session.OutputDir = "."
	}
	if c.Sensor.BaudRate == 0 {
		c.Sensor.BaudRate = 115200
	}
	if c.Sensor.ReadTimeout == 0 {
		c.Sensor.ReadTimeout = 50 * time.Millisecond
	}
	if c.Sensor.LoopDelay == 0 {
		c.Sensor.LoopDelay = 5 * time.Millisecond
	}
	if c.Sensor.JoinTimeout == 0 {
		c.Sensor.JoinTimeout = 10 * c.Sensor.ReadTimeout
	}
	if c.Sensor.Simulation.Period == 0 {
		c.Sensor.Simulation.Period = 4 * time.Second
	}
	if c.Sensor.Simulation.Interval == 0 {
		c.Sensor.Simulation.Interval = 20 * time.Millisecond
	}
	if c.Host.TickRate == 0 {
		c.Host.TickRate = 60
	}
	if c.Host.ResponseHold == 0 {
		c.Host.ResponseHold = 150 * time.Millisecond
	}
	if c.Web.Address == "" {
		c.Web.Address = "localhost:8080"
	}
}

// Validate checks the whole configuration and reports the first problem found.
func (c *Config) Validate() error {
	if err := c.Session.Validate(); err != nil {
		return err
	}
	s := c.Sensor
	if s.Enabled && !s.Simulate && strings.TrimSpace(s.Port) == "" {
		return fmt.Errorf("Sensor.Port must be set when the sensor is enabled and not simulated")
	}
	if s.BaudRate < 0 {
		return fmt.Errorf("Sensor.BaudRate must not be negative, got %d", s.BaudRate)
	}
	if s.ReadTimeout <= 0 || s.ReadTimeout > time.Second {
		return fmt.Errorf("Sensor.ReadTimeout must be between 0 and 1s, got %s", s.ReadTimeout)
	}
	if s.LoopDelay < 0 {
		return fmt.Errorf("Sensor.LoopDelay must not be negative, got %s", s.LoopDelay)
	}
	if s.JoinTimeout < s.ReadTimeout {
		return fmt.Errorf("Sensor.JoinTimeout (%s) must be at least Sensor.ReadTimeout (%s)", s.JoinTimeout, s.ReadTimeout)
	}
	if s.Simulate && s.Simulation.Interval <= 0 {
		return fmt.Errorf("Sensor.Simulation.Interval must be positive, got %s", s.Simulation.Interval)
	}
	if c.Host.TickRate <= 0 {
		return fmt.Errorf("Host.TickRate must be positive, got %f", c.Host.TickRate)
	}
	if c.Host.ResponseGPIO < 0 || c.Host.ResponseGPIO > 27 {
		return fmt.Errorf("Host.ResponseGPIO must be between 0 and 27, got %d", c.Host.ResponseGPIO)
	}
	return nil
}

// Validate checks the runtime editable part of the configuration.
func (s SessionConfig) Validate() error {
	if !validPatterns[s.Pattern] {
		return fmt.Errorf("unknown Session.Pattern %q, must be one of %s", s.Pattern, names(validPatterns))
	}
	if !validDirections[s.Direction] {
		return fmt.Errorf("unknown Session.Direction %q, must be one of %s", s.Direction, names(validDirections))
	}
	if s.CameraSpeed < 0 {
		return fmt.Errorf("Session.CameraSpeed must not be negative, got %f", s.CameraSpeed)
	}
	if s.DisplayRate <= 0 {
		return fmt.Errorf("Session.DisplayRate must be positive, got %f", s.DisplayRate)
	}
	if s.BufferDuration < 0 {
		return fmt.Errorf("Session.BufferDuration must not be negative, got %s", s.BufferDuration)
	}
	if s.TrialDuration <= 0 {
		return fmt.Errorf("Session.TrialDuration must be positive, got %s", s.TrialDuration)
	}
	if s.RecordDuration <= 0 {
		return fmt.Errorf("Session.RecordDuration must be positive, got %s", s.RecordDuration)
	}
	if s.TrialNumber < 0 {
		return fmt.Errorf("Session.TrialNumber must not be negative, got %d", s.TrialNumber)
	}
	return nil
}

func names[K ~string](m map[K]bool) string {
	parts := make([]string, 0, len(m))
	for k := range m {
		parts = append(parts, string(k))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

// Local Variables:
// compile-command: "cd .. && go build"
// End:
