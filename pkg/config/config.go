package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kioskbus/kioskbus-go/pkg/canbus"
	"github.com/kioskbus/kioskbus-go/pkg/filter"
)

// ErrInvalid is wrapped by all validation failures.
var ErrInvalid = errors.New("config: invalid")

// Duration wraps time.Duration for YAML values like "2s" or "100ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the controller's full configuration.
type Config struct {
	Logging      LoggingConfig      `yaml:"logging"`
	CAN          CANConfig          `yaml:"can"`
	Manager      ManagerConfig      `yaml:"manager"`
	Presentation PresentationConfig `yaml:"presentation"`
	Discovery    DiscoveryConfig    `yaml:"discovery"`
}

// LoggingConfig controls application and bus event logging.
type LoggingConfig struct {
	// Level is the slog level: debug, info, warn or error (default info).
	Level string `yaml:"level"`

	// BusLogFile, when set, appends CBOR bus events to this path.
	BusLogFile string `yaml:"bus_log_file"`
}

func (c *LoggingConfig) applyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the logging section.
func (c *LoggingConfig) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel translates the configured level name.
func (c *LoggingConfig) SlogLevel() (slog.Level, error) {
	switch c.Level {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Level)
	}
}

// HardwareFilterSpec is the configuration form of a socket-level filter.
type HardwareFilterSpec struct {
	ID   string `yaml:"id"`
	Mask string `yaml:"mask"`
}

// CANConfig describes the bus attachment.
type CANConfig struct {
	// Channel is the CAN interface name (default can0).
	Channel string `yaml:"channel"`

	// Bitrate applied via ip link when bringing the interface up
	// (default 100000).
	Bitrate uint32 `yaml:"bitrate"`

	// DeviceID is the fixed outbound arbitration identifier, hex
	// (default 0x0DA).
	DeviceID string `yaml:"device_id"`

	// HardwareFilters are applied once at socket setup; coarse pre-filter
	// only, rule matching still runs in software.
	HardwareFilters []HardwareFilterSpec `yaml:"hardware_filters"`

	// SoftwareFilters are the ordered rules the listener matches against.
	SoftwareFilters []filter.RuleSpec `yaml:"software_filters"`
}

func (c *CANConfig) applyDefaults() {
	if c.Channel == "" {
		c.Channel = "can0"
	}
	if c.Bitrate == 0 {
		c.Bitrate = 100000
	}
	if c.DeviceID == "" {
		c.DeviceID = "0x0DA"
	}
}

// Validate checks the CAN section, including rule compilation.
func (c *CANConfig) Validate() error {
	if _, err := c.DeviceIDValue(); err != nil {
		return err
	}
	if _, err := c.Filters(); err != nil {
		return err
	}
	if len(c.SoftwareFilters) == 0 {
		return fmt.Errorf("%w: can: at least one software filter rule is required", ErrInvalid)
	}
	if _, err := c.Rules(); err != nil {
		return fmt.Errorf("%w: can: %w", ErrInvalid, err)
	}
	return nil
}

// DeviceIDValue parses the configured arbitration identifier.
func (c *CANConfig) DeviceIDValue() (uint32, error) {
	id, err := filter.ParseID(c.DeviceID)
	if err != nil {
		return 0, fmt.Errorf("%w: can: device_id: %w", ErrInvalid, err)
	}
	return id, nil
}

// Filters translates the hardware filter specs.
func (c *CANConfig) Filters() ([]canbus.HardwareFilter, error) {
	filters := make([]canbus.HardwareFilter, 0, len(c.HardwareFilters))
	for i, spec := range c.HardwareFilters {
		id, err := filter.ParseID(spec.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: can: hardware_filters[%d].id: %w", ErrInvalid, i, err)
		}
		mask, err := filter.ParseID(spec.Mask)
		if err != nil {
			return nil, fmt.Errorf("%w: can: hardware_filters[%d].mask: %w", ErrInvalid, i, err)
		}
		filters = append(filters, canbus.HardwareFilter{ID: id, Mask: mask})
	}
	return filters, nil
}

// Rules compiles the software filter rules, preserving order.
func (c *CANConfig) Rules() ([]filter.Rule, error) {
	return filter.CompileAll(c.SoftwareFilters)
}

// ManagerConfig carries the worker and link tunables. Zero values select
// the documented defaults.
type ManagerConfig struct {
	ListenerPollInterval  Duration `yaml:"listener_poll_interval"`
	ReceiveTimeout        Duration `yaml:"receive_timeout"`
	ResponderPollInterval Duration `yaml:"responder_poll_interval"`
	ResponderInitialDelay Duration `yaml:"responder_initial_delay"`
	ResponderInterval     Duration `yaml:"responder_interval"`
	SendMaxRetries        int      `yaml:"send_max_retries"`
	SendRetryDelay        Duration `yaml:"send_retry_delay"`
	FailureCap            int      `yaml:"failure_cap"`
	StopJoinTimeout       Duration `yaml:"stop_join_timeout"`
	QueueStopTimeout      Duration `yaml:"queue_stop_timeout"`
	UpRetries             int      `yaml:"up_retries"`
	UpRetryDelay          Duration `yaml:"up_retry_delay"`
	ErrorCooldown         Duration `yaml:"error_cooldown"`
	Stabilization         Duration `yaml:"stabilization"`
}

// Validate checks the manager section.
func (c *ManagerConfig) Validate() error {
	for name, d := range map[string]Duration{
		"listener_poll_interval":  c.ListenerPollInterval,
		"receive_timeout":         c.ReceiveTimeout,
		"responder_poll_interval": c.ResponderPollInterval,
		"responder_initial_delay": c.ResponderInitialDelay,
		"responder_interval":      c.ResponderInterval,
		"send_retry_delay":        c.SendRetryDelay,
		"stop_join_timeout":       c.StopJoinTimeout,
		"queue_stop_timeout":      c.QueueStopTimeout,
		"up_retry_delay":          c.UpRetryDelay,
		"error_cooldown":          c.ErrorCooldown,
		"stabilization":           c.Stabilization,
	} {
		if d < 0 {
			return fmt.Errorf("%w: manager: %s must not be negative", ErrInvalid, name)
		}
	}
	if c.SendMaxRetries < 0 {
		return fmt.Errorf("%w: manager: send_max_retries must not be negative", ErrInvalid)
	}
	if c.FailureCap < 0 {
		return fmt.Errorf("%w: manager: failure_cap must not be negative", ErrInvalid)
	}
	if c.UpRetries < 0 {
		return fmt.Errorf("%w: manager: up_retries must not be negative", ErrInvalid)
	}
	return nil
}

// PresentationConfig carries the presentation-side state tunables.
type PresentationConfig struct {
	TickInterval         Duration `yaml:"tick_interval"`
	CountdownDuration    Duration `yaml:"countdown_duration"`
	HintDuration         Duration `yaml:"hint_duration"`
	NominalVideoDuration Duration `yaml:"nominal_video_duration"`
	ChainDelay           Duration `yaml:"chain_delay"`

	// Folders maps folder selector bytes (hex) to content folder names.
	Folders map[string]string `yaml:"folders"`

	// DefaultFolder is the selector (hex) active at startup.
	DefaultFolder string `yaml:"default_folder"`

	// MaxVideo is the highest valid video index.
	MaxVideo uint8 `yaml:"max_video"`

	// Chain maps a video index to the follow-up that plays after it ends.
	Chain map[uint8]uint8 `yaml:"chain"`

	// Hints maps hint selector bytes (hex) to messages.
	Hints map[string]string `yaml:"hints"`
}

func (c *PresentationConfig) applyDefaults() {
	if len(c.Folders) == 0 {
		c.Folders = map[string]string{"0x01": "hun", "0x02": "eng"}
	}
	if c.DefaultFolder == "" {
		c.DefaultFolder = "0x01"
	}
	if c.MaxVideo == 0 {
		c.MaxVideo = 8
	}
}

// Validate checks the presentation section.
func (c *PresentationConfig) Validate() error {
	folders, err := c.FolderMap()
	if err != nil {
		return err
	}
	def, err := c.DefaultFolderValue()
	if err != nil {
		return err
	}
	if _, ok := folders[def]; !ok {
		return fmt.Errorf("%w: presentation: default_folder %s is not in folders", ErrInvalid, c.DefaultFolder)
	}
	if _, err := c.HintMap(); err != nil {
		return err
	}
	for from, to := range c.Chain {
		if from < 1 || from > c.MaxVideo || to < 1 || to > c.MaxVideo {
			return fmt.Errorf("%w: presentation: chain %d -> %d outside 1..%d", ErrInvalid, from, to, c.MaxVideo)
		}
	}
	return nil
}

// FolderMap parses the folder selectors.
func (c *PresentationConfig) FolderMap() (map[uint8]string, error) {
	folders := make(map[uint8]string, len(c.Folders))
	for key, name := range c.Folders {
		b, err := filter.ParseByte(key)
		if err != nil {
			return nil, fmt.Errorf("%w: presentation: folders key: %w", ErrInvalid, err)
		}
		folders[b] = name
	}
	return folders, nil
}

// DefaultFolderValue parses the startup folder selector.
func (c *PresentationConfig) DefaultFolderValue() (uint8, error) {
	b, err := filter.ParseByte(c.DefaultFolder)
	if err != nil {
		return 0, fmt.Errorf("%w: presentation: default_folder: %w", ErrInvalid, err)
	}
	return b, nil
}

// HintMap parses the hint selectors.
func (c *PresentationConfig) HintMap() (map[uint8]string, error) {
	hints := make(map[uint8]string, len(c.Hints))
	for key, message := range c.Hints {
		b, err := filter.ParseByte(key)
		if err != nil {
			return nil, fmt.Errorf("%w: presentation: hints key: %w", ErrInvalid, err)
		}
		hints[b] = message
	}
	return hints, nil
}

// DiscoveryConfig controls the maintenance mDNS advertiser.
type DiscoveryConfig struct {
	// Enabled turns the advertiser on.
	Enabled bool `yaml:"enabled"`

	// Instance overrides the advertised instance name (default kioskbus-<id>).
	Instance string `yaml:"instance"`

	// Port is the advertised service port (default 7712).
	Port int `yaml:"port"`
}

func (c *DiscoveryConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = 7712
	}
}

// Validate checks the discovery section.
func (c *DiscoveryConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: discovery: port %d out of range", ErrInvalid, c.Port)
	}
	return nil
}

// applyDefaults fills every section's defaults.
func (c *Config) applyDefaults() {
	c.Logging.applyDefaults()
	c.CAN.applyDefaults()
	c.Presentation.applyDefaults()
	c.Discovery.applyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.CAN.Validate(); err != nil {
		return err
	}
	if err := c.Manager.Validate(); err != nil {
		return err
	}
	if err := c.Presentation.Validate(); err != nil {
		return err
	}
	return c.Discovery.Validate()
}

// Load reads, parses, defaults and validates the configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse parses and validates raw YAML configuration.
func Parse(raw []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
