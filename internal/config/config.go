// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Run modes.
const (
	ModeBounded    = "bounded"
	ModeContinuous = "continuous"
)

// Mapping strategies.
const (
	MappingPositional  = "positional"
	MappingPlaceholder = "placeholder"
	MappingSlots       = "slots"
)

// Field read-back implementations.
const (
	VisionDOM       = "dom"
	VisionClipboard = "clipboard"
)

// Store drivers.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Config holds the entire application configuration.
// The run options sit at the top level so the persisted file stays a flat
// key/value document; infrastructure settings are nested.
type Config struct {
	ExcelFile           string  `mapstructure:"excelFile" json:"excelFile"`
	StartRow            int     `mapstructure:"startRow" json:"startRow"`
	SpeedFactor         float64 `mapstructure:"speedFactor" json:"speedFactor"`
	UseImageRecognition bool    `mapstructure:"useImageRecognition" json:"useImageRecognition"`
	VerifyInput         bool    `mapstructure:"verifyInput" json:"verifyInput"`
	MaxAttempts         int     `mapstructure:"maxAttempts" json:"maxAttempts"`
	UseClipboard        bool    `mapstructure:"useClipboard" json:"useClipboard"`
	// CheckboxImage is a picture of a ticked checkbox. When set, every box
	// matching it is unticked before each row.
	CheckboxImage string `mapstructure:"checkboxImage" json:"checkboxImage"`
	// Vision selects how fields are read back: from the DOM, or by
	// select-all and copy through the clipboard.
	Vision string `mapstructure:"vision" json:"vision"`

	ActionsFile   string        `mapstructure:"actionsFile" json:"actionsFile"`
	FieldsFile    string        `mapstructure:"fieldsFile" json:"fieldsFile"`
	Mode          string        `mapstructure:"mode" json:"mode"`
	Mapping       string        `mapstructure:"mapping" json:"mapping"`
	InterRowDelay time.Duration `mapstructure:"interRowDelay" json:"interRowDelay"`
	StartDelay    time.Duration `mapstructure:"startDelay" json:"startDelay"`
	RetryPause    time.Duration `mapstructure:"retryPause" json:"retryPause"`

	Columns  ColumnsConfig  `mapstructure:"columns" json:"columns"`
	Logger   LoggerConfig   `mapstructure:"logger" json:"logger"`
	Store    StoreConfig    `mapstructure:"store" json:"store"`
	Browser  BrowserConfig  `mapstructure:"browser" json:"browser"`
	Humanoid HumanoidConfig `mapstructure:"humanoid" json:"humanoid"`
	Status   StatusConfig   `mapstructure:"status" json:"status"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level"`
	Format      string      `mapstructure:"format" json:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" json:"debug"`
	Info   string `mapstructure:"info" json:"info"`
	Warn   string `mapstructure:"warn" json:"warn"`
	Error  string `mapstructure:"error" json:"error"`
	DPanic string `mapstructure:"dpanic" json:"dpanic"`
	Panic  string `mapstructure:"panic" json:"panic"`
	Fatal  string `mapstructure:"fatal" json:"fatal"`
}

// ColumnsConfig fixes which source column carries each semantic attribute.
type ColumnsConfig struct {
	Number     int `mapstructure:"number" json:"number"`
	Surname    int `mapstructure:"surname" json:"surname"`
	GivenName  int `mapstructure:"givenName" json:"givenName"`
	Patronymic int `mapstructure:"patronymic" json:"patronymic"`
	BirthDate  int `mapstructure:"birthDate" json:"birthDate"`
}

// StoreConfig selects where recorded action sequences are kept.
type StoreConfig struct {
	Driver   string         `mapstructure:"driver" json:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres" json:"postgres"`
}

// PostgresConfig holds the settings for the shared sequence store.
type PostgresConfig struct {
	URL string `mapstructure:"url" json:"url"`
	// Key names the sequence inside the shared tables.
	Key string `mapstructure:"key" json:"key"`
}

// BrowserConfig configures the chromedp driver used to reach web forms.
type BrowserConfig struct {
	FormURL  string `mapstructure:"form_url" json:"form_url"`
	Headless bool   `mapstructure:"headless" json:"headless"`
	Width    int    `mapstructure:"width" json:"width"`
	Height   int    `mapstructure:"height" json:"height"`
	ExecPath string `mapstructure:"exec_path" json:"exec_path"`
	// SystemClipboard routes paste/copy through the OS clipboard instead of an in-process one.
	SystemClipboard bool `mapstructure:"system_clipboard" json:"system_clipboard"`
}

// StatusConfig sizes the status channel.
type StatusConfig struct {
	BufferSize int `mapstructure:"buffer_size" json:"buffer_size"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Run --
	v.SetDefault("excelFile", "")
	v.SetDefault("startRow", 0)
	v.SetDefault("speedFactor", 1.0)
	v.SetDefault("useImageRecognition", false)
	v.SetDefault("verifyInput", true)
	v.SetDefault("maxAttempts", 3)
	v.SetDefault("useClipboard", true)
	v.SetDefault("checkboxImage", "")
	v.SetDefault("vision", VisionDOM)
	v.SetDefault("actionsFile", "form_actions.json")
	v.SetDefault("fieldsFile", "form_fields.json")
	v.SetDefault("mode", ModeBounded)
	v.SetDefault("mapping", MappingPlaceholder)
	v.SetDefault("interRowDelay", "1s")
	v.SetDefault("startDelay", "5s")
	v.SetDefault("retryPause", "500ms")

	// -- Columns --
	v.SetDefault("columns.number", 0)
	v.SetDefault("columns.surname", 1)
	v.SetDefault("columns.givenName", 2)
	v.SetDefault("columns.patronymic", 3)
	v.SetDefault("columns.birthDate", 4)

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "autofill")
	v.SetDefault("logger.log_file", "auto_form_filler.log")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Store --
	v.SetDefault("store.driver", StoreFile)
	v.SetDefault("store.postgres.key", "default")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 900)
	v.SetDefault("browser.system_clipboard", false)

	// -- Status --
	v.SetDefault("status.buffer_size", 256)

	setHumanoidDefaults(v)
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The database URL usually carries credentials, so it is bound to a dedicated variable.
	_ = v.BindEnv("store.postgres.url", "AUTOFILL_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in every file path option.
func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.ExcelFile, &c.ActionsFile, &c.FieldsFile, &c.CheckboxImage, &c.Logger.LogFile} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.SpeedFactor <= 0 {
		return fmt.Errorf("speedFactor must be greater than zero")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("maxAttempts must be at least 1")
	}
	if c.StartRow < 0 {
		return fmt.Errorf("startRow must not be negative")
	}
	switch c.Mode {
	case ModeBounded, ModeContinuous:
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeBounded, ModeContinuous, c.Mode)
	}
	switch c.Mapping {
	case MappingPositional, MappingPlaceholder, MappingSlots:
	default:
		return fmt.Errorf("unknown mapping strategy %q", c.Mapping)
	}
	switch c.Vision {
	case VisionDOM, VisionClipboard:
	default:
		return fmt.Errorf("vision must be %q or %q, got %q", VisionDOM, VisionClipboard, c.Vision)
	}
	if c.InterRowDelay < 0 || c.StartDelay < 0 || c.RetryPause < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if err := c.Columns.Validate(); err != nil {
		return fmt.Errorf("columns configuration invalid: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store configuration invalid: %w", err)
	}
	if c.Status.BufferSize < 0 {
		return fmt.Errorf("status.buffer_size must not be negative")
	}
	return nil
}

// Validate checks that every column index is usable.
func (c *ColumnsConfig) Validate() error {
	for name, idx := range map[string]int{
		"number": c.Number, "surname": c.Surname, "givenName": c.GivenName,
		"patronymic": c.Patronymic, "birthDate": c.BirthDate,
	} {
		if idx < 0 {
			return fmt.Errorf("%s column must not be negative", name)
		}
	}
	return nil
}

// Validate checks the store settings.
func (s *StoreConfig) Validate() error {
	switch s.Driver {
	case StoreFile:
		return nil
	case StorePostgres:
		if s.Postgres.URL == "" {
			return fmt.Errorf("store.postgres.url is required for the postgres driver (or set AUTOFILL_DATABASE_URL)")
		}
		if s.Postgres.Key == "" {
			return fmt.Errorf("store.postgres.key must not be empty")
		}
		return nil
	default:
		return fmt.Errorf("unknown store driver %q", s.Driver)
	}
}

// documentJSON encodes config documents with stable key order. HTML
// escaping is off so values such as "<redacted>" print as written.
var documentJSON = json.Config{EscapeHTML: false, SortMapKeys: true}.Froze()

// Document returns c as the flat key/value document Save writes. Durations
// are in their textual form so the file stays hand-editable. The database
// URL is never included; it usually carries a password.
func Document(c *Config) map[string]interface{} {
	return map[string]interface{}{
		"excelFile":           c.ExcelFile,
		"startRow":            c.StartRow,
		"speedFactor":         c.SpeedFactor,
		"useImageRecognition": c.UseImageRecognition,
		"verifyInput":         c.VerifyInput,
		"maxAttempts":         c.MaxAttempts,
		"useClipboard":        c.UseClipboard,
		"checkboxImage":       c.CheckboxImage,
		"vision":              c.Vision,
		"actionsFile":         c.ActionsFile,
		"fieldsFile":          c.FieldsFile,
		"mode":                c.Mode,
		"mapping":             c.Mapping,
		"interRowDelay":       c.InterRowDelay.String(),
		"startDelay":          c.StartDelay.String(),
		"retryPause":          c.RetryPause.String(),
		"columns":             c.Columns,
		"logger":              c.Logger,
		"browser":             c.Browser,
		"humanoid":            c.Humanoid,
		"status":              c.Status,
		"store": map[string]interface{}{
			"driver":   c.Store.Driver,
			"postgres": map[string]string{"key": c.Store.Postgres.Key},
		},
	}
}

// MarshalDocument encodes a document built by Document as indented JSON.
func MarshalDocument(doc map[string]interface{}) ([]byte, error) {
	data, err := documentJSON.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// Save persists c at path as the document returned by Document.
func Save(c *Config, path string) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("failed to expand path %q: %w", path, err)
	}

	data, err := MarshalDocument(Document(c))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(expanded); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(expanded, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
