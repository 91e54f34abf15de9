package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	catppuccin "github.com/catppuccin/go"
	"gopkg.in/yaml.v3"

	"chatgptnvim/internal/layout"
)

const (
	appName         = "chatgpt-nvim"
	optionsFileName = "config.yaml"
)

// Options holds plugin settings that are not credentials. Cosmetic details
// that differed between releases of the plugin (banner, border, default
// alignment) live here rather than in code.
type Options struct {
	Theme        string         `yaml:"theme"`
	LogLevel     string         `yaml:"log_level"`
	Backend      BackendOptions `yaml:"backend"`
	Window       WindowOptions  `yaml:"window"`
	Banner       []string       `yaml:"banner"`
	PromptPrefix string         `yaml:"prompt_prefix"`
	ErrorLine    string         `yaml:"error_line"`
}

type BackendOptions struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type WindowOptions struct {
	Width     Dimension `yaml:"width"`
	Height    Dimension `yaml:"height"`
	Alignment string    `yaml:"alignment"`
	Border    string    `yaml:"border"`
	Title     string    `yaml:"title"`
}

// Dimension is a layout.Size read from YAML. Integers are cells and
// floats are fractions of the parent, so `width: 1` is one cell and
// `width: 1.0` is the whole parent.
type Dimension struct {
	layout.Size
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Dimension) UnmarshalYAML(value *yaml.Node) error {
	switch value.ShortTag() {
	case "!!int":
		n, err := strconv.Atoi(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: invalid cell count %q", value.Line, value.Value)
		}
		if n < 0 {
			return fmt.Errorf("line %d: cell count must not be negative, got %d", value.Line, n)
		}
		d.Size = layout.Cells(n)
	case "!!float":
		f, err := strconv.ParseFloat(value.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid fraction %q", value.Line, value.Value)
		}
		if f <= 0 || f > 1 {
			return fmt.Errorf("line %d: fraction must be in (0,1], got %g", value.Line, f)
		}
		d.Size = layout.Fraction(f)
	default:
		return fmt.Errorf("line %d: size must be a number, got %q", value.Line, value.Value)
	}
	return nil
}

// MarshalYAML writes cells as an int and fractions as a float.
func (d Dimension) MarshalYAML() (any, error) {
	if d.IsFraction() {
		return d.Ratio(), nil
	}
	return d.CellCount(), nil
}

func DefaultOptions() Options {
	return Options{
		Theme:    "mocha",
		LogLevel: "info",
		Backend: BackendOptions{
			BaseURL: "https://chat.openai.com",
			Model:   "text-davinci-002-render",
			Timeout: 60 * time.Second,
		},
		Window: WindowOptions{
			Width:     Dimension{layout.Fraction(0.8)},
			Height:    Dimension{layout.Fraction(0.7)},
			Alignment: "center",
			Border:    "rounded",
			Title:     " ChatGPT ",
		},
		Banner:       []string{"ChatGPT: type a prompt below and press <Enter>.", ""},
		PromptPrefix: "> ",
		ErrorLine:    "error: no response from ChatGPT (see :ChatLog)",
	}
}

// Alignment parses Window.Alignment.
func (o Options) Alignment() (layout.Alignment, error) {
	return layout.ParseAlignment(o.Window.Alignment)
}

// Flavor returns the catppuccin flavor named by Theme, defaulting to mocha.
func (o Options) Flavor() catppuccin.Flavor {
	switch o.Theme {
	case "latte":
		return catppuccin.Latte
	case "frappe":
		return catppuccin.Frappe
	case "macchiato":
		return catppuccin.Macchiato
	default:
		return catppuccin.Mocha
	}
}

// Validate checks values that YAML decoding cannot.
func (o Options) Validate() error {
	a, err := o.Alignment()
	if err != nil {
		return fmt.Errorf("window.alignment: %w", err)
	}
	if a == layout.AlignNone {
		return fmt.Errorf("window.alignment: must not be none")
	}
	if o.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if o.Backend.Timeout < 0 {
		return fmt.Errorf("backend.timeout must not be negative")
	}
	return nil
}

func LoadOptions() (Options, error) {
	return LoadOptionsFrom(getOptionsPath())
}

// LoadOptionsFromDir loads config.yaml from the given directory.
func LoadOptionsFromDir(dir string) (Options, error) {
	return LoadOptionsFrom(filepath.Join(dir, optionsFileName))
}

func LoadOptionsFrom(path string) (Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return opts, err
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return DefaultOptions(), err
	}

	if opts.Theme == "" {
		opts.Theme = "mocha"
	}
	if opts.ErrorLine == "" {
		opts.ErrorLine = DefaultOptions().ErrorLine
	}

	if err := opts.Validate(); err != nil {
		return DefaultOptions(), err
	}

	return opts, nil
}

// OptionsPath returns the config.yaml location, honoring XDG_CONFIG_HOME.
func OptionsPath() string {
	return getOptionsPath()
}

func getOptionsPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName, optionsFileName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", appName, optionsFileName)
	}

	return filepath.Join(home, ".config", appName, optionsFileName)
}

// CacheDir returns the directory for logs and other disposable state.
func CacheDir() string {
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return filepath.Join(xdgCache, appName)
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(dir, appName)
}

// LogPath returns the rotating plugin log file.
func LogPath() string {
	return filepath.Join(CacheDir(), "plugin.log")
}
