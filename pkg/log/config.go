package log

import (
	"fmt"
	"strings"
)

// Config declares a logger.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	// Output is console (default), file, or null.
	Output string `json:"output" yaml:"output"`
	// File is required when Output is file.
	File             string   `json:"file" yaml:"file"`
	Redact           []string `json:"redact,omitempty" yaml:"redact,omitempty"`
	SampleInitial    int      `json:"sampleInitial" yaml:"sampleInitial"`
	SampleThereafter int      `json:"sampleThereafter" yaml:"sampleThereafter"`
	ShowCaller       bool     `json:"showCaller" yaml:"showCaller"`
}

// ApplyConfig builds a Logger from cfg. Empty fields take defaults
// (info, text, console).
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	lvl := InfoLevel
	if cfg.Level != "" {
		l, err := ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		lvl = l
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{ShowCaller: cfg.ShowCaller}
	case "json":
		formatter = &JSONFormatter{ShowCaller: cfg.ShowCaller}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	var output Output
	switch strings.ToLower(cfg.Output) {
	case "", "console", "stderr":
		output = NewConsoleOutput()
	case "file":
		if cfg.File == "" {
			return nil, fmt.Errorf("log: file output requires a path")
		}
		fo, err := NewFileOutput(cfg.File)
		if err != nil {
			return nil, err
		}
		output = fo
	case "null", "none":
		output = NullOutput{}
	default:
		return nil, fmt.Errorf("log: unknown output %q", cfg.Output)
	}

	return NewLogger(
		WithLevel(lvl),
		WithFormatter(formatter),
		WithOutput(output),
		WithRedactions(cfg.Redact...),
		WithSampling(cfg.SampleInitial, cfg.SampleThereafter),
	), nil
}
