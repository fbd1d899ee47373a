package gtkserver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Settings holds startup defaults read from settings.toml. Command-line
// options override them.
type Settings struct {
	Cfg         string `toml:"cfg"`
	Log         string `toml:"log"`
	Pre         string `toml:"pre"`
	Post        string `toml:"post"`
	Handle      bool   `toml:"handle"`
	NoNewline   bool   `toml:"nonl"`
	Signal      int    `toml:"signal"`
	Debug       bool   `toml:"debug"`
	Dialog      bool   `toml:"dialog"`
	EscapeChars string `toml:"escape_chars"`
	LineCount   bool   `toml:"line_count"`

	// Path is the file the settings were read from (set at load time)
	Path string `toml:"-"`
}

// DefaultSettingsPath returns $XDG_CONFIG_HOME/gtk-server/settings.toml
func DefaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gtk-server", "settings.toml")
}

// LoadSettings parses a settings file. A missing file yields empty settings.
func LoadSettings(path string) (*Settings, error) {
	st := &Settings{}
	if path == "" {
		return st, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if len(st.EscapeChars) > 16 {
		return nil, fmt.Errorf("escape_chars in %s may not exceed 16 characters", path)
	}
	st.Path = path
	return st, nil
}

// Options turns the settings into option defaults
func (st *Settings) Options() *Options {
	return &Options{
		Cfg:         st.Cfg,
		Log:         st.Log,
		Pre:         st.Pre,
		Post:        st.Post,
		Handle:      st.Handle,
		NoNewline:   st.NoNewline,
		Signal:      st.Signal,
		Debug:       st.Debug,
		Dialog:      st.Dialog,
		EscapeChars: st.EscapeChars,
		LineCount:   st.LineCount,
	}
}
