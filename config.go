package gtkserver

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ConfigError reports a bad configuration line
type ConfigError struct {
	File string
	Line int
	Msg  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s in configfile %s at line: %d", e.Msg, e.File, e.Line)
}

// DefaultConfigPaths lists the locations searched when no configuration
// file is named explicitly, in order.
func DefaultConfigPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".gtk4bas"))
	}
	return append(paths,
		"/etc/gtk-server.cfg",
		"/usr/local/etc/gtk-server.cfg",
		"gtk-server.cfg",
	)
}

// FindConfig returns the first existing default configuration file
func FindConfig() (string, bool) {
	for _, p := range DefaultConfigPaths() {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}

// LoadConfigFile reads a configuration file and the files it includes,
// then opens the listed libraries.
func (s *Server) LoadConfigFile(path string) error {
	queue := []string{path}
	seen := make(map[string]bool)

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true

		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("cannot open configfile %s: %w", name, err)
		}
		includes, err := s.loadConfig(f, name)
		f.Close()
		if err != nil {
			return err
		}
		queue = append(queue, includes...)
	}

	s.openConfiguredLibraries()
	return nil
}

// LoadConfig reads configuration text without following INCLUDE lines
// and without opening libraries.
func (s *Server) LoadConfig(r io.Reader, name string) error {
	_, err := s.loadConfig(r, name)
	return err
}

func (s *Server) loadConfig(r io.Reader, name string) ([]string, error) {
	var includes []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0

	bad := func(format string, args ...interface{}) error {
		return &ConfigError{File: name, Line: lineNo, Msg: fmt.Sprintf(format, args...)}
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, hasValue := strings.Cut(line, "=")
		key = strings.TrimSpace(key)

		switch {
		case key == "LIB_NAME" && hasValue:
			for _, lib := range splitFields(value) {
				if err := s.registry.AddLibrary(&Library{Name: lib}); err != nil {
					return nil, bad("%v", err)
				}
			}

		case key == "FUNCTION_NAME" && hasValue:
			fields := splitFields(value)
			switch {
			case len(fields) < 1:
				return nil, bad("Missing function name")
			case len(fields) < 2:
				return nil, bad("Missing callbacktype")
			case len(fields) < 3:
				return nil, bad("Missing return value")
			case len(fields) < 4:
				return nil, bad("Missing argument amount")
			}
			arity := int(CAtoi(fields[3]))
			if _, err := s.registry.Define(fields[0], fields[1], fields[2], arity, fields[4:]); err != nil {
				return nil, bad("%v", err)
			}
			s.logger.TraceCat(CatConfig, "function %s, %d args", fields[0], arity)

		case key == "ENUM_NAME" && hasValue:
			fields := splitFields(value)
			if len(fields) < 2 {
				return nil, bad("Missing value for enumeration")
			}
			v, err := CStrtol(fields[1])
			if err != nil {
				return nil, bad("Erroneous value for enumeration")
			}
			if err := s.registry.AddEnum(fields[0], v); err != nil {
				return nil, bad("%v", err)
			}

		case key == "STR_NAME" && hasValue:
			strName, strValue, ok := strings.Cut(value, ",")
			if !ok {
				return nil, bad("Missing value for string")
			}
			if err := s.registry.AddString(strings.TrimSpace(strName), strings.TrimSpace(strValue)); err != nil {
				return nil, bad("%v", err)
			}

		case key == "ALIAS_NAME" && hasValue:
			fields := splitFields(value)
			if len(fields) < 2 {
				return nil, bad("Missing realname for alias")
			}
			if err := s.registry.AddAlias(fields[0], fields[1]); err != nil {
				return nil, bad("%v", err)
			}

		case key == "INCLUDE" && hasValue:
			inc := strings.TrimSpace(value)
			if inc == "" {
				return nil, bad("Missing configfile")
			}
			includes = append(includes, inc)

		case key == "SEQUENCE" && hasValue:
			seq, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, bad("Missing library sequence number")
			}
			s.config.LibSequence = seq

		case strings.HasPrefix(line, "MACRO"):
			start := lineNo
			block := []string{line}
			closed := false
			for scanner.Scan() {
				lineNo++
				text := strings.TrimSpace(scanner.Text())
				block = append(block, text)
				if strings.HasPrefix(text, "ENDMACRO") {
					closed = true
					break
				}
			}
			if !closed {
				lineNo = start
				return nil, bad("Macro without end")
			}
			m, err := parseMacroBlock(block)
			if err != nil {
				lineNo = start
				return nil, bad("%v", err)
			}
			if err := s.registry.AddMacro(m, true); err != nil {
				lineNo = start
				return nil, bad("%v", err)
			}

		default:
			return nil, bad("Config not recognized")
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read configfile %s: %w", name, err)
	}
	return includes, nil
}

// splitFields splits a comma list, trimming each element and dropping empty ones
func splitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// parseMacroBlock turns "MACRO name", body lines and "ENDMACRO" into a
// macro. Comment and empty lines are dropped from the body.
func parseMacroBlock(block []string) (*MacroDef, error) {
	if len(block) == 0 || !strings.HasPrefix(block[0], "MACRO") {
		return nil, fmt.Errorf("Macro without begin")
	}
	header := strings.Fields(block[0])
	if len(header) < 2 {
		return nil, fmt.Errorf("Macro without name")
	}
	if !strings.HasPrefix(block[len(block)-1], "ENDMACRO") || len(block) < 2 {
		return nil, fmt.Errorf("Macro without end")
	}

	var body []string
	for _, line := range block[1 : len(block)-1] {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		body = append(body, line)
	}
	return NewMacroDef(header[1], body), nil
}

// ParseMacroBlocks reads one or more MACRO ... ENDMACRO blocks from text
func ParseMacroBlocks(text string) ([]*MacroDef, error) {
	var (
		macros []*MacroDef
		block  []string
	)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if block == nil {
			if line == "" {
				continue
			}
			if !strings.HasPrefix(line, "MACRO") {
				return nil, fmt.Errorf("Macro without begin")
			}
			block = []string{line}
			continue
		}
		block = append(block, line)
		if strings.HasPrefix(line, "ENDMACRO") {
			m, err := parseMacroBlock(block)
			if err != nil {
				return nil, err
			}
			macros = append(macros, m)
			block = nil
		}
	}
	if block != nil {
		if len(strings.Fields(block[0])) < 2 {
			return nil, fmt.Errorf("Macro without name")
		}
		return nil, fmt.Errorf("Macro without end")
	}
	if len(macros) == 0 {
		return nil, fmt.Errorf("Macro without begin")
	}
	return macros, nil
}

// openConfiguredLibraries opens every listed library that has no handle yet
func (s *Server) openConfiguredLibraries() {
	for _, lib := range s.registry.Libraries() {
		if lib.Handle != 0 {
			continue
		}
		handle, err := s.openLibrary(lib.Name)
		if err != nil {
			lib.Err = err.Error()
			s.logger.WarnCat(CatConfig, "cannot open library %s: %v", lib.Name, err)
			continue
		}
		lib.Handle = handle
		s.logger.DebugCat(CatConfig, "opened library %s", lib.Name)
	}
}

// openLibrary tries the name as given, then with numeric suffixes .0 up to
// the configured sequence depth.
func (s *Server) openLibrary(name string) (uintptr, error) {
	if s.native == nil {
		return 0, fmt.Errorf("no native call backend")
	}
	handle, firstErr := s.native.Open(name)
	if firstErr == nil {
		return handle, nil
	}
	for j := 0; j < s.config.LibSequence; j++ {
		if handle, err := s.native.Open(fmt.Sprintf("%s.%d", name, j)); err == nil {
			return handle, nil
		}
	}
	return 0, firstErr
}
