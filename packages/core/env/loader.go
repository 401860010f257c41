package env

import (
	"errors"
	"io/fs"
	"maps"
	"os"
	"strings"
)

// MergeVariables merges variable sets, later sources taking precedence.
func MergeVariables(sources ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, src := range sources {
		maps.Copy(result, src)
	}
	return result
}

// LoadSystemEnv returns the process environment variables whose name starts
// with prefix, with the prefix removed. An empty prefix returns everything.
func LoadSystemEnv(prefix string) map[string]string {
	result := make(map[string]string)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if name, found := strings.CutPrefix(key, prefix); found && name != "" {
			result[name] = value
		}
	}
	return result
}

// LoadVariables builds the variable set of a run: prefixed process
// environment first, then each dotenv file in order. Missing files are
// skipped when optional is set.
func LoadVariables(prefix string, optional bool, files ...string) (map[string]string, error) {
	sources := []map[string]string{LoadSystemEnv(prefix)}
	for _, path := range files {
		vars, err := LoadDotEnv(path)
		if err != nil {
			if optional && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		sources = append(sources, vars)
	}
	return MergeVariables(sources...), nil
}
