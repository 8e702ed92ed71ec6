package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const DefaultEnvPrefix = "SEARCH_"

// EnvConfigLoader reads SEARCH_* variables from optional .env files and the
// process environment. Process variables win over file values; later files
// win over earlier ones. Missing files are skipped.
type EnvConfigLoader struct {
	Prefix  string
	Files   []string
	Environ func() []string
}

func NewEnvConfigLoader(files ...string) *EnvConfigLoader {
	return &EnvConfigLoader{
		Prefix:  DefaultEnvPrefix,
		Files:   append([]string(nil), files...),
		Environ: os.Environ,
	}
}

func (l *EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if l == nil {
		return map[string]any{}, nil
	}
	prefix := l.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	values := map[string]string{}
	for _, file := range l.Files {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		fileValues, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("core: read env file %s: %w", file, err)
		}
		for key, value := range fileValues {
			values[key] = value
		}
	}
	if l.Environ != nil {
		for _, pair := range l.Environ() {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			values[key] = value
		}
	}

	raw := map[string]any{}
	for key, value := range values {
		name, ok := strings.CutPrefix(key, prefix)
		if !ok || name == "" {
			continue
		}
		name = strings.ToLower(name)
		configKey, known := lookupConfigKey(name)
		if !known {
			continue
		}
		if !configKey.numeric {
			raw[name] = value
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("core: invalid %s%s: %w", prefix, strings.ToUpper(name), err)
		}
		raw[name] = parsed
	}
	return raw, nil
}

var _ RawConfigLoader = (*EnvConfigLoader)(nil)
