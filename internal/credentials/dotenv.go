package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/subosito/gotenv"
)

const (
	dotenvOpenErrorTemplateConstant  = "unable to open environment file %s: %w"
	dotenvParseErrorTemplateConstant = "unable to parse environment file %s: %w"
)

// LoadDotenvFiles reads KEY=VALUE files in order. Missing files are skipped and earlier files win on duplicate keys.
func LoadDotenvFiles(fileSystem afero.Fs, filePaths []string) (map[string]string, error) {
	environment := map[string]string{}
	for _, filePath := range filePaths {
		trimmedPath := strings.TrimSpace(filePath)
		if len(trimmedPath) == 0 {
			continue
		}
		file, openError := fileSystem.Open(trimmedPath)
		if openError != nil {
			if errors.Is(openError, fs.ErrNotExist) || errors.Is(openError, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf(dotenvOpenErrorTemplateConstant, trimmedPath, openError)
		}
		parsedEnvironment, parseError := gotenv.StrictParse(file)
		closeError := file.Close()
		if parseError != nil {
			return nil, fmt.Errorf(dotenvParseErrorTemplateConstant, trimmedPath, parseError)
		}
		if closeError != nil {
			return nil, fmt.Errorf(dotenvOpenErrorTemplateConstant, trimmedPath, closeError)
		}
		for key, value := range parsedEnvironment {
			if _, exists := environment[key]; !exists {
				environment[key] = value
			}
		}
	}
	return environment, nil
}

// ChainEnvironmentLookup consults the provided map before falling back to the next lookup.
func ChainEnvironmentLookup(environment map[string]string, fallback EnvironmentLookup) EnvironmentLookup {
	return func(key string) (string, bool) {
		if value, exists := environment[key]; exists && len(strings.TrimSpace(value)) > 0 {
			return value, true
		}
		if fallback == nil {
			return "", false
		}
		return fallback(key)
	}
}
