package composer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/temirov/gitaccess/internal/execshell"
	"github.com/temirov/gitaccess/internal/repos/shared"
)

const (
	composerShowSubcommandConstant            = "show"
	composerInstalledFlagConstant             = "--installed"
	composerJSONFormatFlagConstant            = "--format=json"
	gitDistributionTypeConstant               = "git"
	showOutputMissingInstalledMessageConstant = "composer show output has no installed list"
	showDecodeTemplateConstant                = "unable to parse composer show output: %w"
	showExecutionTemplateConstant             = "composer show failed in %s: %w"
	composerExecutorMissingMessageConstant    = "composer executor not configured"
)

// ErrComposerExecutorNotConfigured indicates InstalledRepositoryURLs was called without an executor.
var ErrComposerExecutorNotConfigured = errors.New(composerExecutorMissingMessageConstant)

type showDocument struct {
	Installed *[]showPackage `json:"installed"`
}

type showPackage struct {
	Source json.RawMessage `json:"source"`
	Dist   *PackageOrigin  `json:"dist"`
}

// InstalledRepositoryURLs runs `composer show --installed --format=json` in the directory and returns raw repository URLs.
// A positive timeout stops composer when it runs longer.
func InstalledRepositoryURLs(executionContext context.Context, executor shared.ComposerExecutor, composerDirectory string, timeout time.Duration) ([]string, error) {
	if executor == nil {
		return nil, ErrComposerExecutorNotConfigured
	}
	result, executionError := executor.ExecuteComposer(executionContext, execshell.CommandDetails{
		Arguments:        []string{composerShowSubcommandConstant, composerInstalledFlagConstant, composerJSONFormatFlagConstant},
		WorkingDirectory: composerDirectory,
		Timeout:          timeout,
	})
	if executionError != nil {
		return nil, fmt.Errorf(showExecutionTemplateConstant, composerDirectory, executionError)
	}
	return ParseShowOutput([]byte(result.StandardOutput))
}

// ParseShowOutput extracts repository URLs from composer show JSON. The source may be a string or an
// object with a url. A dist url is used only for git distributions.
func ParseShowOutput(output []byte) ([]string, error) {
	var document showDocument
	if decodeError := json.Unmarshal(output, &document); decodeError != nil {
		return nil, fmt.Errorf(showDecodeTemplateConstant, decodeError)
	}
	if document.Installed == nil {
		return nil, errors.New(showOutputMissingInstalledMessageConstant)
	}

	repositoryURLs := make([]string, 0, len(*document.Installed))
	for _, installedPackage := range *document.Installed {
		repositoryURL := sourceURL(installedPackage.Source)
		if len(repositoryURL) == 0 && installedPackage.Dist != nil && installedPackage.Dist.Type == gitDistributionTypeConstant {
			repositoryURL = strings.TrimSpace(installedPackage.Dist.URL)
		}
		if len(repositoryURL) > 0 {
			repositoryURLs = append(repositoryURLs, repositoryURL)
		}
	}
	return repositoryURLs, nil
}

func sourceURL(rawSource json.RawMessage) string {
	if len(rawSource) == 0 {
		return ""
	}
	var sourceString string
	if json.Unmarshal(rawSource, &sourceString) == nil {
		return strings.TrimSpace(sourceString)
	}
	var sourceObject PackageOrigin
	if json.Unmarshal(rawSource, &sourceObject) == nil {
		return strings.TrimSpace(sourceObject.URL)
	}
	return ""
}
