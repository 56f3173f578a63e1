package audit

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/gitaccess/internal/access"
	"github.com/temirov/gitaccess/internal/credentials"
	"github.com/temirov/gitaccess/internal/gitrepo"
)

const (
	gitHubCheckerErrorTemplateConstant = "unable to construct GitHub checker: %w"
	gitLabCheckerErrorTemplateConstant = "unable to construct GitLab checker: %w"
	tokenLoadErrorTemplateConstant     = "unable to load platform tokens: %w"
)

// PlatformCheckers bundles the API clients for both supported platforms.
type PlatformCheckers struct {
	GitHub *access.GitHubChecker
	GitLab *access.GitLabChecker
}

// LoadPlatformTokens resolves both platform tokens from the configured dotenv files and token sources.
func LoadPlatformTokens(executionContext context.Context, fileSystem afero.Fs, environmentLookup credentials.EnvironmentLookup, platformConfiguration PlatformConfiguration) (credentials.PlatformTokens, error) {
	tokens, tokenError := credentials.PlatformTokenLoader{
		FileSystem:        fileSystem,
		EnvironmentLookup: environmentLookup,
	}.Load(executionContext, credentials.PlatformTokenSources{
		GitHubSources: platformConfiguration.GitHubTokenSources,
		GitLabSources: platformConfiguration.GitLabTokenSources,
		DotenvFiles:   platformConfiguration.DotenvFiles,
	})
	if tokenError != nil {
		return credentials.PlatformTokens{}, fmt.Errorf(tokenLoadErrorTemplateConstant, tokenError)
	}
	return tokens, nil
}

// NewPlatformCheckers builds authenticated checkers from the driver tokens and platform endpoints.
func NewPlatformCheckers(driverConfiguration DriverConfiguration, platformConfiguration PlatformConfiguration, logger *zap.Logger) (PlatformCheckers, error) {
	sanitizedPlatforms := platformConfiguration.Sanitize()

	gitHubChecker, gitHubError := access.NewGitHubChecker(access.GitHubCheckerConfiguration{
		Token:      driverConfiguration.GitHubToken,
		APIBaseURL: sanitizedPlatforms.GitHubAPIURL,
		HTTPClient: sanitizedPlatforms.HTTPClientConfiguration(),
		Logger:     logger,
	})
	if gitHubError != nil {
		return PlatformCheckers{}, fmt.Errorf(gitHubCheckerErrorTemplateConstant, gitHubError)
	}

	gitLabChecker, gitLabError := access.NewGitLabChecker(access.GitLabCheckerConfiguration{
		Token:      driverConfiguration.GitLabToken,
		BaseURL:    sanitizedPlatforms.GitLabBaseURL,
		HTTPClient: sanitizedPlatforms.HTTPClientConfiguration(),
		Logger:     logger,
	})
	if gitLabError != nil {
		return PlatformCheckers{}, fmt.Errorf(gitLabCheckerErrorTemplateConstant, gitLabError)
	}

	return PlatformCheckers{GitHub: gitHubChecker, GitLab: gitLabChecker}, nil
}

// AccessCheckers indexes the checkers by platform for the batch driver.
func (checkers PlatformCheckers) AccessCheckers() map[gitrepo.Platform]access.Checker {
	return map[gitrepo.Platform]access.Checker{
		gitrepo.PlatformGitHub: checkers.GitHub,
		gitrepo.PlatformGitLab: checkers.GitLab,
	}
}

// ArchiveLocators indexes the checkers by platform for the size probe.
func (checkers PlatformCheckers) ArchiveLocators() map[gitrepo.Platform]access.ArchiveLocator {
	return map[gitrepo.Platform]access.ArchiveLocator{
		gitrepo.PlatformGitHub: checkers.GitHub,
		gitrepo.PlatformGitLab: checkers.GitLab,
	}
}
