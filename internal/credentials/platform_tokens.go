package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

const (
	gitHubTokenMissingMessageConstant = "GitHub token not found in any configured source"
	gitLabTokenMissingMessageConstant = "GitLab token not found in any configured source"
	tokenSourceParseTemplateConstant  = "invalid token source %q: %w"
	dotenvLoadTemplateConstant        = "unable to load environment files: %w"
)

// ErrGitHubTokenMissing indicates no GitHub token could be resolved.
var ErrGitHubTokenMissing = errors.New(gitHubTokenMissingMessageConstant)

// ErrGitLabTokenMissing indicates no GitLab token could be resolved.
var ErrGitLabTokenMissing = errors.New(gitLabTokenMissingMessageConstant)

// PlatformTokenSources lists where each platform token may come from.
type PlatformTokenSources struct {
	GitHubSources []string
	GitLabSources []string
	DotenvFiles   []string
}

// PlatformTokens carries the resolved credentials.
type PlatformTokens struct {
	GitHubToken string
	GitLabToken string
}

// PlatformTokenLoader resolves both platform tokens from dotenv files, the process environment and token files.
type PlatformTokenLoader struct {
	FileSystem        afero.Fs
	EnvironmentLookup EnvironmentLookup
}

// Load resolves both tokens. Either one missing is a configuration error.
func (loader PlatformTokenLoader) Load(loadContext context.Context, sources PlatformTokenSources) (PlatformTokens, error) {
	fileSystem := loader.FileSystem
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}

	environmentLookup := loader.EnvironmentLookup
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}

	dotenvEnvironment, dotenvError := LoadDotenvFiles(fileSystem, sources.DotenvFiles)
	if dotenvError != nil {
		return PlatformTokens{}, fmt.Errorf(dotenvLoadTemplateConstant, dotenvError)
	}
	resolver := NewTokenResolver(ChainEnvironmentLookup(dotenvEnvironment, environmentLookup), fileSystem)

	gitHubToken, gitHubError := resolveFirst(loadContext, resolver, sources.GitHubSources, ErrGitHubTokenMissing)
	if gitHubError != nil {
		return PlatformTokens{}, gitHubError
	}
	gitLabToken, gitLabError := resolveFirst(loadContext, resolver, sources.GitLabSources, ErrGitLabTokenMissing)
	if gitLabError != nil {
		return PlatformTokens{}, gitLabError
	}
	return PlatformTokens{GitHubToken: gitHubToken, GitLabToken: gitLabToken}, nil
}

func resolveFirst(resolutionContext context.Context, resolver TokenResolver, sourceValues []string, missingError error) (string, error) {
	for _, sourceValue := range sourceValues {
		source, parseError := ParseTokenSource(sourceValue)
		if parseError != nil {
			return "", fmt.Errorf(tokenSourceParseTemplateConstant, sourceValue, parseError)
		}
		token, resolveError := resolver.ResolveToken(resolutionContext, source)
		if resolveError == nil {
			return token, nil
		}
	}
	return "", missingError
}
