package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v28/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/temirov/gitaccess/internal/gitrepo"
)

const (
	// DefaultGitHubAPIURLConstant is the public GitHub REST endpoint.
	DefaultGitHubAPIURLConstant          = "https://api.github.com/"
	gitHubAPIVersionHeaderConstant       = "X-GitHub-Api-Version"
	gitHubAPIVersionValueConstant        = "2022-11-28"
	gitHubPushPermissionConstant         = "push"
	gitHubAdminPermissionConstant        = "admin"
	gitHubInvalidPathMessageConstant     = "repository path is not owner/name"
	gitHubNoReleaseMessageConstant       = "repository has no release archive"
	gitHubAPIURLParseTemplateConstant    = "invalid GitHub API url %q: %w"
	gitHubReleaseLookupTemplateConstant  = "unable to read latest release of %s: %w"
	logMessageGitHubCheckConstant        = "GitHub access check"
	logMessageMissingPermissionsConstant = "GitHub response has no permissions object, assuming read-only"
	logFieldRepositoryPathConstant       = "repository_path"
	logFieldPlatformConstant             = "platform"
	logFieldAccessStatusConstant         = "access_status"
	logFieldHTTPStatusConstant           = "http_status"
	trailingSlashConstant                = "/"
)

var errGitHubInvalidPath = errors.New(gitHubInvalidPathMessageConstant)

// GitHubCheckerConfiguration describes how to reach the GitHub API.
type GitHubCheckerConfiguration struct {
	Token      string
	APIBaseURL string
	HTTPClient HTTPClientConfiguration
	Logger     *zap.Logger
}

// GitHubChecker classifies repository access through the GitHub REST API.
type GitHubChecker struct {
	client *github.Client
	logger *zap.Logger
}

// NewGitHubChecker constructs a checker authenticated with a bearer token.
func NewGitHubChecker(configuration GitHubCheckerConfiguration) (*GitHubChecker, error) {
	apiBaseURL := strings.TrimSpace(configuration.APIBaseURL)
	if len(apiBaseURL) == 0 {
		apiBaseURL = DefaultGitHubAPIURLConstant
	}
	if !strings.HasSuffix(apiBaseURL, trailingSlashConstant) {
		apiBaseURL += trailingSlashConstant
	}
	parsedBaseURL, parseError := url.Parse(apiBaseURL)
	if parseError != nil {
		return nil, fmt.Errorf(gitHubAPIURLParseTemplateConstant, apiBaseURL, parseError)
	}

	token := strings.TrimSpace(configuration.Token)
	httpClient := NewHTTPClient(configuration.HTTPClient, func(base http.RoundTripper) http.RoundTripper {
		versionedTransport := headerTransport{base: base, headers: map[string]string{gitHubAPIVersionHeaderConstant: gitHubAPIVersionValueConstant}}
		if len(token) == 0 {
			return versionedTransport
		}
		return &oauth2.Transport{
			Base:   versionedTransport,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		}
	})

	client := github.NewClient(httpClient)
	client.BaseURL = parsedBaseURL

	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitHubChecker{client: client, logger: logger}, nil
}

// CheckAccess reports read-write when the token may push to or administer the repository.
// A non-nil error accompanies StatusCheckFailed only.
func (checker *GitHubChecker) CheckAccess(executionContext context.Context, repositoryPath string) (Status, error) {
	owner, repositoryName, ok := gitrepo.SplitOwnerRepository(repositoryPath)
	if !ok {
		return checker.report(repositoryPath, StatusCheckFailed, 0, CheckError{RepositoryPath: repositoryPath, Cause: errGitHubInvalidPath})
	}

	repository, response, requestError := checker.client.Repositories.Get(executionContext, owner, repositoryName)
	statusCode := responseStatusCode(response)
	if requestError != nil {
		if statusCode == 0 || isSuccessfulStatus(statusCode) {
			return checker.report(repositoryPath, StatusCheckFailed, statusCode, CheckError{RepositoryPath: repositoryPath, HTTPStatus: statusCode, Cause: requestError})
		}
		status := ClassifyHTTPOutcome(statusCode, nil)
		if status == StatusCheckFailed {
			return checker.report(repositoryPath, status, statusCode, CheckError{RepositoryPath: repositoryPath, HTTPStatus: statusCode, Cause: requestError})
		}
		return checker.report(repositoryPath, status, statusCode, nil)
	}

	if repository.Permissions == nil {
		checker.logger.Warn(logMessageMissingPermissionsConstant, zap.String(logFieldRepositoryPathConstant, repositoryPath))
	}
	permissions := repository.GetPermissions()
	status := ClassifyHTTPOutcome(statusCode, func() bool {
		return permissions[gitHubPushPermissionConstant] || permissions[gitHubAdminPermissionConstant]
	})
	return checker.report(repositoryPath, status, statusCode, nil)
}

// ArchiveURL returns the zipball of the latest release.
func (checker *GitHubChecker) ArchiveURL(executionContext context.Context, repositoryPath string) (string, error) {
	owner, repositoryName, ok := gitrepo.SplitOwnerRepository(repositoryPath)
	if !ok {
		return "", errGitHubInvalidPath
	}
	release, _, releaseError := checker.client.Repositories.GetLatestRelease(executionContext, owner, repositoryName)
	if releaseError != nil {
		return "", fmt.Errorf(gitHubReleaseLookupTemplateConstant, repositoryPath, releaseError)
	}
	zipballURL := release.GetZipballURL()
	if len(zipballURL) == 0 {
		return "", errors.New(gitHubNoReleaseMessageConstant)
	}
	return zipballURL, nil
}

func (checker *GitHubChecker) report(repositoryPath string, status Status, statusCode int, checkError error) (Status, error) {
	fields := []zap.Field{
		zap.String(logFieldPlatformConstant, string(gitrepo.PlatformGitHub)),
		zap.String(logFieldRepositoryPathConstant, repositoryPath),
		zap.String(logFieldAccessStatusConstant, string(status)),
		zap.Int(logFieldHTTPStatusConstant, statusCode),
	}
	if checkError != nil {
		fields = append(fields, zap.Error(checkError))
	}
	checker.logger.Debug(logMessageGitHubCheckConstant, fields...)
	return status, checkError
}

func responseStatusCode(response *github.Response) int {
	if response == nil || response.Response == nil {
		return 0
	}
	return response.StatusCode
}

func isSuccessfulStatus(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}
