package access

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/xanzy/go-gitlab"
	"go.uber.org/zap"

	"github.com/temirov/gitaccess/internal/gitrepo"
)

const (
	// DefaultGitLabBaseURLConstant is the Drupal GitLab instance.
	DefaultGitLabBaseURLConstant         = "https://git.drupalcode.org"
	gitLabTagOrderFieldConstant          = "updated"
	gitLabTagSortDirectionConstant       = "desc"
	gitLabArchiveURLTemplateConstant     = "%s/%s/-/archive/%s/%s-%s.zip"
	gitLabClientTemplateConstant         = "unable to construct GitLab client for %s: %w"
	gitLabTagLookupTemplateConstant      = "unable to list tags of %s: %w"
	gitLabNoTagsMessageConstant          = "repository has no tags"
	gitLabEmptyPathMessageConstant       = "repository path is empty"
	logMessageGitLabCheckConstant        = "GitLab access check"
	logFieldEffectiveAccessLevelConstant = "effective_access_level"
)

var errGitLabEmptyPath = errors.New(gitLabEmptyPathMessageConstant)

// GitLabCheckerConfiguration describes how to reach the GitLab API.
type GitLabCheckerConfiguration struct {
	Token      string
	BaseURL    string
	HTTPClient HTTPClientConfiguration
	Logger     *zap.Logger
}

// GitLabChecker classifies repository access through the GitLab REST API.
type GitLabChecker struct {
	client  *gitlab.Client
	baseURL string
	logger  *zap.Logger
}

// NewGitLabChecker constructs a checker authenticated with a private token.
func NewGitLabChecker(configuration GitLabCheckerConfiguration) (*GitLabChecker, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(configuration.BaseURL), trailingSlashConstant)
	if len(baseURL) == 0 {
		baseURL = DefaultGitLabBaseURLConstant
	}

	client, clientError := gitlab.NewClient(
		strings.TrimSpace(configuration.Token),
		gitlab.WithBaseURL(baseURL),
		gitlab.WithHTTPClient(NewHTTPClient(configuration.HTTPClient, nil)),
		gitlab.WithoutRetries(),
	)
	if clientError != nil {
		return nil, fmt.Errorf(gitLabClientTemplateConstant, baseURL, clientError)
	}

	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitLabChecker{client: client, baseURL: baseURL, logger: logger}, nil
}

// CheckAccess reports read-write when the higher of the project and group access levels reaches Developer.
// A non-nil error accompanies StatusCheckFailed only.
func (checker *GitLabChecker) CheckAccess(executionContext context.Context, repositoryPath string) (Status, error) {
	trimmedPath := strings.Trim(repositoryPath, trailingSlashConstant)
	if len(trimmedPath) == 0 {
		return checker.report(repositoryPath, StatusCheckFailed, 0, 0, CheckError{RepositoryPath: repositoryPath, Cause: errGitLabEmptyPath})
	}

	project, response, requestError := checker.client.Projects.GetProject(trimmedPath, nil, gitlab.WithContext(executionContext))
	statusCode := gitLabResponseStatusCode(response)
	if requestError != nil {
		if statusCode == 0 || isSuccessfulStatus(statusCode) {
			return checker.report(repositoryPath, StatusCheckFailed, statusCode, 0, CheckError{RepositoryPath: repositoryPath, HTTPStatus: statusCode, Cause: requestError})
		}
		status := ClassifyHTTPOutcome(statusCode, nil)
		if status == StatusCheckFailed {
			return checker.report(repositoryPath, status, statusCode, 0, CheckError{RepositoryPath: repositoryPath, HTTPStatus: statusCode, Cause: requestError})
		}
		return checker.report(repositoryPath, status, statusCode, 0, nil)
	}

	accessLevel := EffectiveAccessLevel(project)
	status := ClassifyHTTPOutcome(statusCode, func() bool {
		return accessLevel >= gitlab.DeveloperPermissions
	})
	return checker.report(repositoryPath, status, statusCode, accessLevel, nil)
}

// ArchiveURL returns the zip archive of the most recently updated tag.
func (checker *GitLabChecker) ArchiveURL(executionContext context.Context, repositoryPath string) (string, error) {
	trimmedPath := strings.Trim(repositoryPath, trailingSlashConstant)
	if len(trimmedPath) == 0 {
		return "", errGitLabEmptyPath
	}
	tags, _, tagsError := checker.client.Tags.ListTags(trimmedPath, &gitlab.ListTagsOptions{
		OrderBy: gitlab.Ptr(gitLabTagOrderFieldConstant),
		Sort:    gitlab.Ptr(gitLabTagSortDirectionConstant),
	}, gitlab.WithContext(executionContext))
	if tagsError != nil {
		return "", fmt.Errorf(gitLabTagLookupTemplateConstant, repositoryPath, tagsError)
	}
	if len(tags) == 0 || tags[0] == nil {
		return "", errors.New(gitLabNoTagsMessageConstant)
	}
	tagName := tags[0].Name
	escapedTagName := url.PathEscape(tagName)
	return fmt.Sprintf(gitLabArchiveURLTemplateConstant, checker.baseURL, trimmedPath, escapedTagName, gitrepo.RepositoryBaseName(trimmedPath), escapedTagName), nil
}

// EffectiveAccessLevel returns the higher of the project and group access levels. Missing levels count as zero.
func EffectiveAccessLevel(project *gitlab.Project) gitlab.AccessLevelValue {
	if project == nil || project.Permissions == nil {
		return gitlab.NoPermissions
	}
	effectiveLevel := gitlab.NoPermissions
	if project.Permissions.ProjectAccess != nil && project.Permissions.ProjectAccess.AccessLevel > effectiveLevel {
		effectiveLevel = project.Permissions.ProjectAccess.AccessLevel
	}
	if project.Permissions.GroupAccess != nil && project.Permissions.GroupAccess.AccessLevel > effectiveLevel {
		effectiveLevel = project.Permissions.GroupAccess.AccessLevel
	}
	return effectiveLevel
}

func (checker *GitLabChecker) report(repositoryPath string, status Status, statusCode int, accessLevel gitlab.AccessLevelValue, checkError error) (Status, error) {
	fields := []zap.Field{
		zap.String(logFieldPlatformConstant, string(gitrepo.PlatformGitLab)),
		zap.String(logFieldRepositoryPathConstant, repositoryPath),
		zap.String(logFieldAccessStatusConstant, string(status)),
		zap.Int(logFieldHTTPStatusConstant, statusCode),
		zap.Int(logFieldEffectiveAccessLevelConstant, int(accessLevel)),
	}
	if checkError != nil {
		fields = append(fields, zap.Error(checkError))
	}
	checker.logger.Debug(logMessageGitLabCheckConstant, fields...)
	return status, checkError
}

func gitLabResponseStatusCode(response *gitlab.Response) int {
	if response == nil || response.Response == nil {
		return 0
	}
	return response.StatusCode
}
