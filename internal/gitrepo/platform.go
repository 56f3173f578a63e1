package gitrepo

import (
	"net/url"
	"strings"
)

// Platform identifies the hosting service of a repository.
type Platform string

// Supported platforms.
const (
	PlatformGitHub Platform = "github"
	PlatformGitLab Platform = "gitlab"
	PlatformOther  Platform = "other"
)

const (
	githubHostMarkerConstant = "github.com"
)

// gitLabHostMarkers covers the API/HTTPS host and the canonical SSH host of the Drupal GitLab instance.
var gitLabHostMarkers = []string{"git.drupalcode.org", "git.drupal.org"}

// ClassifyPlatform maps a repository URL to its hosting platform by host substring.
func ClassifyPlatform(repositoryURL string) Platform {
	if strings.Contains(repositoryURL, githubHostMarkerConstant) {
		return PlatformGitHub
	}
	for _, marker := range gitLabHostMarkers {
		if strings.Contains(repositoryURL, marker) {
			return PlatformGitLab
		}
	}
	return PlatformOther
}

// ExtractRepositoryPath returns owner/name (GitHub) or namespace/project (GitLab) for SSH shorthand
// and HTTPS URLs. The boolean is false when no path can be derived.
func ExtractRepositoryPath(repositoryURL string) (string, bool) {
	trimmedURL := strings.TrimSpace(repositoryURL)

	var repositoryPath string
	switch {
	case strings.HasPrefix(trimmedURL, gitUserPrefixConstant):
		delimiterIndex := strings.Index(trimmedURL, sshPathDelimiterConstant)
		if delimiterIndex < 0 {
			return "", false
		}
		repositoryPath = trimmedURL[delimiterIndex+1:]
	case strings.HasPrefix(trimmedURL, httpsProtocolPrefixConstant):
		parsedURL, parseError := url.Parse(trimmedURL)
		if parseError != nil {
			return "", false
		}
		repositoryPath = strings.TrimPrefix(parsedURL.Path, pathSeparatorConstant)
	default:
		return "", false
	}

	repositoryPath = strings.TrimSuffix(repositoryPath, gitSuffixConstant)
	if len(strings.Trim(repositoryPath, pathSeparatorConstant)) == 0 {
		return "", false
	}
	return repositoryPath, true
}

// RepositoryBaseName returns the final segment of a repository path.
func RepositoryBaseName(repositoryPath string) string {
	trimmedPath := strings.Trim(repositoryPath, pathSeparatorConstant)
	separatorIndex := strings.LastIndex(trimmedPath, pathSeparatorConstant)
	if separatorIndex < 0 {
		return trimmedPath
	}
	return trimmedPath[separatorIndex+1:]
}

// SplitOwnerRepository separates owner and repository name for GitHub paths.
func SplitOwnerRepository(repositoryPath string) (string, string, bool) {
	owner, repository, found := strings.Cut(strings.Trim(repositoryPath, pathSeparatorConstant), pathSeparatorConstant)
	if !found || len(owner) == 0 || len(repository) == 0 || strings.Contains(repository, pathSeparatorConstant) {
		return "", "", false
	}
	return owner, repository, true
}
