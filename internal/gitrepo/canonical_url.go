package gitrepo

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	httpSchemePrefixConstant              = "http"
	httpsProtocolPrefixConstant           = "https://"
	gitUserPrefixConstant                 = "git@"
	sshPathDelimiterConstant              = ":"
	pathSeparatorConstant                 = "/"
	gitSuffixConstant                     = ".git"
	projectLandingPageMarkerConstant      = "drupal.org/project/"
	legacyCgitHostMarkerConstant          = "cgit.drupalcode.org/"
	canonicalizationErrorTemplateConstant = "%s: %s"
	emptyURLMessageConstant               = "repository url is empty"
	landingPageMessageConstant            = "project landing pages are not clonable"
	unsupportedSchemeMessageConstant      = "repository url must start with http(s):// or git@"
	missingRepositoryPathMessageConstant  = "repository url does not name a repository"
	unsupportedHostMessageConstant        = "repository host is not supported"
	queryOrFragmentMarkersConstant        = "?#"
)

// CanonicalizationError reports why a raw repository location has no canonical form.
type CanonicalizationError struct {
	Input   string
	Message string
}

// Error describes the rejection.
func (canonicalizationError CanonicalizationError) Error() string {
	return fmt.Sprintf(canonicalizationErrorTemplateConstant, canonicalizationError.Input, canonicalizationError.Message)
}

var (
	legacyCgitPattern        = regexp.MustCompile(`^https?://cgit\.drupalcode\.org/`)
	browseURLPattern         = regexp.MustCompile(`^(https?://|git@)(github\.com|git\.drupalcode\.org|git\.drupal\.org)[:/](.*?)(/-/tree/|/tree/).*$`)
	githubHTTPSPattern       = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)\.git$`)
	gitlabHTTPSPattern       = regexp.MustCompile(`^https://git\.drupalcode\.org/([^/]+)/([^/]+)\.git$`)
	gitlabLegacySSHPattern   = regexp.MustCompile(`^git@git\.drupalcode\.org:(.+)\.git$`)
	acceptedRepositoryFormat = regexp.MustCompile(`^(https?://|git@).*\.git$`)
)

const (
	legacyCgitReplacementConstant      = "https://git.drupalcode.org/"
	githubSSHReplacementConstant       = "git@github.com:$1/$2.git"
	gitlabSSHReplacementConstant       = "git@git.drupal.org:$1/$2.git"
	gitlabLegacySSHReplacementConstant = "git@git.drupal.org:$1.git"
	browseURLProtocolGroupConstant     = 1
	browseURLHostGroupConstant         = 2
	browseURLPathGroupConstant         = 3
	minimumHTTPSPathSegmentsConstant   = 2
)

// CanonicalizeRepositoryURL reduces a raw repository location to the single key used for caching.
// SSH shorthand is preferred for the supported hosts, and the result always ends in .git.
// Canonicalizing a canonical URL returns it unchanged.
func CanonicalizeRepositoryURL(rawURL string) (string, error) {
	candidate := strings.TrimSpace(rawURL)
	if len(candidate) == 0 {
		return "", CanonicalizationError{Input: rawURL, Message: emptyURLMessageConstant}
	}
	if strings.Contains(candidate, projectLandingPageMarkerConstant) {
		return "", CanonicalizationError{Input: rawURL, Message: landingPageMessageConstant}
	}
	if !strings.HasPrefix(candidate, httpSchemePrefixConstant) && !strings.HasPrefix(candidate, gitUserPrefixConstant) {
		return "", CanonicalizationError{Input: rawURL, Message: unsupportedSchemeMessageConstant}
	}
	// A query or fragment never names a different repository.
	if markerIndex := strings.IndexAny(candidate, queryOrFragmentMarkersConstant); markerIndex >= 0 {
		candidate = candidate[:markerIndex]
	}

	if strings.Contains(candidate, legacyCgitHostMarkerConstant) {
		candidate = legacyCgitPattern.ReplaceAllString(candidate, legacyCgitReplacementConstant)
		candidate = ensureGitSuffix(candidate)
	}

	if matches := browseURLPattern.FindStringSubmatch(candidate); matches != nil {
		separator := pathSeparatorConstant
		if matches[browseURLProtocolGroupConstant] == gitUserPrefixConstant {
			separator = sshPathDelimiterConstant
		}
		repositoryPath := strings.Trim(matches[browseURLPathGroupConstant], pathSeparatorConstant)
		candidate = ensureGitSuffix(matches[browseURLProtocolGroupConstant] + matches[browseURLHostGroupConstant] + separator + repositoryPath)
	}

	if !isSupportedHost(candidate) {
		return "", CanonicalizationError{Input: rawURL, Message: unsupportedHostMessageConstant}
	}

	if !strings.HasSuffix(candidate, gitSuffixConstant) {
		suffixed, suffixError := appendGitSuffixToRepositoryPath(rawURL, candidate)
		if suffixError != nil {
			return "", suffixError
		}
		candidate = suffixed
	}

	candidate = githubHTTPSPattern.ReplaceAllString(candidate, githubSSHReplacementConstant)
	candidate = gitlabHTTPSPattern.ReplaceAllString(candidate, gitlabSSHReplacementConstant)
	candidate = gitlabLegacySSHPattern.ReplaceAllString(candidate, gitlabLegacySSHReplacementConstant)

	if !acceptedRepositoryFormat.MatchString(candidate) {
		return "", CanonicalizationError{Input: rawURL, Message: missingRepositoryPathMessageConstant}
	}

	return candidate, nil
}

// appendGitSuffixToRepositoryPath adds .git only when the URL names an owner/name pair or uses the SSH colon form.
func appendGitSuffixToRepositoryPath(rawURL string, candidate string) (string, error) {
	trimmedCandidate := strings.TrimRight(candidate, pathSeparatorConstant)
	if strings.HasSuffix(trimmedCandidate, gitSuffixConstant) {
		return trimmedCandidate, nil
	}

	if strings.HasPrefix(trimmedCandidate, gitUserPrefixConstant) {
		delimiterIndex := strings.Index(trimmedCandidate, sshPathDelimiterConstant)
		if delimiterIndex < 0 || len(strings.Trim(trimmedCandidate[delimiterIndex+1:], pathSeparatorConstant)) == 0 {
			return "", CanonicalizationError{Input: rawURL, Message: missingRepositoryPathMessageConstant}
		}
		return trimmedCandidate + gitSuffixConstant, nil
	}

	parsedURL, parseError := url.Parse(trimmedCandidate)
	if parseError != nil {
		return "", CanonicalizationError{Input: rawURL, Message: parseError.Error()}
	}
	repositoryPath := strings.Trim(parsedURL.Path, pathSeparatorConstant)
	if len(strings.Split(repositoryPath, pathSeparatorConstant)) < minimumHTTPSPathSegmentsConstant || len(repositoryPath) == 0 {
		return "", CanonicalizationError{Input: rawURL, Message: missingRepositoryPathMessageConstant}
	}
	return trimmedCandidate + gitSuffixConstant, nil
}

func ensureGitSuffix(candidate string) string {
	trimmedCandidate := strings.TrimRight(candidate, pathSeparatorConstant)
	if strings.HasSuffix(trimmedCandidate, gitSuffixConstant) {
		return trimmedCandidate
	}
	return trimmedCandidate + gitSuffixConstant
}

func isSupportedHost(candidate string) bool {
	return ClassifyPlatform(candidate) != PlatformOther
}
