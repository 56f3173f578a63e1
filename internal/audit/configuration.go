package audit

import (
	"strings"
	"time"

	"github.com/temirov/gitaccess/internal/access"
)

const (
	// ReportFormatText renders the human-readable summary.
	ReportFormatText = "text"
	// ReportFormatJSON renders the summary as JSON.
	ReportFormatJSON = "json"
	// ReportFormatYAML renders the summary as YAML.
	ReportFormatYAML = "yaml"

	defaultLockFileConstant              = "composer.lock"
	defaultAccessStateFileConstant       = "docs_generation_state.json"
	defaultGitHubTokenSourceConstant     = "env:GITHUB_TOKEN"
	defaultGitLabTokenSourceConstant     = "env:GITLAB_DO_TOKEN"
	defaultLocalDotenvFileConstant       = ".env"
	defaultParentDotenvFileConstant      = "../.env"
	defaultConnectTimeoutConstant        = 5 * time.Second
	defaultRequestTimeoutConstant        = 15 * time.Second
	defaultRequestDelayConstant          = 50 * time.Millisecond
	defaultSizeProbeTimeoutConstant      = 10 * time.Second
	defaultComposerTimeoutConstant       = 120 * time.Second
	configurationKeySeparatorConstant    = "."
	lockFileKeyConstant                  = "lock_file"
	composerDirectoryKeyConstant         = "composer_dir"
	stateFileKeyConstant                 = "state_file"
	forceAccessCheckKeyConstant          = "force_access_check"
	showProblematicKeyConstant           = "show_problematic"
	reportFormatKeyConstant              = "report_format"
	sizeCheckTargetsKeyConstant          = "size_check_targets"
	composerTimeoutKeyConstant           = "composer_timeout"
	gitHubAPIURLKeyConstant              = "github_api_url"
	gitLabBaseURLKeyConstant             = "gitlab_base_url"
	gitHubTokenSourcesKeyConstant        = "github_token_sources"
	gitLabTokenSourcesKeyConstant        = "gitlab_token_sources"
	dotenvFilesKeyConstant               = "dotenv_files"
	connectTimeoutKeyConstant            = "connect_timeout"
	requestTimeoutKeyConstant            = "request_timeout"
	requestDelayKeyConstant              = "request_delay"
	sizeProbeTimeoutKeyConstant          = "size_probe_timeout"
	defaultSizeCheckGitHubTargetConstant = "https://github.com/YCloudYUSA/y_lb.git"
	defaultSizeCheckGitLabTargetConstant = "https://git.drupalcode.org/project/ws_small_y.git"
)

// PlatformConfiguration describes how to reach and authenticate against the hosting platforms.
type PlatformConfiguration struct {
	GitHubAPIURL       string        `mapstructure:"github_api_url"`
	GitLabBaseURL      string        `mapstructure:"gitlab_base_url"`
	GitHubTokenSources []string      `mapstructure:"github_token_sources"`
	GitLabTokenSources []string      `mapstructure:"gitlab_token_sources"`
	DotenvFiles        []string      `mapstructure:"dotenv_files"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	RequestDelay       time.Duration `mapstructure:"request_delay"`
	SizeProbeTimeout   time.Duration `mapstructure:"size_probe_timeout"`
}

// DefaultPlatformConfiguration targets the public GitHub API and the Drupal GitLab instance.
func DefaultPlatformConfiguration() PlatformConfiguration {
	return PlatformConfiguration{
		GitHubAPIURL:       access.DefaultGitHubAPIURLConstant,
		GitLabBaseURL:      access.DefaultGitLabBaseURLConstant,
		GitHubTokenSources: []string{defaultGitHubTokenSourceConstant},
		GitLabTokenSources: []string{defaultGitLabTokenSourceConstant},
		DotenvFiles:        []string{defaultLocalDotenvFileConstant, defaultParentDotenvFileConstant},
		ConnectTimeout:     defaultConnectTimeoutConstant,
		RequestTimeout:     defaultRequestTimeoutConstant,
		RequestDelay:       defaultRequestDelayConstant,
		SizeProbeTimeout:   defaultSizeProbeTimeoutConstant,
	}
}

// DefaultPlatformConfigurationValues produces Viper defaults for platform settings.
func DefaultPlatformConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultPlatformConfiguration()
	return map[string]any{
		configurationKey(rootKey, gitHubAPIURLKeyConstant):       defaults.GitHubAPIURL,
		configurationKey(rootKey, gitLabBaseURLKeyConstant):      defaults.GitLabBaseURL,
		configurationKey(rootKey, gitHubTokenSourcesKeyConstant): defaults.GitHubTokenSources,
		configurationKey(rootKey, gitLabTokenSourcesKeyConstant): defaults.GitLabTokenSources,
		configurationKey(rootKey, dotenvFilesKeyConstant):        defaults.DotenvFiles,
		configurationKey(rootKey, connectTimeoutKeyConstant):     defaults.ConnectTimeout,
		configurationKey(rootKey, requestTimeoutKeyConstant):     defaults.RequestTimeout,
		configurationKey(rootKey, requestDelayKeyConstant):       defaults.RequestDelay,
		configurationKey(rootKey, sizeProbeTimeoutKeyConstant):   defaults.SizeProbeTimeout,
	}
}

// HTTPClientConfiguration extracts the API client timeouts.
func (configuration PlatformConfiguration) HTTPClientConfiguration() access.HTTPClientConfiguration {
	return access.HTTPClientConfiguration{
		ConnectTimeout: configuration.ConnectTimeout,
		RequestTimeout: configuration.RequestTimeout,
	}
}

// Sanitize trims values and restores defaults for unset endpoints and timeouts.
// A zero request delay is kept since it disables the pause.
func (configuration PlatformConfiguration) Sanitize() PlatformConfiguration {
	defaults := DefaultPlatformConfiguration()
	sanitized := configuration

	sanitized.GitHubAPIURL = strings.TrimSpace(configuration.GitHubAPIURL)
	if len(sanitized.GitHubAPIURL) == 0 {
		sanitized.GitHubAPIURL = defaults.GitHubAPIURL
	}
	sanitized.GitLabBaseURL = strings.TrimSpace(configuration.GitLabBaseURL)
	if len(sanitized.GitLabBaseURL) == 0 {
		sanitized.GitLabBaseURL = defaults.GitLabBaseURL
	}
	sanitized.GitHubTokenSources = trimValues(configuration.GitHubTokenSources)
	if len(sanitized.GitHubTokenSources) == 0 {
		sanitized.GitHubTokenSources = defaults.GitHubTokenSources
	}
	sanitized.GitLabTokenSources = trimValues(configuration.GitLabTokenSources)
	if len(sanitized.GitLabTokenSources) == 0 {
		sanitized.GitLabTokenSources = defaults.GitLabTokenSources
	}
	sanitized.DotenvFiles = trimValues(configuration.DotenvFiles)
	if configuration.ConnectTimeout <= 0 {
		sanitized.ConnectTimeout = defaults.ConnectTimeout
	}
	if configuration.RequestTimeout <= 0 {
		sanitized.RequestTimeout = defaults.RequestTimeout
	}
	if configuration.RequestDelay < 0 {
		sanitized.RequestDelay = 0
	}
	if configuration.SizeProbeTimeout <= 0 {
		sanitized.SizeProbeTimeout = defaults.SizeProbeTimeout
	}
	return sanitized
}

// CommandConfiguration captures persistent settings for the access command.
type CommandConfiguration struct {
	LockFile          string        `mapstructure:"lock_file"`
	ComposerDirectory string        `mapstructure:"composer_dir"`
	ComposerTimeout   time.Duration `mapstructure:"composer_timeout"`
	StateFile         string        `mapstructure:"state_file"`
	ForceAccessCheck  bool          `mapstructure:"force_access_check"`
	ShowProblematic   bool          `mapstructure:"show_problematic"`
	ReportFormat      string        `mapstructure:"report_format"`
	SizeCheckTargets  []string      `mapstructure:"size_check_targets"`
}

// DefaultCommandConfiguration returns baseline configuration values for the access command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		LockFile:          defaultLockFileConstant,
		ComposerDirectory: "",
		ComposerTimeout:   defaultComposerTimeoutConstant,
		StateFile:         defaultAccessStateFileConstant,
		ForceAccessCheck:  false,
		ShowProblematic:   false,
		ReportFormat:      ReportFormatText,
		SizeCheckTargets:  []string{defaultSizeCheckGitHubTargetConstant, defaultSizeCheckGitLabTargetConstant},
	}
}

// DefaultConfigurationValues produces Viper defaults for the access command.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		configurationKey(rootKey, lockFileKeyConstant):          defaults.LockFile,
		configurationKey(rootKey, composerDirectoryKeyConstant): defaults.ComposerDirectory,
		configurationKey(rootKey, composerTimeoutKeyConstant):   defaults.ComposerTimeout,
		configurationKey(rootKey, stateFileKeyConstant):         defaults.StateFile,
		configurationKey(rootKey, forceAccessCheckKeyConstant):  defaults.ForceAccessCheck,
		configurationKey(rootKey, showProblematicKeyConstant):   defaults.ShowProblematic,
		configurationKey(rootKey, reportFormatKeyConstant):      defaults.ReportFormat,
		configurationKey(rootKey, sizeCheckTargetsKeyConstant):  defaults.SizeCheckTargets,
	}
}

// sanitize trims whitespace and applies defaults to unset configuration values.
func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.LockFile = strings.TrimSpace(configuration.LockFile)
	if len(sanitized.LockFile) == 0 {
		sanitized.LockFile = defaults.LockFile
	}
	sanitized.ComposerDirectory = strings.TrimSpace(configuration.ComposerDirectory)
	if configuration.ComposerTimeout <= 0 {
		sanitized.ComposerTimeout = defaults.ComposerTimeout
	}
	sanitized.StateFile = strings.TrimSpace(configuration.StateFile)
	if len(sanitized.StateFile) == 0 {
		sanitized.StateFile = defaults.StateFile
	}
	sanitized.ReportFormat = strings.ToLower(strings.TrimSpace(configuration.ReportFormat))
	if len(sanitized.ReportFormat) == 0 {
		sanitized.ReportFormat = defaults.ReportFormat
	}
	sanitized.SizeCheckTargets = trimValues(configuration.SizeCheckTargets)

	return sanitized
}

func configurationKey(rootKey string, key string) string {
	if len(rootKey) == 0 {
		return key
	}
	return rootKey + configurationKeySeparatorConstant + key
}

func trimValues(raw []string) []string {
	sanitized := make([]string, 0, len(raw))
	for _, candidate := range raw {
		trimmed := strings.TrimSpace(candidate)
		if len(trimmed) == 0 {
			continue
		}
		sanitized = append(sanitized, trimmed)
	}
	return sanitized
}
