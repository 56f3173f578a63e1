package changes

import "strings"

const (
	defaultDocrootConstant            = "docroot"
	defaultLockFileConstant           = "composer.lock"
	defaultStateFileConstant          = "repo_access_cache.json"
	defaultBranchPrefixConstant       = "upgrade-drupal11-"
	defaultCommitMessageConstant      = "Drupal 11 upgrade: staged changes"
	configurationKeySeparatorConstant = "."
	docrootKeyConstant                = "docroot"
	lockFileKeyConstant               = "lock_file"
	stateFileKeyConstant              = "state_file"
	branchPrefixKeyConstant           = "branch_prefix"
	commitMessageKeyConstant          = "commit_message"
	interactiveKeyConstant            = "interactive"
)

// CommandConfiguration captures persistent settings for the changes workflow.
type CommandConfiguration struct {
	Docroot       string `mapstructure:"docroot"`
	LockFile      string `mapstructure:"lock_file"`
	StateFile     string `mapstructure:"state_file"`
	BranchPrefix  string `mapstructure:"branch_prefix"`
	CommitMessage string `mapstructure:"commit_message"`
	Interactive   bool   `mapstructure:"interactive"`
}

// DefaultCommandConfiguration returns baseline configuration values for the changes workflow.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Docroot:       defaultDocrootConstant,
		LockFile:      defaultLockFileConstant,
		StateFile:     defaultStateFileConstant,
		BranchPrefix:  defaultBranchPrefixConstant,
		CommitMessage: defaultCommitMessageConstant,
		Interactive:   false,
	}
}

// DefaultConfigurationValues produces Viper defaults for the changes workflow.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		configurationKey(rootKey, docrootKeyConstant):       defaults.Docroot,
		configurationKey(rootKey, lockFileKeyConstant):      defaults.LockFile,
		configurationKey(rootKey, stateFileKeyConstant):     defaults.StateFile,
		configurationKey(rootKey, branchPrefixKeyConstant):  defaults.BranchPrefix,
		configurationKey(rootKey, commitMessageKeyConstant): defaults.CommitMessage,
		configurationKey(rootKey, interactiveKeyConstant):   defaults.Interactive,
	}
}

// sanitize trims whitespace and restores defaults for empty paths and messages.
// An empty branch prefix is kept so that branch names can be bare timestamps.
func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.Docroot = strings.TrimSpace(configuration.Docroot)
	if len(sanitized.Docroot) == 0 {
		sanitized.Docroot = defaults.Docroot
	}
	sanitized.LockFile = strings.TrimSpace(configuration.LockFile)
	if len(sanitized.LockFile) == 0 {
		sanitized.LockFile = defaults.LockFile
	}
	sanitized.StateFile = strings.TrimSpace(configuration.StateFile)
	if len(sanitized.StateFile) == 0 {
		sanitized.StateFile = defaults.StateFile
	}
	sanitized.BranchPrefix = strings.TrimSpace(configuration.BranchPrefix)
	sanitized.CommitMessage = strings.TrimSpace(configuration.CommitMessage)
	if len(sanitized.CommitMessage) == 0 {
		sanitized.CommitMessage = defaults.CommitMessage
	}

	return sanitized
}

func configurationKey(rootKey string, key string) string {
	if len(rootKey) == 0 {
		return key
	}
	return rootKey + configurationKeySeparatorConstant + key
}
