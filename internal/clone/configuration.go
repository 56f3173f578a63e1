package clone

import "strings"

const (
	defaultLockFileConstant           = "composer.lock"
	defaultDocrootConstant            = "docroot"
	defaultRepositoriesRootConstant   = "repos"
	configurationKeySeparatorConstant = "."
	lockFileKeyConstant               = "lock_file"
	docrootKeyConstant                = "docroot"
	repositoriesRootKeyConstant       = "repositories_root"
	dryRunKeyConstant                 = "dry_run"
	assumeYesKeyConstant              = "assume_yes"
)

// CommandConfiguration captures persistent settings for the clone workflow.
type CommandConfiguration struct {
	LockFile         string `mapstructure:"lock_file"`
	Docroot          string `mapstructure:"docroot"`
	RepositoriesRoot string `mapstructure:"repositories_root"`
	DryRun           bool   `mapstructure:"dry_run"`
	AssumeYes        bool   `mapstructure:"assume_yes"`
}

// DefaultCommandConfiguration returns baseline configuration values for the clone workflow.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		LockFile:         defaultLockFileConstant,
		Docroot:          defaultDocrootConstant,
		RepositoriesRoot: defaultRepositoriesRootConstant,
	}
}

// DefaultConfigurationValues produces Viper defaults for the clone workflow.
func DefaultConfigurationValues(rootKey string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		configurationKey(rootKey, lockFileKeyConstant):         defaults.LockFile,
		configurationKey(rootKey, docrootKeyConstant):          defaults.Docroot,
		configurationKey(rootKey, repositoriesRootKeyConstant): defaults.RepositoriesRoot,
		configurationKey(rootKey, dryRunKeyConstant):           defaults.DryRun,
		configurationKey(rootKey, assumeYesKeyConstant):        defaults.AssumeYes,
	}
}

func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.LockFile = strings.TrimSpace(configuration.LockFile)
	if len(sanitized.LockFile) == 0 {
		sanitized.LockFile = defaults.LockFile
	}
	sanitized.Docroot = strings.TrimSpace(configuration.Docroot)
	if len(sanitized.Docroot) == 0 {
		sanitized.Docroot = defaults.Docroot
	}
	sanitized.RepositoriesRoot = strings.TrimSpace(configuration.RepositoriesRoot)
	if len(sanitized.RepositoriesRoot) == 0 {
		sanitized.RepositoriesRoot = defaults.RepositoriesRoot
	}

	return sanitized
}

func configurationKey(rootKey string, key string) string {
	if len(rootKey) == 0 {
		return key
	}
	return rootKey + configurationKeySeparatorConstant + key
}
