package audit

import (
	"sort"

	"go.uber.org/zap"

	"github.com/temirov/gitaccess/internal/composer"
	"github.com/temirov/gitaccess/internal/gitrepo"
	"github.com/temirov/gitaccess/internal/repos/shared"
)

const (
	logMessageDroppedURLConstant       = "dropping repository url without canonical form"
	logMessageTargetsCollectedConstant = "repository urls collected"
	logFieldRawCountConstant           = "raw_count"
	logFieldUniqueCountConstant        = "unique_count"
)

// ErrLockFileMissing reports that the composer lock file does not exist.
var ErrLockFileMissing = composer.ErrLockFileMissing

// LockTargets turns locked packages into targets keyed by canonical url.
// Packages whose url has no canonical form are dropped. The first package wins on duplicates.
func LockTargets(packages []composer.Package, logger *zap.Logger) []Target {
	targets := make([]Target, 0, len(packages))
	for _, lockedPackage := range packages {
		rawURL := lockedPackage.RepositoryURL()
		if len(rawURL) == 0 {
			continue
		}
		targets = append(targets, Target{Name: lockedPackage.Name, RepositoryURL: rawURL})
	}
	return canonicalTargets(targets, logger)
}

// URLTargets turns raw repository urls into targets named after the repository.
func URLTargets(rawURLs []string, logger *zap.Logger) []Target {
	targets := make([]Target, 0, len(rawURLs))
	for _, rawURL := range rawURLs {
		targets = append(targets, Target{RepositoryURL: rawURL})
	}
	return canonicalTargets(targets, logger)
}

// CheckoutTargets pairs local checkouts with the first package that has a url and whose machine name
// equals the checkout directory name. Checkouts without a matching package keep an empty url.
func CheckoutTargets(checkouts []shared.Checkout, packages []composer.Package) []Target {
	urlsByMachineName := composer.RepositoryURLsByMachineName(packages)
	targets := make([]Target, 0, len(checkouts))
	for _, checkout := range checkouts {
		targets = append(targets, Target{Name: checkout.MachineName, Directory: checkout.Path, RepositoryURL: urlsByMachineName[checkout.MachineName]})
	}
	return targets
}

func canonicalTargets(rawTargets []Target, logger *zap.Logger) []Target {
	if logger == nil {
		logger = zap.NewNop()
	}
	seen := make(map[string]struct{}, len(rawTargets))
	targets := make([]Target, 0, len(rawTargets))
	for _, rawTarget := range rawTargets {
		canonicalURL, canonicalError := gitrepo.CanonicalizeRepositoryURL(rawTarget.RepositoryURL)
		if canonicalError != nil {
			logger.Debug(logMessageDroppedURLConstant, zap.String(logFieldRepositoryURLConstant, rawTarget.RepositoryURL), zap.Error(canonicalError))
			continue
		}
		if _, duplicate := seen[canonicalURL]; duplicate {
			continue
		}
		seen[canonicalURL] = struct{}{}

		target := rawTarget
		target.RepositoryURL = canonicalURL
		if len(target.Name) == 0 {
			repositoryPath, _ := gitrepo.ExtractRepositoryPath(canonicalURL)
			target.Name = repositoryPath
		}
		targets = append(targets, target)
	}
	sort.SliceStable(targets, func(leftIndex int, rightIndex int) bool {
		return targets[leftIndex].RepositoryURL < targets[rightIndex].RepositoryURL
	})
	logger.Info(logMessageTargetsCollectedConstant, zap.Int(logFieldRawCountConstant, len(rawTargets)), zap.Int(logFieldUniqueCountConstant, len(targets)))
	return targets
}
