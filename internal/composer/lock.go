package composer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Package types that install into a contributed extension directory.
const (
	PackageTypeModule  = "drupal-module"
	PackageTypeProfile = "drupal-profile"
	PackageTypeTheme   = "drupal-theme"
)

const (
	packageNameSeparatorConstant     = "/"
	modulesContribDirectoryConstant  = "modules/contrib"
	profilesContribDirectoryConstant = "profiles/contrib"
	themesContribDirectoryConstant   = "themes/contrib"
	lockFileMissingMessageConstant   = "composer lock file not found"
	lockFileMissingTemplateConstant  = "%w: %s"
	lockFileReadTemplateConstant     = "unable to read composer lock file %s: %w"
	lockFileDecodeTemplateConstant   = "unable to parse composer lock file %s: %w"
)

// ErrLockFileMissing indicates the configured composer.lock does not exist.
var ErrLockFileMissing = errors.New(lockFileMissingMessageConstant)

// Package is one locked dependency.
type Package struct {
	Name   string         `json:"name"`
	Type   string         `json:"type"`
	Source *PackageOrigin `json:"source"`
	Dist   *PackageOrigin `json:"dist"`
}

// PackageOrigin is the source or dist block of a locked package.
type PackageOrigin struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	Reference string `json:"reference"`
}

type lockDocument struct {
	Packages            []Package `json:"packages"`
	DevelopmentPackages []Package `json:"packages-dev"`
}

// RepositoryURL returns source.url, falling back to dist.url.
func (lockedPackage Package) RepositoryURL() string {
	if lockedPackage.Source != nil && len(strings.TrimSpace(lockedPackage.Source.URL)) > 0 {
		return strings.TrimSpace(lockedPackage.Source.URL)
	}
	if lockedPackage.Dist != nil && len(strings.TrimSpace(lockedPackage.Dist.URL)) > 0 {
		return strings.TrimSpace(lockedPackage.Dist.URL)
	}
	return ""
}

// Reference returns source.reference, falling back to dist.reference.
func (lockedPackage Package) Reference() string {
	if lockedPackage.Source != nil && len(strings.TrimSpace(lockedPackage.Source.Reference)) > 0 {
		return strings.TrimSpace(lockedPackage.Source.Reference)
	}
	if lockedPackage.Dist != nil && len(strings.TrimSpace(lockedPackage.Dist.Reference)) > 0 {
		return strings.TrimSpace(lockedPackage.Dist.Reference)
	}
	return ""
}

// MachineName returns the part of the package name after the vendor prefix.
func (lockedPackage Package) MachineName() string {
	separatorIndex := strings.LastIndex(lockedPackage.Name, packageNameSeparatorConstant)
	if separatorIndex < 0 {
		return lockedPackage.Name
	}
	return lockedPackage.Name[separatorIndex+1:]
}

// InstallPath returns where the package lives below the docroot. Only contributed extensions have one.
func (lockedPackage Package) InstallPath(docroot string) (string, bool) {
	var contribDirectory string
	switch lockedPackage.Type {
	case PackageTypeModule:
		contribDirectory = modulesContribDirectoryConstant
	case PackageTypeProfile:
		contribDirectory = profilesContribDirectoryConstant
	case PackageTypeTheme:
		contribDirectory = themesContribDirectoryConstant
	default:
		return "", false
	}
	return filepath.Join(docroot, filepath.FromSlash(contribDirectory), lockedPackage.MachineName()), true
}

// LockReader reads composer.lock documents.
type LockReader struct {
	fileSystem afero.Fs
}

// NewLockReader constructs a LockReader on the provided filesystem, defaulting to the OS filesystem.
func NewLockReader(fileSystem afero.Fs) LockReader {
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	return LockReader{fileSystem: fileSystem}
}

// ReadPackages returns the packages and packages-dev sections in file order.
func (reader LockReader) ReadPackages(lockPath string) ([]Package, error) {
	contents, readError := afero.ReadFile(reader.fileSystem, lockPath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) || errors.Is(readError, os.ErrNotExist) {
			return nil, fmt.Errorf(lockFileMissingTemplateConstant, ErrLockFileMissing, lockPath)
		}
		return nil, fmt.Errorf(lockFileReadTemplateConstant, lockPath, readError)
	}

	var document lockDocument
	if decodeError := json.Unmarshal(contents, &document); decodeError != nil {
		return nil, fmt.Errorf(lockFileDecodeTemplateConstant, lockPath, decodeError)
	}
	packages := make([]Package, 0, len(document.Packages)+len(document.DevelopmentPackages))
	packages = append(packages, document.Packages...)
	packages = append(packages, document.DevelopmentPackages...)
	return packages, nil
}

// RepositoryURLsByMachineName maps each package machine name to its raw repository URL.
// Packages without a URL are omitted. The first package wins on duplicate machine names.
func RepositoryURLsByMachineName(packages []Package) map[string]string {
	repositoryURLs := make(map[string]string, len(packages))
	for _, lockedPackage := range packages {
		repositoryURL := lockedPackage.RepositoryURL()
		if len(repositoryURL) == 0 || len(lockedPackage.Name) == 0 {
			continue
		}
		machineName := lockedPackage.MachineName()
		if _, exists := repositoryURLs[machineName]; exists {
			continue
		}
		repositoryURLs[machineName] = repositoryURL
	}
	return repositoryURLs
}

// ContributedExtensions returns the modules, profiles and themes among the packages.
func ContributedExtensions(packages []Package) []Package {
	extensions := make([]Package, 0, len(packages))
	for _, lockedPackage := range packages {
		switch lockedPackage.Type {
		case PackageTypeModule, PackageTypeProfile, PackageTypeTheme:
			extensions = append(extensions, lockedPackage)
		}
	}
	return extensions
}
