package composer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/temirov/gitaccess/internal/execshell"
)

const testLockContentsConstant = `{
  "packages": [
    {"name": "acme/widget", "type": "drupal-module", "source": {"type": "git", "url": "https://github.com/acme/widget.git", "reference": "abc123"}},
    {"name": "drupal/foo", "type": "drupal-module", "source": null, "dist": {"type": "zip", "url": "https://git.drupalcode.org/project/foo.git", "reference": "def456"}},
    {"name": "drupal/y_lb", "type": "drupal-profile", "source": {"type": "git", "url": "https://github.com/YCloudYUSA/y_lb.git", "reference": "1.0.0"}},
    {"name": "symfony/console", "type": "library", "source": {"type": "git", "url": "https://github.com/symfony/console.git"}},
    {"name": "drupal/core", "type": "drupal-core"}
  ],
  "packages-dev": [
    {"name": "drupal/olivero_plus", "type": "drupal-theme", "source": {"type": "git", "url": "https://git.drupalcode.org/project/olivero_plus.git"}}
  ]
}`

type stubComposerExecutor struct {
	output          string
	failure         error
	receivedArgs    []string
	receivedDir     string
	receivedTimeout time.Duration
}

func (executor *stubComposerExecutor) ExecuteComposer(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.receivedArgs = details.Arguments
	executor.receivedDir = details.WorkingDirectory
	executor.receivedTimeout = details.Timeout
	if executor.failure != nil {
		return execshell.ExecutionResult{}, executor.failure
	}
	return execshell.ExecutionResult{StandardOutput: executor.output}, nil
}

func TestLockReaderReadsBothSections(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, afero.WriteFile(fileSystem, "composer.lock", []byte(testLockContentsConstant), 0o644))

	packages, readError := NewLockReader(fileSystem).ReadPackages("composer.lock")
	require.NoError(testInstance, readError)
	require.Len(testInstance, packages, 6)
	require.Equal(testInstance, "drupal/olivero_plus", packages[5].Name)

	require.Equal(testInstance, map[string]string{
		"widget":       "https://github.com/acme/widget.git",
		"foo":          "https://git.drupalcode.org/project/foo.git",
		"y_lb":         "https://github.com/YCloudYUSA/y_lb.git",
		"console":      "https://github.com/symfony/console.git",
		"olivero_plus": "https://git.drupalcode.org/project/olivero_plus.git",
	}, RepositoryURLsByMachineName(packages))

	extensions := ContributedExtensions(packages)
	extensionNames := make([]string, 0, len(extensions))
	for _, extension := range extensions {
		extensionNames = append(extensionNames, extension.Name)
	}
	require.Equal(testInstance, []string{"acme/widget", "drupal/foo", "drupal/y_lb", "drupal/olivero_plus"}, extensionNames)
}

func TestLockReaderReportsMissingFile(testInstance *testing.T) {
	_, readError := NewLockReader(afero.NewMemMapFs()).ReadPackages("composer.lock")
	require.ErrorIs(testInstance, readError, ErrLockFileMissing)
}

func TestLockReaderReportsMalformedFile(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, afero.WriteFile(fileSystem, "composer.lock", []byte("{"), 0o644))

	_, readError := NewLockReader(fileSystem).ReadPackages("composer.lock")
	require.Error(testInstance, readError)
	require.False(testInstance, errors.Is(readError, ErrLockFileMissing))
}

func TestPackageAccessors(testInstance *testing.T) {
	testCases := []struct {
		name                string
		lockedPackage       Package
		expectedURL         string
		expectedReference   string
		expectedInstallPath string
		expectedInstallable bool
	}{
		{
			name:                "module_with_source",
			lockedPackage:       Package{Name: "acme/widget", Type: PackageTypeModule, Source: &PackageOrigin{URL: "https://github.com/acme/widget.git", Reference: "abc123"}, Dist: &PackageOrigin{URL: "https://example.com/widget.zip", Reference: "zzz"}},
			expectedURL:         "https://github.com/acme/widget.git",
			expectedReference:   "abc123",
			expectedInstallPath: filepath.Join("docroot", "modules", "contrib", "widget"),
			expectedInstallable: true,
		},
		{
			name:                "profile_with_dist_only",
			lockedPackage:       Package{Name: "drupal/y_lb", Type: PackageTypeProfile, Dist: &PackageOrigin{URL: "https://github.com/YCloudYUSA/y_lb.git", Reference: "1.0.0"}},
			expectedURL:         "https://github.com/YCloudYUSA/y_lb.git",
			expectedReference:   "1.0.0",
			expectedInstallPath: filepath.Join("docroot", "profiles", "contrib", "y_lb"),
			expectedInstallable: true,
		},
		{
			name:                "library",
			lockedPackage:       Package{Name: "symfony/console", Type: "library"},
			expectedInstallable: false,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedURL, testCase.lockedPackage.RepositoryURL())
			require.Equal(testInstance, testCase.expectedReference, testCase.lockedPackage.Reference())
			installPath, installable := testCase.lockedPackage.InstallPath("docroot")
			require.Equal(testInstance, testCase.expectedInstallable, installable)
			require.Equal(testInstance, testCase.expectedInstallPath, installPath)
		})
	}
}

func TestParseShowOutput(testInstance *testing.T) {
	output := `{"installed": [
		{"name": "acme/widget", "source": "https://github.com/acme/widget.git"},
		{"name": "drupal/foo", "source": {"type": "git", "url": "https://git.drupalcode.org/project/foo.git"}},
		{"name": "drupal/bar", "dist": {"type": "git", "url": "https://git.drupalcode.org/project/bar.git"}},
		{"name": "vendor/zip", "dist": {"type": "zip", "url": "https://example.com/zip.zip"}},
		{"name": "vendor/none", "source": null}
	]}`

	repositoryURLs, parseError := ParseShowOutput([]byte(output))
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, []string{
		"https://github.com/acme/widget.git",
		"https://git.drupalcode.org/project/foo.git",
		"https://git.drupalcode.org/project/bar.git",
	}, repositoryURLs)

	_, missingError := ParseShowOutput([]byte(`{"versions": []}`))
	require.Error(testInstance, missingError)
}

func TestInstalledRepositoryURLsRunsComposerShow(testInstance *testing.T) {
	executor := &stubComposerExecutor{output: `{"installed": [{"source": "https://github.com/acme/widget.git"}]}`}

	repositoryURLs, listError := InstalledRepositoryURLs(context.Background(), executor, "distribution", 2*time.Minute)
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []string{"https://github.com/acme/widget.git"}, repositoryURLs)
	require.Equal(testInstance, "show --installed --format=json", strings.Join(executor.receivedArgs, " "))
	require.Equal(testInstance, "distribution", executor.receivedDir)
	require.Equal(testInstance, 2*time.Minute, executor.receivedTimeout)

	failure := errors.New("composer: command not found")
	_, failureError := InstalledRepositoryURLs(context.Background(), &stubComposerExecutor{failure: failure}, "distribution", 0)
	require.ErrorIs(testInstance, failureError, failure)

	_, missingExecutorError := InstalledRepositoryURLs(context.Background(), nil, "distribution", 0)
	require.ErrorIs(testInstance, missingExecutorError, ErrComposerExecutorNotConfigured)
}
