package audit_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/gitaccess/internal/access"
	"github.com/temirov/gitaccess/internal/audit"
	"github.com/temirov/gitaccess/internal/composer"
	"github.com/temirov/gitaccess/internal/gitrepo"
	"github.com/temirov/gitaccess/internal/state"
)

type recordingSizeProbe struct {
	paths []string
}

func (probe *recordingSizeProbe) Probe(executionContext context.Context, platform gitrepo.Platform, repositoryPath string) (access.ArchiveSize, error) {
	probe.paths = append(probe.paths, string(platform)+":"+repositoryPath)
	return access.ArchiveSize{ArchiveURL: "https://example.test/archive.zip", Bytes: 2048}, nil
}

func TestBatchDriverPartitionsLockPackagesAgainstPlatformAPIs(testInstance *testing.T) {
	gitHubServer := newPlatformServer(testInstance, map[string]string{"/repos/acme/widget": gitHubWidgetPushResponse})
	gitLabServer := newPlatformServer(testInstance, map[string]string{"/api/v4/projects/project%2Ffoo": gitLabFooGuestResponse})

	driverConfiguration := audit.DriverConfiguration{GitHubToken: testGitHubTokenConstant, GitLabToken: testGitLabTokenConstant}
	platformCheckers, checkersError := audit.NewPlatformCheckers(driverConfiguration, audit.PlatformConfiguration{
		GitHubAPIURL:  gitHubServer.URL(),
		GitLabBaseURL: gitLabServer.URL(),
	}, zap.NewNop())
	require.NoError(testInstance, checkersError)

	packages := []composer.Package{
		{Name: "acme/widget", Type: composer.PackageTypeModule, Source: &composer.PackageOrigin{Type: "git", URL: widgetRepositoryURL}},
		{Name: "drupal/foo", Type: composer.PackageTypeModule, Source: &composer.PackageOrigin{Type: "git", URL: fooRepositoryURL}},
	}
	targets := audit.LockTargets(packages, zap.NewNop())

	document := state.NewDocument()
	driver := audit.NewBatchDriver(driverConfiguration, audit.DriverDependencies{Checkers: platformCheckers.AccessCheckers()})
	result := driver.Run(context.Background(), targets, document)

	require.Len(testInstance, result.Writable, 1)
	require.Equal(testInstance, "acme/widget", result.Writable[0].Target.Name)
	require.Equal(testInstance, widgetCanonicalURL, result.Writable[0].CanonicalURL)

	require.Len(testInstance, result.ReadOnly, 1)
	require.Equal(testInstance, "drupal/foo", result.ReadOnly[0].Target.Name)
	require.Equal(testInstance, string(access.StatusReadOnly), result.ReadOnly[0].Reason)

	require.Equal(testInstance, access.StatusReadWrite, document.CachedAccessStatus(widgetCanonicalURL))
	require.Equal(testInstance, access.StatusReadOnly, document.CachedAccessStatus(fooCanonicalURL))
	require.Equal(testInstance, 2, result.Summary.Added)
	require.Equal(testInstance, 0, result.Summary.Updated)
	require.Equal(testInstance, 1, gitHubServer.RequestCount("/repos/acme/widget"))
	require.Equal(testInstance, 1, gitLabServer.RequestCount("/api/v4/projects/project%2Ffoo"))
	require.False(testInstance, result.Summary.HasFailures())
}

func TestBatchDriverTreatsCachedReadWriteAsSticky(testInstance *testing.T) {
	testCases := []struct {
		name            string
		force           bool
		expectedCalls   int
		expectedStatus  access.Status
		expectedSkipped int
		expectedUpdated int
	}{
		{name: "cached_without_force", force: false, expectedCalls: 0, expectedStatus: access.StatusReadWrite, expectedSkipped: 1, expectedUpdated: 0},
		{name: "forced_recheck_downgrades", force: true, expectedCalls: 1, expectedStatus: access.StatusReadOnly, expectedSkipped: 0, expectedUpdated: 1},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			document := state.NewDocument()
			document.Merge(widgetCanonicalURL, access.StatusReadWrite)
			branchName := "upgrade-drupal11-20250101_000000"
			document.Repositories[widgetCanonicalURL].BranchName = &branchName

			checker := &recordingChecker{statuses: map[string]access.Status{"acme/widget": access.StatusReadOnly}}
			driver := audit.NewBatchDriver(
				audit.DriverConfiguration{ForceRecheck: testCase.force},
				audit.DriverDependencies{Checkers: map[gitrepo.Platform]access.Checker{gitrepo.PlatformGitHub: checker}},
			)

			result := driver.Run(context.Background(), []audit.Target{{Name: "widget", RepositoryURL: widgetRepositoryURL}}, document)

			require.Len(testInstance, checker.paths, testCase.expectedCalls)
			require.Equal(testInstance, testCase.expectedStatus, document.CachedAccessStatus(widgetCanonicalURL))
			require.Equal(testInstance, testCase.expectedSkipped, result.Summary.Count(gitrepo.PlatformGitHub, audit.CounterSkipped))
			require.Equal(testInstance, testCase.expectedUpdated, result.Summary.Updated)
			require.Equal(testInstance, branchName, *document.Repositories[widgetCanonicalURL].BranchName)
		})
	}
}

func TestBatchDriverReverifiesCachedNegativeStatuses(testInstance *testing.T) {
	document := state.NewDocument()
	document.Merge(widgetCanonicalURL, access.StatusReadOnly)

	checker := &recordingChecker{statuses: map[string]access.Status{"acme/widget": access.StatusReadWrite}}
	driver := audit.NewBatchDriver(audit.DriverConfiguration{}, audit.DriverDependencies{
		Checkers: map[gitrepo.Platform]access.Checker{gitrepo.PlatformGitHub: checker},
	})

	result := driver.Run(context.Background(), []audit.Target{{Name: "widget", RepositoryURL: widgetCanonicalURL}}, document)

	require.Equal(testInstance, []string{"acme/widget"}, checker.paths)
	require.Len(testInstance, result.Writable, 1)
	require.Equal(testInstance, 1, result.Summary.Updated)
}

func TestBatchDriverRecordsReasonsWithoutNetworkCalls(testInstance *testing.T) {
	testCases := []struct {
		name             string
		target           audit.Target
		expectedStatus   access.Status
		expectedReason   string
		expectedPlatform gitrepo.Platform
		expectTracked    bool
	}{
		{
			name:             "missing_url",
			target:           audit.Target{Name: "orphan"},
			expectedStatus:   access.StatusUnknown,
			expectedReason:   audit.ReasonNoRepositoryURL,
			expectedPlatform: gitrepo.PlatformOther,
		},
		{
			name:             "unsupported_host",
			target:           audit.Target{Name: "elsewhere", RepositoryURL: "https://bitbucket.org/acme/elsewhere.git"},
			expectedStatus:   access.StatusUnknown,
			expectedReason:   audit.ReasonUnknownPlatform,
			expectedPlatform: gitrepo.PlatformOther,
		},
		{
			name:             "supported_host_without_repository",
			target:           audit.Target{Name: "bare", RepositoryURL: "https://github.com/acme"},
			expectedStatus:   access.StatusCheckFailed,
			expectedReason:   string(access.StatusCheckFailed),
			expectedPlatform: gitrepo.PlatformGitHub,
		},
		{
			name:             "platform_without_checker",
			target:           audit.Target{Name: "foo", RepositoryURL: fooRepositoryURL},
			expectedStatus:   access.StatusUnknown,
			expectedReason:   string(access.StatusUnknown),
			expectedPlatform: gitrepo.PlatformGitLab,
			expectTracked:    true,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			checker := &recordingChecker{}
			driver := audit.NewBatchDriver(audit.DriverConfiguration{}, audit.DriverDependencies{
				Checkers: map[gitrepo.Platform]access.Checker{gitrepo.PlatformGitHub: checker},
			})
			document := state.NewDocument()

			result := driver.Run(context.Background(), []audit.Target{testCase.target}, document)

			require.Empty(testInstance, checker.paths)
			require.Empty(testInstance, result.Writable)
			require.Len(testInstance, result.ReadOnly, 1)
			outcome := result.ReadOnly[0]
			require.Equal(testInstance, testCase.expectedStatus, outcome.Status)
			require.Equal(testInstance, testCase.expectedReason, outcome.Reason)
			require.Equal(testInstance, testCase.expectedPlatform, outcome.Platform)
			require.Equal(testInstance, testCase.expectTracked, len(document.Repositories) == 1)
		})
	}
}

func TestBatchDriverContinuesPastCheckFailures(testInstance *testing.T) {
	observerCore, observedLogs := observer.New(zapcore.WarnLevel)
	checker := &recordingChecker{
		statuses: map[string]access.Status{"acme/second": access.StatusReadWrite},
		failures: map[string]error{"acme/first": access.CheckError{RepositoryPath: "acme/first", Cause: errors.New("connection reset")}},
	}
	driver := audit.NewBatchDriver(audit.DriverConfiguration{}, audit.DriverDependencies{
		Checkers: map[gitrepo.Platform]access.Checker{gitrepo.PlatformGitHub: checker},
		Logger:   zap.New(observerCore),
	})
	document := state.NewDocument()

	result := driver.Run(context.Background(), []audit.Target{
		{Name: "first", RepositoryURL: "https://github.com/acme/first.git"},
		{Name: "second", RepositoryURL: "https://github.com/acme/second.git"},
	}, document)

	require.Equal(testInstance, []string{"acme/first", "acme/second"}, checker.paths)
	require.Len(testInstance, result.Writable, 1)
	require.Equal(testInstance, access.StatusCheckFailed, document.CachedAccessStatus("git@github.com:acme/first.git"))
	require.True(testInstance, result.Summary.HasFailures())
	require.Equal(testInstance, []audit.ProblematicRepository{
		{Status: access.StatusCheckFailed, Platform: gitrepo.PlatformGitHub, RepositoryURL: "git@github.com:acme/first.git"},
	}, result.Summary.Problematic)
	require.Equal(testInstance, 1, observedLogs.FilterMessage("access check failed").Len())
}

func TestBatchDriverReportsProgressEveryTenTargets(testInstance *testing.T) {
	targets := make([]audit.Target, 0, 12)
	for targetIndex := 0; targetIndex < 12; targetIndex++ {
		targets = append(targets, audit.Target{Name: fmt.Sprintf("module_%02d", targetIndex)})
	}
	progressBuffer := &bytes.Buffer{}
	driver := audit.NewBatchDriver(audit.DriverConfiguration{}, audit.DriverDependencies{ProgressWriter: progressBuffer})

	driver.Run(context.Background(), targets, state.NewDocument())

	progressLines := strings.Split(strings.TrimSpace(progressBuffer.String()), "\n")
	require.Len(testInstance, progressLines, 2)
	require.True(testInstance, strings.HasPrefix(progressLines[0], "Checked 10/12: module_00, module_01"))
	require.Equal(testInstance, "Checked 12/12: module_10, module_11", progressLines[1])
}

func TestBatchDriverProbesCanonicalizedSizeTargetsOnly(testInstance *testing.T) {
	checker := &recordingChecker{statuses: map[string]access.Status{"acme/widget": access.StatusReadOnly, "acme/other": access.StatusReadOnly}}
	probe := &recordingSizeProbe{}
	driver := audit.NewBatchDriver(
		audit.DriverConfiguration{SizeCheckTargets: []string{widgetRepositoryURL, "not a url"}},
		audit.DriverDependencies{
			Checkers:  map[gitrepo.Platform]access.Checker{gitrepo.PlatformGitHub: checker},
			SizeProbe: probe,
		},
	)

	result := driver.Run(context.Background(), []audit.Target{
		{Name: "widget", RepositoryURL: widgetCanonicalURL},
		{Name: "other", RepositoryURL: "git@github.com:acme/other.git"},
	}, state.NewDocument())

	require.Equal(testInstance, []string{"github:acme/widget"}, probe.paths)
	require.Equal(testInstance, []audit.ArchiveSizeReport{{
		RepositoryURL: widgetCanonicalURL,
		ArchiveURL:    "https://example.test/archive.zip",
		Bytes:         2048,
		HumanReadable: "2.0 kB",
	}}, result.Summary.ArchiveSizes)
}
