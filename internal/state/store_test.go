package state

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/gitaccess/internal/access"
)

const (
	testStatePathConstant      = "/work/docs_generation_state.json"
	testWidgetURLConstant      = "git@github.com:acme/widget.git"
	testFooURLConstant         = "git@git.drupal.org:project/foo.git"
	expectedSavedStateConstant = `{
    "repositories": {
        "git@github.com:acme/widget.git": {
            "access_status": "read-write",
            "branch_name": null,
            "generated_files": [],
            "last_error": null,
            "last_run": null,
            "status": "pending"
        }
    },
    "version_tag": null
}
`
)

var errRenameRejected = errors.New("rename rejected")

type renameFailingFileSystem struct {
	afero.Fs
}

func (fileSystem renameFailingFileSystem) Rename(string, string) error {
	return errRenameRejected
}

func TestFileStoreLoadToleratesMissingAndMalformedFiles(testInstance *testing.T) {
	testCases := []struct {
		name          string
		contents      *string
		expectWarning bool
	}{
		{name: "missing", contents: nil, expectWarning: false},
		{name: "malformed", contents: stringPointer("{not json"), expectWarning: true},
		{name: "array_root", contents: stringPointer("[1, 2]"), expectWarning: true},
		{name: "null_root", contents: stringPointer("null"), expectWarning: true},
		{name: "repositories_not_object", contents: stringPointer(`{"repositories": "widget"}`), expectWarning: true},
		{name: "repositories_non_empty_list", contents: stringPointer(`{"repositories": [1]}`), expectWarning: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			fileSystem := afero.NewMemMapFs()
			if testCase.contents != nil {
				require.NoError(testInstance, afero.WriteFile(fileSystem, testStatePathConstant, []byte(*testCase.contents), 0o644))
			}
			observerCore, observedLogs := observer.New(zapcore.WarnLevel)
			store := NewFileStore(fileSystem, zap.New(observerCore))

			document := store.Load(testStatePathConstant)
			require.NotNil(testInstance, document)
			require.Empty(testInstance, document.Repositories)
			require.Nil(testInstance, document.VersionTag)
			if testCase.expectWarning {
				require.Equal(testInstance, 1, observedLogs.Len())
			} else {
				require.Zero(testInstance, observedLogs.Len())
			}
		})
	}
}

func TestFileStoreSaveWritesSortedIndentedDocument(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	store := NewFileStore(fileSystem, nil)

	document := NewDocument()
	require.True(testInstance, document.Merge(testWidgetURLConstant, access.StatusReadWrite))
	require.NoError(testInstance, store.Save(testStatePathConstant, document))

	contents, readError := afero.ReadFile(fileSystem, testStatePathConstant)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, expectedSavedStateConstant, string(contents))

	entries, listError := afero.ReadDir(fileSystem, "/work")
	require.NoError(testInstance, listError)
	require.Len(testInstance, entries, 1)
}

func TestFileStorePreservesUnknownFields(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	originalContents := `{
  "version_tag": "10.3.1",
  "generator": {"name": "docs", "url": "https://example.com/a&b"},
  "repositories": {
    "git@git.drupal.org:project/foo.git": {
      "access_status": "read-only",
      "status": "done",
      "generated_files": ["docs/foo.md", "docs/bar.md"],
      "branch_name": "docs-foo",
      "reviewer": "ops"
    }
  }
}`
	require.NoError(testInstance, afero.WriteFile(fileSystem, testStatePathConstant, []byte(originalContents), 0o644))
	store := NewFileStore(fileSystem, nil)

	document := store.Load(testStatePathConstant)
	require.Equal(testInstance, "10.3.1", *document.VersionTag)
	require.False(testInstance, document.Merge(testFooURLConstant, access.StatusReadOnly))
	require.True(testInstance, document.Merge(testFooURLConstant, access.StatusReadWrite))
	require.NoError(testInstance, store.Save(testStatePathConstant, document))

	reloaded := store.Load(testStatePathConstant)
	record, exists := reloaded.Record(testFooURLConstant)
	require.True(testInstance, exists)
	require.Equal(testInstance, access.StatusReadWrite, record.AccessStatus)
	require.Equal(testInstance, "done", *record.Status)
	require.Equal(testInstance, []string{"docs/foo.md", "docs/bar.md"}, record.GeneratedFiles)
	require.Equal(testInstance, "docs-foo", *record.BranchName)
	require.JSONEq(testInstance, `"ops"`, string(record.Extra["reviewer"]))
	require.JSONEq(testInstance, `{"name": "docs", "url": "https://example.com/a&b"}`, string(reloaded.Extra["generator"]))

	savedContents, readError := afero.ReadFile(fileSystem, testStatePathConstant)
	require.NoError(testInstance, readError)
	require.Contains(testInstance, string(savedContents), "https://example.com/a&b")
}

func TestFileStoreSaveFailureKeepsPreviousFile(testInstance *testing.T) {
	memoryFileSystem := afero.NewMemMapFs()
	require.NoError(testInstance, afero.WriteFile(memoryFileSystem, testStatePathConstant, []byte(`{"repositories": {}}`), 0o644))

	observerCore, observedLogs := observer.New(zapcore.ErrorLevel)
	store := NewFileStore(renameFailingFileSystem{Fs: memoryFileSystem}, zap.New(observerCore))

	document := NewDocument()
	document.Merge(testWidgetURLConstant, access.StatusReadOnly)
	saveError := store.Save(testStatePathConstant, document)

	var persistenceError PersistenceError
	require.ErrorAs(testInstance, saveError, &persistenceError)
	require.Equal(testInstance, testStatePathConstant, persistenceError.Path)
	require.ErrorIs(testInstance, saveError, errRenameRejected)
	require.Equal(testInstance, 1, observedLogs.Len())

	contents, readError := afero.ReadFile(memoryFileSystem, testStatePathConstant)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, `{"repositories": {}}`, string(contents))

	entries, listError := afero.ReadDir(memoryFileSystem, "/work")
	require.NoError(testInstance, listError)
	require.Len(testInstance, entries, 1)
}

func TestFileStoreClear(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	store := NewFileStore(fileSystem, nil)
	require.NoError(testInstance, store.Clear(testStatePathConstant))

	require.NoError(testInstance, afero.WriteFile(fileSystem, testStatePathConstant, []byte(`{}`), 0o644))
	require.NoError(testInstance, store.Clear(testStatePathConstant))
	exists, existsError := afero.Exists(fileSystem, testStatePathConstant)
	require.NoError(testInstance, existsError)
	require.False(testInstance, exists)
}

func TestDocumentMergeSemantics(testInstance *testing.T) {
	document := NewDocument()
	require.Equal(testInstance, access.StatusUnknown, document.CachedAccessStatus(testWidgetURLConstant))

	require.True(testInstance, document.Merge(testWidgetURLConstant, access.StatusReadOnly))
	record, exists := document.Record(testWidgetURLConstant)
	require.True(testInstance, exists)
	require.Equal(testInstance, PendingWorkflowStatusConstant, *record.Status)
	require.Equal(testInstance, []string{}, record.GeneratedFiles)
	require.Nil(testInstance, record.BranchName)

	generatedFiles := []string{"docs/widget.md"}
	record.GeneratedFiles = generatedFiles
	document.RecordWorkflowBranch(testWidgetURLConstant, "upgrade-drupal11-20240102_030405", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	require.False(testInstance, document.Merge(testWidgetURLConstant, access.StatusReadOnly))
	require.True(testInstance, document.Merge(testWidgetURLConstant, access.StatusReadWrite))
	require.Equal(testInstance, access.StatusReadWrite, document.CachedAccessStatus(testWidgetURLConstant))
	require.Equal(testInstance, generatedFiles, record.GeneratedFiles)
	require.Equal(testInstance, "upgrade-drupal11-20240102_030405", *record.BranchName)
	require.Equal(testInstance, "2024-01-02T03:04:05Z", *record.LastRun)

	unsetStatusRecord := &RepositoryRecord{AccessStatus: access.StatusReadOnly}
	document.Repositories[testFooURLConstant] = unsetStatusRecord
	document.Merge(testFooURLConstant, access.StatusReadOnly)
	require.Equal(testInstance, PendingWorkflowStatusConstant, *unsetStatusRecord.Status)

	require.Equal(testInstance, []string{testFooURLConstant, testWidgetURLConstant}, document.SortedRepositoryURLs())
}

func stringPointer(value string) *string {
	return &value
}

func TestFileStoreAcceptsEmptyRepositoryList(testInstance *testing.T) {
	testCases := []struct {
		name     string
		contents string
	}{
		{name: "empty_list", contents: `{"version_tag": "10.3.1", "generator": "docs", "repositories": []}`},
		{name: "empty_list_with_whitespace", contents: `{"version_tag": "10.3.1", "generator": "docs", "repositories": [ ]}`},
		{name: "null_repositories", contents: `{"version_tag": "10.3.1", "generator": "docs", "repositories": null}`},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			fileSystem := afero.NewMemMapFs()
			require.NoError(testInstance, afero.WriteFile(fileSystem, testStatePathConstant, []byte(testCase.contents), 0o644))
			observerCore, observedLogs := observer.New(zapcore.WarnLevel)
			store := NewFileStore(fileSystem, zap.New(observerCore))

			document := store.Load(testStatePathConstant)
			require.Zero(testInstance, observedLogs.Len())
			require.NotNil(testInstance, document.VersionTag)
			require.Equal(testInstance, "10.3.1", *document.VersionTag)
			require.Empty(testInstance, document.Repositories)

			require.True(testInstance, document.Merge(testWidgetURLConstant, access.StatusReadOnly))
			require.NoError(testInstance, store.Save(testStatePathConstant, document))

			reloaded := store.Load(testStatePathConstant)
			require.NotNil(testInstance, reloaded.VersionTag)
			require.Equal(testInstance, "10.3.1", *reloaded.VersionTag)
			require.Contains(testInstance, reloaded.Extra, "generator")
			require.Equal(testInstance, access.StatusReadOnly, reloaded.CachedAccessStatus(testWidgetURLConstant))
		})
	}
}
