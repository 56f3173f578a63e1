package access

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xanzy/go-gitlab"
)

const (
	testGitLabTokenConstant   = "gitlab-test-token"
	testGitLabProjectEndpoint = "/api/v4/projects/project%2Ffoo"
)

func newGitLabTestServer(testInstance *testing.T, statusCode int, body string, requestCount *int32) *httptest.Server {
	testInstance.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		if !strings.HasPrefix(request.URL.EscapedPath(), "/api/v4/projects/") {
			responseWriter.WriteHeader(http.StatusOK)
			return
		}
		atomic.AddInt32(requestCount, 1)
		require.Equal(testInstance, testGitLabProjectEndpoint, request.URL.EscapedPath())
		require.Equal(testInstance, testGitLabTokenConstant, request.Header.Get("PRIVATE-TOKEN"))
		responseWriter.Header().Set("Content-Type", "application/json")
		responseWriter.WriteHeader(statusCode)
		_, _ = responseWriter.Write([]byte(body))
	}))
	testInstance.Cleanup(server.Close)
	return server
}

func TestGitLabCheckerClassifiesResponses(testInstance *testing.T) {
	testCases := []struct {
		name           string
		statusCode     int
		body           string
		expectedStatus Status
		expectError    bool
	}{
		{name: "developer_project_access", statusCode: http.StatusOK, body: `{"id":1,"permissions":{"project_access":{"access_level":30},"group_access":null}}`, expectedStatus: StatusReadWrite},
		{name: "reporter_project_access", statusCode: http.StatusOK, body: `{"id":1,"permissions":{"project_access":{"access_level":20},"group_access":null}}`, expectedStatus: StatusReadOnly},
		{name: "guest_project_access", statusCode: http.StatusOK, body: `{"id":1,"permissions":{"project_access":{"access_level":10}}}`, expectedStatus: StatusReadOnly},
		{name: "maintainer_group_access", statusCode: http.StatusOK, body: `{"id":1,"permissions":{"project_access":null,"group_access":{"access_level":40}}}`, expectedStatus: StatusReadWrite},
		{name: "no_permissions", statusCode: http.StatusOK, body: `{"id":1}`, expectedStatus: StatusReadOnly},
		{name: "not_found", statusCode: http.StatusNotFound, body: `{"message":"404 Project Not Found"}`, expectedStatus: StatusInaccessible},
		{name: "forbidden", statusCode: http.StatusForbidden, body: `{"message":"403 Forbidden"}`, expectedStatus: StatusReadOnly},
		{name: "server_error", statusCode: http.StatusInternalServerError, body: `{"message":"500 Internal Server Error"}`, expectedStatus: StatusCheckFailed, expectError: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testInstance *testing.T) {
			var requestCount int32
			server := newGitLabTestServer(testInstance, testCase.statusCode, testCase.body, &requestCount)

			checker, creationError := NewGitLabChecker(GitLabCheckerConfiguration{Token: testGitLabTokenConstant, BaseURL: server.URL})
			require.NoError(testInstance, creationError)

			status, checkError := checker.CheckAccess(context.Background(), "project/foo")
			require.Equal(testInstance, testCase.expectedStatus, status)
			if testCase.expectError {
				require.Error(testInstance, checkError)
			} else {
				require.NoError(testInstance, checkError)
			}
			require.Equal(testInstance, int32(1), atomic.LoadInt32(&requestCount))
		})
	}
}

func TestEffectiveAccessLevelTakesMaximum(testInstance *testing.T) {
	require.Equal(testInstance, gitlab.NoPermissions, EffectiveAccessLevel(nil))
	require.Equal(testInstance, gitlab.NoPermissions, EffectiveAccessLevel(&gitlab.Project{}))

	project := &gitlab.Project{Permissions: &gitlab.Permissions{
		ProjectAccess: &gitlab.ProjectAccess{AccessLevel: gitlab.ReporterPermissions},
		GroupAccess:   &gitlab.GroupAccess{AccessLevel: gitlab.MaintainerPermissions},
	}}
	require.Equal(testInstance, gitlab.MaintainerPermissions, EffectiveAccessLevel(project))
}

func TestGitLabCheckerArchiveURLUsesMostRecentTag(testInstance *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		if request.URL.EscapedPath() != "/api/v4/projects/project%2Fws_small_y/repository/tags" {
			responseWriter.WriteHeader(http.StatusOK)
			return
		}
		require.Equal(testInstance, "updated", request.URL.Query().Get("order_by"))
		require.Equal(testInstance, "desc", request.URL.Query().Get("sort"))
		responseWriter.Header().Set("Content-Type", "application/json")
		_, _ = responseWriter.Write([]byte(`[{"name":"2.0.3"},{"name":"2.0.2"}]`))
	}))
	testInstance.Cleanup(server.Close)

	checker, creationError := NewGitLabChecker(GitLabCheckerConfiguration{Token: testGitLabTokenConstant, BaseURL: server.URL + "/"})
	require.NoError(testInstance, creationError)

	archiveURL, archiveError := checker.ArchiveURL(context.Background(), "project/ws_small_y")
	require.NoError(testInstance, archiveError)
	require.Equal(testInstance, server.URL+"/project/ws_small_y/-/archive/2.0.3/ws_small_y-2.0.3.zip", archiveURL)
}

func TestGitLabCheckerGivesUpAfterRequestTimeout(testInstance *testing.T) {
	requestTimeout := 500 * time.Millisecond
	var requestCount int32
	server := newStalledServer(testInstance, 3*time.Second, &requestCount)

	checker, creationError := NewGitLabChecker(GitLabCheckerConfiguration{
		Token:      testGitLabTokenConstant,
		BaseURL:    server.URL,
		HTTPClient: HTTPClientConfiguration{ConnectTimeout: time.Second, RequestTimeout: requestTimeout},
	})
	require.NoError(testInstance, creationError)

	startedAt := time.Now()
	status, checkError := checker.CheckAccess(context.Background(), "project/foo")
	elapsed := time.Since(startedAt)

	require.Equal(testInstance, StatusCheckFailed, status)
	var typedError CheckError
	require.ErrorAs(testInstance, checkError, &typedError)
	require.Zero(testInstance, typedError.HTTPStatus)
	require.Less(testInstance, elapsed, 2*requestTimeout)
	require.Equal(testInstance, int32(1), atomic.LoadInt32(&requestCount))
}
