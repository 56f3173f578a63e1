package audit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/temirov/gitaccess/internal/access"
)

const (
	testGitHubTokenConstant   = "github-token"
	testGitLabTokenConstant   = "gitlab-token"
	widgetRepositoryURL       = "https://github.com/acme/widget.git"
	widgetCanonicalURL        = "git@github.com:acme/widget.git"
	fooRepositoryURL          = "https://git.drupalcode.org/project/foo.git"
	fooCanonicalURL           = "git@git.drupal.org:project/foo.git"
	gitHubWidgetPushResponse  = `{"name":"widget","permissions":{"admin":false,"push":true,"pull":true}}`
	gitLabFooGuestResponse    = `{"id":7,"permissions":{"project_access":{"access_level":10},"group_access":null}}`
	gitLabProjectsPathPrefix  = "/api/v4/projects/"
	contentTypeHeaderConstant = "Content-Type"
	applicationJSONConstant   = "application/json"
)

// platformServer serves canned JSON responses and counts requests per escaped path.
type platformServer struct {
	server    *httptest.Server
	mutex     sync.Mutex
	responses map[string]string
	requests  map[string]int
}

func newPlatformServer(testInstance *testing.T, responses map[string]string) *platformServer {
	testInstance.Helper()
	fake := &platformServer{responses: responses, requests: map[string]int{}}
	fake.server = httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		escapedPath := request.URL.EscapedPath()
		fake.mutex.Lock()
		fake.requests[escapedPath]++
		fake.mutex.Unlock()

		body, known := responses[escapedPath]
		if !known {
			if !strings.HasPrefix(escapedPath, gitLabProjectsPathPrefix) && !strings.HasPrefix(escapedPath, "/repos/") {
				responseWriter.WriteHeader(http.StatusOK)
				return
			}
			responseWriter.Header().Set(contentTypeHeaderConstant, applicationJSONConstant)
			responseWriter.WriteHeader(http.StatusNotFound)
			_, _ = responseWriter.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		responseWriter.Header().Set(contentTypeHeaderConstant, applicationJSONConstant)
		responseWriter.WriteHeader(http.StatusOK)
		_, _ = responseWriter.Write([]byte(body))
	}))
	testInstance.Cleanup(fake.server.Close)
	return fake
}

func (fake *platformServer) URL() string {
	return fake.server.URL
}

func (fake *platformServer) RequestCount(escapedPath string) int {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	return fake.requests[escapedPath]
}

// recordingChecker returns scripted statuses and records every path it was asked about.
type recordingChecker struct {
	statuses map[string]access.Status
	failures map[string]error
	paths    []string
}

func (checker *recordingChecker) CheckAccess(executionContext context.Context, repositoryPath string) (access.Status, error) {
	checker.paths = append(checker.paths, repositoryPath)
	if failure, failed := checker.failures[repositoryPath]; failed {
		return access.StatusCheckFailed, failure
	}
	status, known := checker.statuses[repositoryPath]
	if !known {
		return access.StatusInaccessible, nil
	}
	return status, nil
}
