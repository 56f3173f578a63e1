package access

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitaccess/internal/gitrepo"
)

type staticArchiveLocator struct {
	archiveURL string
	locateErr  error
}

func (locator staticArchiveLocator) ArchiveURL(context.Context, string) (string, error) {
	return locator.archiveURL, locator.locateErr
}

func newArchiveServer(testInstance *testing.T) *httptest.Server {
	testInstance.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/archive.zip", func(responseWriter http.ResponseWriter, request *http.Request) {
		require.Equal(testInstance, http.MethodHead, request.Method)
		responseWriter.Header().Set("Content-Length", "2048")
		responseWriter.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/redirect", func(responseWriter http.ResponseWriter, request *http.Request) {
		http.Redirect(responseWriter, request, "/archive.zip", http.StatusFound)
	})
	mux.HandleFunc("/loop", func(responseWriter http.ResponseWriter, request *http.Request) {
		http.Redirect(responseWriter, request, "/loop", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	testInstance.Cleanup(server.Close)
	return server
}

func TestArchiveSizeProbeReadsContentLength(testInstance *testing.T) {
	server := newArchiveServer(testInstance)
	probe := NewArchiveSizeProbe(map[gitrepo.Platform]ArchiveLocator{
		gitrepo.PlatformGitHub: staticArchiveLocator{archiveURL: server.URL + "/redirect"},
	}, time.Second, nil)

	size, probeError := probe.Probe(context.Background(), gitrepo.PlatformGitHub, "acme/widget")
	require.NoError(testInstance, probeError)
	require.True(testInstance, size.Known())
	require.Equal(testInstance, int64(2048), size.Bytes)
	require.Equal(testInstance, "2.0 kB", size.HumanReadable())
}

func TestArchiveSizeProbeFailures(testInstance *testing.T) {
	server := newArchiveServer(testInstance)
	locateFailure := errors.New("no releases")
	probe := NewArchiveSizeProbe(map[gitrepo.Platform]ArchiveLocator{
		gitrepo.PlatformGitHub: staticArchiveLocator{archiveURL: server.URL + "/loop"},
		gitrepo.PlatformGitLab: staticArchiveLocator{locateErr: locateFailure},
	}, time.Second, nil)

	loopSize, loopError := probe.Probe(context.Background(), gitrepo.PlatformGitHub, "acme/widget")
	require.Error(testInstance, loopError)
	require.False(testInstance, loopSize.Known())
	require.Equal(testInstance, unknownSizeLabelConstant, loopSize.HumanReadable())

	_, locateError := probe.Probe(context.Background(), gitrepo.PlatformGitLab, "project/foo")
	require.ErrorIs(testInstance, locateError, locateFailure)

	_, platformError := probe.Probe(context.Background(), gitrepo.PlatformOther, "acme/widget")
	require.Error(testInstance, platformError)
}
