package access

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/temirov/gitaccess/internal/gitrepo"
)

const (
	defaultSizeProbeTimeoutConstant     = 10 * time.Second
	maximumRedirectsConstant            = 5
	sizeProbeRetryMaximumConstant       = 2
	sizeProbeRetryWaitMinimumConstant   = 200 * time.Millisecond
	sizeProbeRetryWaitMaximumConstant   = 2 * time.Second
	unknownSizeLabelConstant            = "unknown"
	tooManyRedirectsTemplateConstant    = "stopped after %d redirects"
	unsupportedPlatformTemplateConstant = "no archive locator for platform %s"
	archiveRequestTemplateConstant      = "unable to build archive request for %s: %w"
	archiveHeadTemplateConstant         = "archive request for %s failed: %w"
	archiveStatusTemplateConstant       = "archive request for %s returned HTTP %d"
)

// ArchiveLocator finds a downloadable archive for a repository.
type ArchiveLocator interface {
	ArchiveURL(executionContext context.Context, repositoryPath string) (string, error)
}

// ArchiveSize is the outcome of a size probe.
type ArchiveSize struct {
	ArchiveURL string
	Bytes      int64
}

// Known reports whether the server announced a content length.
func (size ArchiveSize) Known() bool {
	return size.Bytes >= 0
}

// HumanReadable renders the size in SI units, or "unknown".
func (size ArchiveSize) HumanReadable() string {
	if !size.Known() {
		return unknownSizeLabelConstant
	}
	return humanize.Bytes(uint64(size.Bytes))
}

// ArchiveSizeProbe reports the download size of a repository archive with a HEAD request.
type ArchiveSizeProbe struct {
	locators   map[gitrepo.Platform]ArchiveLocator
	httpClient *retryablehttp.Client
}

// NewArchiveSizeProbe constructs a probe that follows at most five redirects.
func NewArchiveSizeProbe(locators map[gitrepo.Platform]ArchiveLocator, timeout time.Duration, logger *zap.Logger) *ArchiveSizeProbe {
	if timeout <= 0 {
		timeout = defaultSizeProbeTimeoutConstant
	}
	retryableClient := retryablehttp.NewClient()
	retryableClient.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: NewTransport(HTTPClientConfiguration{ConnectTimeout: timeout, RequestTimeout: timeout}),
		CheckRedirect: func(request *http.Request, via []*http.Request) error {
			if len(via) >= maximumRedirectsConstant {
				return fmt.Errorf(tooManyRedirectsTemplateConstant, maximumRedirectsConstant)
			}
			return nil
		},
	}
	retryableClient.RetryMax = sizeProbeRetryMaximumConstant
	retryableClient.RetryWaitMin = sizeProbeRetryWaitMinimumConstant
	retryableClient.RetryWaitMax = sizeProbeRetryWaitMaximumConstant
	retryableClient.Logger = NewLeveledLogger(logger)

	return &ArchiveSizeProbe{locators: locators, httpClient: retryableClient}
}

// Probe locates the archive for the repository and reads its Content-Length.
func (probe *ArchiveSizeProbe) Probe(executionContext context.Context, platform gitrepo.Platform, repositoryPath string) (ArchiveSize, error) {
	locator, exists := probe.locators[platform]
	if !exists || locator == nil {
		return ArchiveSize{Bytes: -1}, fmt.Errorf(unsupportedPlatformTemplateConstant, platform)
	}
	archiveURL, locateError := locator.ArchiveURL(executionContext, repositoryPath)
	if locateError != nil {
		return ArchiveSize{Bytes: -1}, locateError
	}

	request, requestError := retryablehttp.NewRequestWithContext(executionContext, http.MethodHead, archiveURL, nil)
	if requestError != nil {
		return ArchiveSize{ArchiveURL: archiveURL, Bytes: -1}, fmt.Errorf(archiveRequestTemplateConstant, archiveURL, requestError)
	}
	response, headError := probe.httpClient.Do(request)
	if headError != nil {
		return ArchiveSize{ArchiveURL: archiveURL, Bytes: -1}, fmt.Errorf(archiveHeadTemplateConstant, archiveURL, headError)
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		return ArchiveSize{ArchiveURL: archiveURL, Bytes: -1}, fmt.Errorf(archiveStatusTemplateConstant, archiveURL, response.StatusCode)
	}
	return ArchiveSize{ArchiveURL: archiveURL, Bytes: response.ContentLength}, nil
}
