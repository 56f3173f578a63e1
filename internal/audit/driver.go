package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/temirov/gitaccess/internal/access"
	"github.com/temirov/gitaccess/internal/gitrepo"
	"github.com/temirov/gitaccess/internal/state"
)

const (
	// ReasonNoRepositoryURL marks a target without any repository location.
	ReasonNoRepositoryURL = "No repo URL found"
	// ReasonUnknownPlatform marks a target hosted outside GitHub and GitLab.
	ReasonUnknownPlatform = "Unknown platform"
	// CounterSkipped counts cached read-write results accepted without a request.
	CounterSkipped = "skipped"

	progressBatchSizeConstant               = 10
	progressTemplateConstant                = "Checked %d/%d: %s\n"
	progressNameSeparatorConstant           = ", "
	logMessageCanonicalizationConstant      = "repository url rejected"
	logMessagePathExtractionConstant        = "could not extract repository path, marking check_failed"
	logMessageUnsupportedPlatformConstant   = "unsupported platform, marking unknown"
	logMessageCheckFailedConstant           = "access check failed"
	logMessageStatusChangedConstant         = "access status updated"
	logMessageArchiveSizeConstant           = "latest archive size"
	logMessageArchiveSizeFailedConstant     = "could not determine latest archive size"
	logMessageSizeTargetRejectedConstant    = "size check target rejected"
	logMessageCachedReadWriteConstant       = "using cached read-write status"
	logFieldRepositoryURLConstant           = "repository_url"
	logFieldRepositoryPathConstant          = "repository_path"
	logFieldPlatformConstant                = "platform"
	logFieldPreviousStatusConstant          = "previous_status"
	logFieldAccessStatusConstant            = "access_status"
	logFieldArchiveURLConstant              = "archive_url"
	logFieldArchiveSizeConstant             = "archive_size"
	problematicRepositoriesMessageConstant  = "repositories with check_failed or unknown platform status"
	noRepositoriesDiscoveredMessageConstant = "no valid git repository urls discovered"
)

var (
	// ErrProblematicRepositories signals that the batch ended with check_failed or unknown entries.
	ErrProblematicRepositories = errors.New(problematicRepositoriesMessageConstant)
	// ErrNoRepositoriesDiscovered signals that no repository url survived discovery.
	ErrNoRepositoriesDiscovered = errors.New(noRepositoriesDiscoveredMessageConstant)
)

// DriverConfiguration carries the credentials and policy of a batch run.
type DriverConfiguration struct {
	GitHubToken      string
	GitLabToken      string
	ForceRecheck     bool
	SizeCheckTargets []string
}

// SizeProbe reports archive sizes for selected repositories.
type SizeProbe interface {
	Probe(executionContext context.Context, platform gitrepo.Platform, repositoryPath string) (access.ArchiveSize, error)
}

// DriverDependencies supplies the collaborators of a BatchDriver.
type DriverDependencies struct {
	Checkers       map[gitrepo.Platform]access.Checker
	SizeProbe      SizeProbe
	Clock          clock.Clock
	RequestDelay   time.Duration
	ProgressWriter io.Writer
	Logger         *zap.Logger
}

// Target is one repository to classify. Name labels it in progress output and partitions.
type Target struct {
	Name          string
	Directory     string
	RepositoryURL string
}

// Outcome is the classification of one target.
type Outcome struct {
	Target       Target
	CanonicalURL string
	Platform     gitrepo.Platform
	Status       access.Status
	Reason       string
	Skipped      bool
}

// ProblematicRepository is an inaccessible, check_failed or unknown repository.
type ProblematicRepository struct {
	Status        access.Status    `json:"status" yaml:"status"`
	Platform      gitrepo.Platform `json:"platform" yaml:"platform"`
	RepositoryURL string           `json:"repository_url" yaml:"repository_url"`
}

// ArchiveSizeReport is the outcome of a size probe.
type ArchiveSizeReport struct {
	RepositoryURL string `json:"repository_url" yaml:"repository_url"`
	ArchiveURL    string `json:"archive_url,omitempty" yaml:"archive_url,omitempty"`
	Bytes         int64  `json:"bytes" yaml:"bytes"`
	HumanReadable string `json:"human_readable" yaml:"human_readable"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary aggregates a batch run for reporting.
type Summary struct {
	Counters     map[gitrepo.Platform]map[string]int
	Added        int
	Updated      int
	Problematic  []ProblematicRepository
	ArchiveSizes []ArchiveSizeReport
}

// Count returns the counter for a platform and a status or CounterSkipped.
func (summary Summary) Count(platform gitrepo.Platform, counterKey string) int {
	return summary.Counters[platform][counterKey]
}

// HasFailures reports whether any repository ended check_failed or unknown.
func (summary Summary) HasFailures() bool {
	for _, problematic := range summary.Problematic {
		if problematic.Status == access.StatusCheckFailed || problematic.Status == access.StatusUnknown {
			return true
		}
	}
	return false
}

// BatchResult partitions the targets into writable and everything else.
type BatchResult struct {
	Writable []Outcome
	ReadOnly []Outcome
	Summary  Summary
}

// BatchDriver classifies repositories sequentially and merges the results into a state document.
type BatchDriver struct {
	configuration    DriverConfiguration
	checkers         map[gitrepo.Platform]access.Checker
	sizeProbe        SizeProbe
	sizeCheckTargets map[string]struct{}
	clock            clock.Clock
	requestDelay     time.Duration
	progressWriter   io.Writer
	logger           *zap.Logger
}

// NewBatchDriver constructs a driver. Size check targets are canonicalized so that any
// spelling of a repository url matches its cache key.
func NewBatchDriver(configuration DriverConfiguration, dependencies DriverDependencies) *BatchDriver {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	driverClock := dependencies.Clock
	if driverClock == nil {
		driverClock = clock.New()
	}
	progressWriter := dependencies.ProgressWriter
	if progressWriter == nil {
		progressWriter = io.Discard
	}
	checkers := dependencies.Checkers
	if checkers == nil {
		checkers = map[gitrepo.Platform]access.Checker{}
	}

	sizeCheckTargets := make(map[string]struct{}, len(configuration.SizeCheckTargets))
	for _, rawTarget := range configuration.SizeCheckTargets {
		canonicalTarget, canonicalError := gitrepo.CanonicalizeRepositoryURL(rawTarget)
		if canonicalError != nil {
			logger.Warn(logMessageSizeTargetRejectedConstant, zap.String(logFieldRepositoryURLConstant, rawTarget), zap.Error(canonicalError))
			continue
		}
		sizeCheckTargets[canonicalTarget] = struct{}{}
	}

	return &BatchDriver{
		configuration:    configuration,
		checkers:         checkers,
		sizeProbe:        dependencies.SizeProbe,
		sizeCheckTargets: sizeCheckTargets,
		clock:            driverClock,
		requestDelay:     dependencies.RequestDelay,
		progressWriter:   progressWriter,
		logger:           logger,
	}
}

// Run classifies every target in order. Individual failures become statuses and never stop the batch.
func (driver *BatchDriver) Run(executionContext context.Context, targets []Target, document *state.Document) BatchResult {
	summary := Summary{Counters: newCounters()}
	result := BatchResult{Writable: []Outcome{}, ReadOnly: []Outcome{}}

	pendingNames := make([]string, 0, progressBatchSizeConstant)
	for targetIndex, target := range targets {
		outcome := driver.classify(executionContext, target, document, &summary)
		if outcome.Status == access.StatusReadWrite {
			result.Writable = append(result.Writable, outcome)
		} else {
			result.ReadOnly = append(result.ReadOnly, outcome)
		}

		pendingNames = append(pendingNames, target.Name)
		checkedCount := targetIndex + 1
		if checkedCount%progressBatchSizeConstant == 0 || checkedCount == len(targets) {
			fmt.Fprintf(driver.progressWriter, progressTemplateConstant, checkedCount, len(targets), strings.Join(pendingNames, progressNameSeparatorConstant))
			pendingNames = pendingNames[:0]
		}
	}

	sort.SliceStable(summary.Problematic, func(leftIndex int, rightIndex int) bool {
		left := summary.Problematic[leftIndex]
		right := summary.Problematic[rightIndex]
		if left.Status != right.Status {
			return problematicStatusRank(left.Status) < problematicStatusRank(right.Status)
		}
		return left.RepositoryURL < right.RepositoryURL
	})

	result.Summary = summary
	return result
}

func (driver *BatchDriver) classify(executionContext context.Context, target Target, document *state.Document, summary *Summary) Outcome {
	outcome := Outcome{Target: target, Platform: gitrepo.PlatformOther}

	rawURL := strings.TrimSpace(target.RepositoryURL)
	if len(rawURL) == 0 {
		outcome.Status = access.StatusUnknown
		outcome.Reason = ReasonNoRepositoryURL
		return outcome
	}

	canonicalURL, canonicalError := gitrepo.CanonicalizeRepositoryURL(rawURL)
	if canonicalError != nil {
		driver.logger.Warn(logMessageCanonicalizationConstant, zap.String(logFieldRepositoryURLConstant, rawURL), zap.Error(canonicalError))
		outcome.CanonicalURL = rawURL
		outcome.Platform = gitrepo.ClassifyPlatform(rawURL)
		outcome.Status = access.StatusCheckFailed
		if outcome.Platform == gitrepo.PlatformOther {
			outcome.Status = access.StatusUnknown
		}
		outcome.Reason = reasonForStatus(outcome.Status, outcome.Platform)
		driver.tally(summary, outcome)
		return outcome
	}
	outcome.CanonicalURL = canonicalURL
	outcome.Platform = gitrepo.ClassifyPlatform(canonicalURL)

	_, tracked := document.Record(canonicalURL)
	cachedStatus := document.CachedAccessStatus(canonicalURL)
	if !driver.configuration.ForceRecheck && tracked && cachedStatus == access.StatusReadWrite {
		driver.logger.Debug(logMessageCachedReadWriteConstant, zap.String(logFieldRepositoryURLConstant, canonicalURL))
		outcome.Status = access.StatusReadWrite
		outcome.Skipped = true
		summary.Counters[outcome.Platform][CounterSkipped]++
	} else {
		outcome.Platform, outcome.Status = driver.checkRemote(executionContext, canonicalURL, outcome.Platform)
	}
	outcome.Reason = reasonForStatus(outcome.Status, outcome.Platform)

	driver.probeArchiveSize(executionContext, canonicalURL, outcome.Platform, summary)

	changed := document.Merge(canonicalURL, outcome.Status)
	switch {
	case !tracked:
		summary.Added++
	case changed:
		summary.Updated++
		driver.logger.Info(
			logMessageStatusChangedConstant,
			zap.String(logFieldRepositoryURLConstant, canonicalURL),
			zap.String(logFieldPreviousStatusConstant, string(cachedStatus)),
			zap.String(logFieldAccessStatusConstant, string(outcome.Status)),
		)
	}

	driver.tally(summary, outcome)
	return outcome
}

func (driver *BatchDriver) checkRemote(executionContext context.Context, canonicalURL string, platform gitrepo.Platform) (gitrepo.Platform, access.Status) {
	repositoryPath, pathFound := gitrepo.ExtractRepositoryPath(canonicalURL)
	if !pathFound {
		driver.logger.Warn(logMessagePathExtractionConstant, zap.String(logFieldRepositoryURLConstant, canonicalURL))
		return gitrepo.PlatformOther, access.StatusCheckFailed
	}

	checker, supported := driver.checkers[platform]
	if !supported || checker == nil {
		driver.logger.Warn(logMessageUnsupportedPlatformConstant, zap.String(logFieldRepositoryURLConstant, canonicalURL), zap.String(logFieldPlatformConstant, string(platform)))
		return platform, access.StatusUnknown
	}

	status, checkError := checker.CheckAccess(executionContext, repositoryPath)
	if checkError != nil {
		driver.logger.Warn(
			logMessageCheckFailedConstant,
			zap.String(logFieldRepositoryURLConstant, canonicalURL),
			zap.String(logFieldPlatformConstant, string(platform)),
			zap.Error(checkError),
		)
	}
	driver.pause()
	return platform, status
}

func (driver *BatchDriver) probeArchiveSize(executionContext context.Context, canonicalURL string, platform gitrepo.Platform, summary *Summary) {
	if driver.sizeProbe == nil || platform == gitrepo.PlatformOther {
		return
	}
	if _, selected := driver.sizeCheckTargets[canonicalURL]; !selected {
		return
	}
	repositoryPath, pathFound := gitrepo.ExtractRepositoryPath(canonicalURL)
	if !pathFound {
		return
	}

	archiveSize, probeError := driver.sizeProbe.Probe(executionContext, platform, repositoryPath)
	driver.pause()

	report := ArchiveSizeReport{
		RepositoryURL: canonicalURL,
		ArchiveURL:    archiveSize.ArchiveURL,
		Bytes:         archiveSize.Bytes,
		HumanReadable: archiveSize.HumanReadable(),
	}
	if probeError != nil {
		report.Bytes = -1
		report.HumanReadable = access.ArchiveSize{Bytes: -1}.HumanReadable()
		report.Error = probeError.Error()
		driver.logger.Warn(logMessageArchiveSizeFailedConstant, zap.String(logFieldRepositoryPathConstant, repositoryPath), zap.Error(probeError))
	} else {
		driver.logger.Info(
			logMessageArchiveSizeConstant,
			zap.String(logFieldRepositoryPathConstant, repositoryPath),
			zap.String(logFieldArchiveURLConstant, archiveSize.ArchiveURL),
			zap.String(logFieldArchiveSizeConstant, archiveSize.HumanReadable()),
		)
	}
	summary.ArchiveSizes = append(summary.ArchiveSizes, report)
}

func (driver *BatchDriver) tally(summary *Summary, outcome Outcome) {
	summary.Counters[outcome.Platform][string(outcome.Status)]++
	if outcome.Status.IsProblematic() {
		summary.Problematic = append(summary.Problematic, ProblematicRepository{
			Status:        outcome.Status,
			Platform:      outcome.Platform,
			RepositoryURL: outcome.CanonicalURL,
		})
	}
}

func (driver *BatchDriver) pause() {
	if driver.requestDelay <= 0 {
		return
	}
	driver.clock.Sleep(driver.requestDelay)
}

func reasonForStatus(status access.Status, platform gitrepo.Platform) string {
	if status == access.StatusUnknown && platform == gitrepo.PlatformOther {
		return ReasonUnknownPlatform
	}
	return string(status)
}

func newCounters() map[gitrepo.Platform]map[string]int {
	counters := make(map[gitrepo.Platform]map[string]int, len(reportPlatforms))
	for _, platform := range reportPlatforms {
		counters[platform] = map[string]int{}
	}
	return counters
}

func problematicStatusRank(status access.Status) int {
	for rank, candidate := range problematicStatuses {
		if candidate == status {
			return rank
		}
	}
	return len(problematicStatuses)
}
