package state

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/temirov/gitaccess/internal/access"
)

const (
	// PendingWorkflowStatusConstant is the workflow status given to newly tracked repositories.
	PendingWorkflowStatusConstant = "pending"

	versionTagKeyConstant     = "version_tag"
	repositoriesKeyConstant   = "repositories"
	accessStatusKeyConstant   = "access_status"
	statusKeyConstant         = "status"
	lastRunKeyConstant        = "last_run"
	lastErrorKeyConstant      = "last_error"
	generatedFilesKeyConstant = "generated_files"
	branchNameKeyConstant     = "branch_name"
)

// Document is the persisted cache: a version tag plus one record per canonical repository URL.
// Unrecognized top-level keys survive a load and save cycle.
type Document struct {
	VersionTag   *string
	Repositories map[string]*RepositoryRecord
	Extra        map[string]json.RawMessage
}

// RepositoryRecord holds everything known about one repository.
// Fields written by other tools are kept in Extra and written back unchanged.
type RepositoryRecord struct {
	AccessStatus   access.Status
	Status         *string
	LastRun        *string
	LastError      *string
	GeneratedFiles []string
	BranchName     *string
	Extra          map[string]json.RawMessage
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{Repositories: map[string]*RepositoryRecord{}}
}

// Record returns the record for a repository URL.
func (document *Document) Record(repositoryURL string) (*RepositoryRecord, bool) {
	record, exists := document.Repositories[repositoryURL]
	return record, exists && record != nil
}

// CachedAccessStatus returns the stored status, or StatusUnknown for untracked repositories.
func (document *Document) CachedAccessStatus(repositoryURL string) access.Status {
	record, exists := document.Record(repositoryURL)
	if !exists || len(record.AccessStatus) == 0 {
		return access.StatusUnknown
	}
	return record.AccessStatus
}

// Merge stores a fresh access status. A new repository gets a pending record. An existing record
// only has its access status replaced, plus its workflow status when none was set.
// The return value reports whether the stored access status changed.
func (document *Document) Merge(repositoryURL string, status access.Status) bool {
	record, exists := document.Record(repositoryURL)
	if !exists {
		document.ensureRepositories()
		document.Repositories[repositoryURL] = newPendingRecord(status)
		return true
	}
	changed := record.AccessStatus != status
	record.AccessStatus = status
	if record.Status == nil {
		pendingStatus := PendingWorkflowStatusConstant
		record.Status = &pendingStatus
	}
	return changed
}

// RecordWorkflowBranch notes the branch pushed for a repository and when.
func (document *Document) RecordWorkflowBranch(repositoryURL string, branchName string, runTime time.Time) {
	record, exists := document.Record(repositoryURL)
	if !exists {
		document.ensureRepositories()
		record = newPendingRecord(access.StatusUnknown)
		document.Repositories[repositoryURL] = record
	}
	branch := branchName
	lastRun := runTime.Format(time.RFC3339)
	record.BranchName = &branch
	record.LastRun = &lastRun
}

// SortedRepositoryURLs lists tracked repositories in key order.
func (document *Document) SortedRepositoryURLs() []string {
	repositoryURLs := make([]string, 0, len(document.Repositories))
	for repositoryURL := range document.Repositories {
		repositoryURLs = append(repositoryURLs, repositoryURL)
	}
	sort.Strings(repositoryURLs)
	return repositoryURLs
}

func (document *Document) ensureRepositories() {
	if document.Repositories == nil {
		document.Repositories = map[string]*RepositoryRecord{}
	}
}

func newPendingRecord(status access.Status) *RepositoryRecord {
	pendingStatus := PendingWorkflowStatusConstant
	return &RepositoryRecord{
		AccessStatus:   status,
		Status:         &pendingStatus,
		GeneratedFiles: []string{},
	}
}

// MarshalJSON writes the known keys and any preserved extras. encoding/json sorts map keys.
func (document Document) MarshalJSON() ([]byte, error) {
	output := make(map[string]any, len(document.Extra)+2)
	for key, value := range document.Extra {
		output[key] = value
	}
	output[versionTagKeyConstant] = document.VersionTag
	repositories := document.Repositories
	if repositories == nil {
		repositories = map[string]*RepositoryRecord{}
	}
	output[repositoriesKeyConstant] = repositories
	return marshalWithoutHTMLEscaping(output)
}

// UnmarshalJSON reads a document, keeping unknown top-level keys.
func (document *Document) UnmarshalJSON(data []byte) error {
	var rawFields map[string]json.RawMessage
	if decodeError := json.Unmarshal(data, &rawFields); decodeError != nil {
		return decodeError
	}
	if rawFields == nil {
		return errNonObjectDocument
	}

	decoded := Document{Repositories: map[string]*RepositoryRecord{}}
	if rawVersionTag, exists := rawFields[versionTagKeyConstant]; exists {
		if decodeError := json.Unmarshal(rawVersionTag, &decoded.VersionTag); decodeError != nil {
			return decodeError
		}
		delete(rawFields, versionTagKeyConstant)
	}
	if rawRepositories, exists := rawFields[repositoriesKeyConstant]; exists {
		var repositories map[string]*RepositoryRecord
		if !isEmptyList(rawRepositories) {
			if decodeError := json.Unmarshal(rawRepositories, &repositories); decodeError != nil {
				return decodeError
			}
		}
		for repositoryURL, record := range repositories {
			if record != nil {
				decoded.Repositories[repositoryURL] = record
			}
		}
		delete(rawFields, repositoriesKeyConstant)
	}
	if len(rawFields) > 0 {
		decoded.Extra = rawFields
	}
	*document = decoded
	return nil
}

// MarshalJSON writes the record fields over its preserved extras.
func (record RepositoryRecord) MarshalJSON() ([]byte, error) {
	output := make(map[string]any, len(record.Extra)+6)
	for key, value := range record.Extra {
		output[key] = value
	}
	output[accessStatusKeyConstant] = record.AccessStatus
	output[statusKeyConstant] = record.Status
	output[lastRunKeyConstant] = record.LastRun
	output[lastErrorKeyConstant] = record.LastError
	generatedFiles := record.GeneratedFiles
	if generatedFiles == nil {
		generatedFiles = []string{}
	}
	output[generatedFilesKeyConstant] = generatedFiles
	output[branchNameKeyConstant] = record.BranchName
	return marshalWithoutHTMLEscaping(output)
}

// UnmarshalJSON reads a record, keeping unknown fields.
func (record *RepositoryRecord) UnmarshalJSON(data []byte) error {
	var rawFields map[string]json.RawMessage
	if decodeError := json.Unmarshal(data, &rawFields); decodeError != nil {
		return decodeError
	}

	decoded := RepositoryRecord{}
	knownTargets := map[string]any{
		accessStatusKeyConstant:   &decoded.AccessStatus,
		statusKeyConstant:         &decoded.Status,
		lastRunKeyConstant:        &decoded.LastRun,
		lastErrorKeyConstant:      &decoded.LastError,
		generatedFilesKeyConstant: &decoded.GeneratedFiles,
		branchNameKeyConstant:     &decoded.BranchName,
	}
	for key, target := range knownTargets {
		rawValue, exists := rawFields[key]
		if !exists {
			continue
		}
		if decodeError := json.Unmarshal(rawValue, target); decodeError != nil {
			return decodeError
		}
		delete(rawFields, key)
	}
	if len(rawFields) > 0 {
		decoded.Extra = rawFields
	}
	*record = decoded
	return nil
}

func marshalWithoutHTMLEscaping(value any) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if encodeError := encoder.Encode(value); encodeError != nil {
		return nil, encodeError
	}
	return bytes.TrimRight(buffer.Bytes(), "\n"), nil
}

// isEmptyList reports whether a raw value is an empty JSON array. Tools that write the
// same file encode an empty repository map that way.
func isEmptyList(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return false
	}
	return len(bytes.TrimSpace(trimmed[1:len(trimmed)-1])) == 0
}
