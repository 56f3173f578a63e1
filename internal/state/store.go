package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	stateFilePermissionsConstant      = 0o644
	stateIndentConstant               = "    "
	temporaryFileInfixConstant        = ".tmp"
	nonObjectDocumentMessageConstant  = "state document root is not an object"
	persistenceErrorTemplateConstant  = "unable to save state file %s: %v"
	clearErrorTemplateConstant        = "unable to remove state file %s: %w"
	logMessageStateMissingConstant    = "State file not found, starting with an empty cache"
	logMessageStateUnreadableConstant = "State file could not be read, starting with an empty cache"
	logMessageStateCorruptConstant    = "State file is not valid JSON, starting with an empty cache"
	logMessageStateLoadedConstant     = "Loaded state file"
	logMessageStateSavedConstant      = "Saved state file"
	logMessageStateSaveFailedConstant = "Failed to save state file"
	logFieldStatePathConstant         = "state_path"
	logFieldRepositoryCountConstant   = "repository_count"
)

var errNonObjectDocument = errors.New(nonObjectDocumentMessageConstant)

// PersistenceError reports a failed save. The previous file, if any, is left in place.
type PersistenceError struct {
	Path  string
	Cause error
}

// Error describes the failure.
func (persistenceError PersistenceError) Error() string {
	return fmt.Sprintf(persistenceErrorTemplateConstant, persistenceError.Path, persistenceError.Cause)
}

// Unwrap exposes the underlying cause.
func (persistenceError PersistenceError) Unwrap() error {
	return persistenceError.Cause
}

// FileStore loads and atomically replaces the JSON state file.
type FileStore struct {
	fileSystem afero.Fs
	logger     *zap.Logger
}

// NewFileStore constructs a FileStore. Nil arguments fall back to the OS filesystem and a no-op logger.
func NewFileStore(fileSystem afero.Fs, logger *zap.Logger) *FileStore {
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{fileSystem: fileSystem, logger: logger}
}

// Load reads the state file. A missing, unreadable or malformed file yields an empty document.
func (store *FileStore) Load(statePath string) *Document {
	contents, readError := afero.ReadFile(store.fileSystem, statePath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) || errors.Is(readError, os.ErrNotExist) {
			store.logger.Debug(logMessageStateMissingConstant, zap.String(logFieldStatePathConstant, statePath))
		} else {
			store.logger.Warn(logMessageStateUnreadableConstant, zap.String(logFieldStatePathConstant, statePath), zap.Error(readError))
		}
		return NewDocument()
	}

	document := NewDocument()
	if decodeError := json.Unmarshal(contents, document); decodeError != nil {
		store.logger.Warn(logMessageStateCorruptConstant, zap.String(logFieldStatePathConstant, statePath), zap.Error(decodeError))
		return NewDocument()
	}
	store.logger.Debug(logMessageStateLoadedConstant, zap.String(logFieldStatePathConstant, statePath), zap.Int(logFieldRepositoryCountConstant, len(document.Repositories)))
	return document
}

// Save writes the document to a uniquely named file beside the target and renames it into place.
func (store *FileStore) Save(statePath string, document *Document) error {
	if document == nil {
		document = NewDocument()
	}
	saveError := store.save(statePath, document)
	if saveError != nil {
		persistenceError := PersistenceError{Path: statePath, Cause: saveError}
		store.logger.Error(logMessageStateSaveFailedConstant, zap.String(logFieldStatePathConstant, statePath), zap.Error(saveError))
		return persistenceError
	}
	store.logger.Debug(logMessageStateSavedConstant, zap.String(logFieldStatePathConstant, statePath), zap.Int(logFieldRepositoryCountConstant, len(document.Repositories)))
	return nil
}

// Clear deletes the state file. A missing file is not an error.
func (store *FileStore) Clear(statePath string) error {
	removeError := store.fileSystem.Remove(statePath)
	if removeError != nil && !errors.Is(removeError, fs.ErrNotExist) && !errors.Is(removeError, os.ErrNotExist) {
		return fmt.Errorf(clearErrorTemplateConstant, statePath, removeError)
	}
	return nil
}

func (store *FileStore) save(statePath string, document *Document) error {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", stateIndentConstant)
	if encodeError := encoder.Encode(document); encodeError != nil {
		return encodeError
	}

	temporaryPath := filepath.Join(filepath.Dir(statePath), filepath.Base(statePath)+temporaryFileInfixConstant+uuid.NewString())
	if writeError := afero.WriteFile(store.fileSystem, temporaryPath, buffer.Bytes(), stateFilePermissionsConstant); writeError != nil {
		_ = store.fileSystem.Remove(temporaryPath)
		return writeError
	}
	if renameError := store.fileSystem.Rename(temporaryPath, statePath); renameError != nil {
		_ = store.fileSystem.Remove(temporaryPath)
		return renameError
	}
	return nil
}
