package clone

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/alessio/shellescape"
	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/gitaccess/internal/composer"
	"github.com/temirov/gitaccess/internal/execshell"
	"github.com/temirov/gitaccess/internal/prompt"
	"github.com/temirov/gitaccess/internal/repos/shared"
)

const (
	fileSystemNotConfiguredMessageConstant = "clone service requires a filesystem"
	clonerNotConfiguredMessageConstant     = "clone service requires a repository cloner"
	rsyncNotConfiguredMessageConstant      = "clone service requires an rsync executor"
	prompterNotConfiguredMessageConstant   = "clone service requires a prompter"
	cloneCancelledMessageConstant          = "clone workflow cancelled"
	gitDirectoryNameConstant               = ".git"
	gitCommandConstant                     = "git"
	gitCloneSubcommandConstant             = "clone"
	gitCheckoutSubcommandConstant          = "checkout"
	gitDirectoryOptionConstant             = "-C"
	rsyncCommandConstant                   = "rsync"
	rsyncArchiveFlagConstant               = "-a"
	pathSeparatorConstant                  = "/"
	defaultAnswerYesConstant               = "y"
	defaultAnswerNoConstant                = "n"
	iconSuccessConstant                    = "✅"
	iconWarningConstant                    = "⚠️"
	iconInformationConstant                = "➡️"
	iconSkipConstant                       = "⏭️"
	iconFailureConstant                    = "🛑"
	iconDirectoryConstant                  = "📁"
	iconGitConstant                        = "🌱"
	iconCopyConstant                       = "📋"
	lineTemplateConstant                   = "%s %s\n"
	createRootQuestionTemplate             = "Directory '%s' does not exist. Create it?"
	createRootDryRunTemplate               = "[DRY-RUN] Would create directory: %s"
	createdRootTemplate                    = "Created directory: %s"
	rootNotCreatedTemplate                 = "Repositories root %s was not created, nothing to clone"
	processingTemplate                     = "Processing %s (%s)"
	missingURLMessageConstant              = "No repo URL found, skipping"
	cloneQuestionTemplate                  = "Do you want to clone the repository for %s?\nCommand that will be executed: %s"
	skippedCloneTemplate                   = "Skipped cloning %s"
	dryRunCommandTemplate                  = "[DRY-RUN] Would run: %s"
	cloningTemplate                        = "Cloning %s ..."
	cloneFailedMessageConstant             = "Clone failed, skipping"
	alreadyClonedMessageConstant           = "Repo already cloned"
	checkoutQuestionTemplate               = "Do you want to checkout reference %s for %s?\nCommand that will be executed: %s"
	skippedCheckoutTemplate                = "Skipped checkout for %s"
	checkingOutTemplate                    = "Checking out %s ..."
	checkoutFailedMessageConstant          = "Checkout failed, skipping"
	copyQuestionTemplate                   = "Do you want to copy .git folder for %s to %s?"
	skippedCopyTemplate                    = "Skipped .git copy for %s"
	missingGitDirectoryTemplate            = "No .git found in %s"
	overwriteQuestionTemplate              = ".git already exists in %s. Overwrite? Command: %s"
	keptGitDirectoryTemplate               = "Kept existing .git in %s"
	removeDryRunTemplate                   = "[DRY-RUN] Would remove existing .git in %s"
	copiedTemplate                         = ".git copied to %s"
	copyFailedTemplate                     = "Failed to copy .git to %s"
	cancelledMessageConstant               = "Cancelled."
	allDoneMessageConstant                 = "All done. You can now run 'git diff' in module/profile folders."
	packageFailureTemplateConstant         = "%s: %w"
	createRootErrorTemplateConstant        = "unable to create %s: %w"
	removeGitDirectoryErrorTemplate        = "unable to remove %s: %w"
	inspectPathErrorTemplateConstant       = "unable to inspect %s: %w"
	confirmationUnavailableMessageConstant = "unable to read confirmation"
	confirmationErrorTemplateConstant      = "%w: %w"
	logMessagePackageConstant              = "processing package"
	logMessagePackageFailedConstant        = "package preparation failed"
	logFieldPackageConstant                = "package"
	logFieldRepositoryURLConstant          = "repository_url"
	logFieldReferenceConstant              = "reference"
	logFieldInstallPathConstant            = "install_path"
	logFieldRepositoryPathConstant         = "repository_path"
	logFieldErrorConstant                  = "error"
)

var (
	// ErrFileSystemNotConfigured indicates that NewService received a nil filesystem.
	ErrFileSystemNotConfigured = errors.New(fileSystemNotConfiguredMessageConstant)
	// ErrClonerNotConfigured indicates that NewService received a nil cloner.
	ErrClonerNotConfigured = errors.New(clonerNotConfiguredMessageConstant)
	// ErrRsyncExecutorNotConfigured indicates that NewService received a nil rsync executor.
	ErrRsyncExecutorNotConfigured = errors.New(rsyncNotConfiguredMessageConstant)
	// ErrPrompterNotConfigured indicates that NewService received a nil prompter.
	ErrPrompterNotConfigured = errors.New(prompterNotConfiguredMessageConstant)
	// ErrCloneCancelled indicates the operator cancelled the workflow.
	ErrCloneCancelled = errors.New(cloneCancelledMessageConstant)

	errConfirmationUnavailable = errors.New(confirmationUnavailableMessageConstant)
)

// ServiceDependencies enumerates collaborators required by the clone workflow.
type ServiceDependencies struct {
	FileSystem    afero.Fs
	Cloner        RepositoryCloner
	RsyncExecutor shared.RsyncExecutor
	Prompter      prompt.Prompter
	Output        io.Writer
	Logger        *zap.Logger
}

// Options configures a single clone run.
type Options struct {
	Docroot          string
	RepositoriesRoot string
	DryRun           bool
	AssumeYes        bool
	ColorEnabled     bool
}

// Service clones contributed extensions and splices their .git directories into the docroot.
type Service struct {
	fileSystem    afero.Fs
	cloner        RepositoryCloner
	rsyncExecutor shared.RsyncExecutor
	prompter      prompt.Prompter
	output        io.Writer
	logger        *zap.Logger
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.FileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	if dependencies.Cloner == nil {
		return nil, ErrClonerNotConfigured
	}
	if dependencies.RsyncExecutor == nil {
		return nil, ErrRsyncExecutorNotConfigured
	}
	if dependencies.Prompter == nil {
		return nil, ErrPrompterNotConfigured
	}
	output := dependencies.Output
	if output == nil {
		output = io.Discard
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		fileSystem:    dependencies.FileSystem,
		cloner:        dependencies.Cloner,
		rsyncExecutor: dependencies.RsyncExecutor,
		prompter:      dependencies.Prompter,
		output:        output,
		logger:        logger,
	}, nil
}

type palette struct {
	success *color.Color
	warning *color.Color
	failure *color.Color
	plain   *color.Color
}

func newPalette(enabled bool) palette {
	colors := palette{
		success: color.New(color.FgGreen),
		warning: color.New(color.FgYellow),
		failure: color.New(color.FgRed),
		plain:   color.New(color.Reset),
	}
	for _, painter := range []*color.Color{colors.success, colors.warning, colors.failure, colors.plain} {
		if enabled {
			painter.EnableColor()
		} else {
			painter.DisableColor()
		}
	}
	return colors
}

type cloneSession struct {
	service   *Service
	options   Options
	confirmer *Confirmer
	colors    palette
}

// Run prepares every contributed extension among packages. Failures of single packages are
// aggregated and returned after all packages were processed. Cancellation returns ErrCloneCancelled.
func (service *Service) Run(executionContext context.Context, packages []composer.Package, options Options) error {
	session := &cloneSession{
		service:   service,
		options:   options,
		confirmer: NewConfirmer(service.prompter, shared.ConfirmationPolicyFromBool(options.AssumeYes), service.output),
		colors:    newPalette(options.ColorEnabled),
	}

	proceed, rootError := session.ensureRepositoriesRoot()
	if rootError != nil {
		return session.abort(rootError)
	}
	if !proceed {
		session.print(iconSkipConstant, session.colors.warning, rootNotCreatedTemplate, options.RepositoriesRoot)
		return nil
	}

	var failures *multierror.Error
	for _, extension := range composer.ContributedExtensions(packages) {
		packageError := session.processPackage(executionContext, extension)
		if isAbort(packageError) {
			return session.abort(packageError)
		}
		if packageError != nil {
			service.logger.Warn(logMessagePackageFailedConstant, zap.String(logFieldPackageConstant, extension.Name), zap.Error(packageError))
			failures = multierror.Append(failures, fmt.Errorf(packageFailureTemplateConstant, extension.Name, packageError))
		}
	}

	fmt.Fprint(service.output, "\n")
	session.print(iconSuccessConstant, session.colors.success, allDoneMessageConstant)
	return failures.ErrorOrNil()
}

func (session *cloneSession) abort(abortError error) error {
	if errors.Is(abortError, ErrCloneCancelled) {
		session.print(iconFailureConstant, session.colors.failure, cancelledMessageConstant)
	}
	return abortError
}

func (session *cloneSession) ensureRepositoriesRoot() (bool, error) {
	fileSystem := session.service.fileSystem
	root := session.options.RepositoriesRoot
	exists, existsError := afero.DirExists(fileSystem, root)
	if existsError != nil {
		return false, fmt.Errorf(inspectPathErrorTemplateConstant, root, existsError)
	}
	if exists {
		return true, nil
	}

	decision, confirmError := session.confirm(fmt.Sprintf(createRootQuestionTemplate, root), defaultAnswerYesConstant)
	if confirmError != nil {
		return false, confirmError
	}
	if decision != DecisionYes {
		return false, nil
	}
	if session.options.DryRun {
		session.print(iconDirectoryConstant, session.colors.plain, createRootDryRunTemplate, root)
		return true, nil
	}
	if mkdirError := fileSystem.MkdirAll(root, 0o755); mkdirError != nil {
		return false, fmt.Errorf(createRootErrorTemplateConstant, root, mkdirError)
	}
	session.print(iconDirectoryConstant, session.colors.plain, createdRootTemplate, root)
	return true, nil
}

func isAbort(candidate error) bool {
	return errors.Is(candidate, ErrCloneCancelled) || errors.Is(candidate, errConfirmationUnavailable)
}

func (session *cloneSession) processPackage(executionContext context.Context, extension composer.Package) error {
	repositoryURL := extension.RepositoryURL()
	reference := extension.Reference()
	installPath, _ := extension.InstallPath(session.options.Docroot)
	repositoryPath := filepath.Join(session.options.RepositoriesRoot, extension.MachineName())

	fmt.Fprint(session.service.output, "\n")
	session.print(iconInformationConstant, session.colors.plain, processingTemplate, extension.Name, extension.Type)
	session.service.logger.Debug(
		logMessagePackageConstant,
		zap.String(logFieldPackageConstant, extension.Name),
		zap.String(logFieldRepositoryURLConstant, repositoryURL),
		zap.String(logFieldReferenceConstant, reference),
		zap.String(logFieldInstallPathConstant, installPath),
		zap.String(logFieldRepositoryPathConstant, repositoryPath),
	)
	if len(repositoryURL) == 0 {
		session.print(iconWarningConstant, session.colors.warning, missingURLMessageConstant)
		return nil
	}

	proceed, cloneError := session.cloneRepository(executionContext, extension.Name, repositoryURL, repositoryPath)
	if cloneError != nil || !proceed {
		return cloneError
	}

	if len(reference) > 0 {
		proceed, checkoutError := session.checkoutReference(executionContext, extension.Name, repositoryPath, reference)
		if checkoutError != nil || !proceed {
			return checkoutError
		}
	}

	decision, confirmError := session.confirm(fmt.Sprintf(copyQuestionTemplate, extension.Name, installPath), defaultAnswerYesConstant)
	if confirmError != nil {
		return confirmError
	}
	if decision != DecisionYes {
		session.print(iconSkipConstant, session.colors.warning, skippedCopyTemplate, extension.Name)
		return nil
	}
	return session.copyGitDirectory(executionContext, repositoryPath, installPath)
}

func (session *cloneSession) cloneRepository(executionContext context.Context, packageName string, repositoryURL string, repositoryPath string) (bool, error) {
	alreadyCloned, existsError := afero.DirExists(session.service.fileSystem, filepath.Join(repositoryPath, gitDirectoryNameConstant))
	if existsError != nil {
		return false, fmt.Errorf(inspectPathErrorTemplateConstant, repositoryPath, existsError)
	}
	if alreadyCloned {
		session.print(iconSuccessConstant, session.colors.success, alreadyClonedMessageConstant)
		return true, nil
	}

	cloneCommand := shellescape.QuoteCommand([]string{gitCommandConstant, gitCloneSubcommandConstant, repositoryURL, repositoryPath})
	decision, confirmError := session.confirm(fmt.Sprintf(cloneQuestionTemplate, packageName, cloneCommand), defaultAnswerYesConstant)
	if confirmError != nil {
		return false, confirmError
	}
	if decision != DecisionYes {
		session.print(iconSkipConstant, session.colors.warning, skippedCloneTemplate, repositoryURL)
		return false, nil
	}
	if session.options.DryRun {
		session.print(iconGitConstant, session.colors.plain, dryRunCommandTemplate, cloneCommand)
		return true, nil
	}

	session.print(iconGitConstant, session.colors.plain, cloningTemplate, repositoryURL)
	if cloneError := session.service.cloner.Clone(executionContext, repositoryURL, repositoryPath); cloneError != nil {
		session.print(iconFailureConstant, session.colors.failure, cloneFailedMessageConstant)
		return false, cloneError
	}
	return true, nil
}

func (session *cloneSession) checkoutReference(executionContext context.Context, packageName string, repositoryPath string, reference string) (bool, error) {
	checkoutCommand := shellescape.QuoteCommand([]string{gitCommandConstant, gitDirectoryOptionConstant, repositoryPath, gitCheckoutSubcommandConstant, reference})
	decision, confirmError := session.confirm(fmt.Sprintf(checkoutQuestionTemplate, reference, packageName, checkoutCommand), defaultAnswerYesConstant)
	if confirmError != nil {
		return false, confirmError
	}
	if decision != DecisionYes {
		session.print(iconSkipConstant, session.colors.warning, skippedCheckoutTemplate, packageName)
		return false, nil
	}
	if session.options.DryRun {
		session.print(iconGitConstant, session.colors.plain, dryRunCommandTemplate, checkoutCommand)
		return true, nil
	}

	session.print(iconGitConstant, session.colors.plain, checkingOutTemplate, reference)
	if checkoutError := session.service.cloner.Checkout(executionContext, repositoryPath, reference); checkoutError != nil {
		session.print(iconFailureConstant, session.colors.failure, checkoutFailedMessageConstant)
		return false, checkoutError
	}
	return true, nil
}

func (session *cloneSession) copyGitDirectory(executionContext context.Context, repositoryPath string, installPath string) error {
	fileSystem := session.service.fileSystem
	sourceDirectory := filepath.Join(repositoryPath, gitDirectoryNameConstant)
	destinationDirectory := filepath.Join(installPath, gitDirectoryNameConstant)

	if !session.options.DryRun {
		sourceExists, sourceError := afero.DirExists(fileSystem, sourceDirectory)
		if sourceError != nil {
			return fmt.Errorf(inspectPathErrorTemplateConstant, sourceDirectory, sourceError)
		}
		if !sourceExists {
			session.print(iconWarningConstant, session.colors.warning, missingGitDirectoryTemplate, repositoryPath)
			return nil
		}
	}

	rsyncArguments := []string{rsyncArchiveFlagConstant, sourceDirectory + pathSeparatorConstant, destinationDirectory + pathSeparatorConstant}
	rsyncCommand := shellescape.QuoteCommand(append([]string{rsyncCommandConstant}, rsyncArguments...))

	destinationExists, destinationError := afero.DirExists(fileSystem, destinationDirectory)
	if destinationError != nil {
		return fmt.Errorf(inspectPathErrorTemplateConstant, destinationDirectory, destinationError)
	}
	if destinationExists {
		decision, confirmError := session.confirmEach(fmt.Sprintf(overwriteQuestionTemplate, installPath, rsyncCommand), defaultAnswerNoConstant)
		if confirmError != nil {
			return confirmError
		}
		if decision != DecisionYes {
			session.print(iconSkipConstant, session.colors.warning, keptGitDirectoryTemplate, installPath)
			return nil
		}
		if session.options.DryRun {
			session.print(iconCopyConstant, session.colors.plain, removeDryRunTemplate, installPath)
		} else if removeError := fileSystem.RemoveAll(destinationDirectory); removeError != nil {
			return fmt.Errorf(removeGitDirectoryErrorTemplate, destinationDirectory, removeError)
		}
	}

	if session.options.DryRun {
		session.print(iconCopyConstant, session.colors.plain, dryRunCommandTemplate, rsyncCommand)
		return nil
	}
	if _, rsyncError := session.service.rsyncExecutor.ExecuteRsync(executionContext, execshell.CommandDetails{Arguments: rsyncArguments}); rsyncError != nil {
		session.print(iconFailureConstant, session.colors.failure, copyFailedTemplate, installPath)
		return rsyncError
	}
	session.print(iconSuccessConstant, session.colors.success, copiedTemplate, installPath)
	return nil
}

func (session *cloneSession) confirm(message string, defaultKey string) (Decision, error) {
	return session.interpret(session.confirmer.Confirm(message, defaultKey))
}

func (session *cloneSession) confirmEach(message string, defaultKey string) (Decision, error) {
	return session.interpret(session.confirmer.ConfirmEach(message, defaultKey))
}

func (session *cloneSession) interpret(decision Decision, confirmError error) (Decision, error) {
	if confirmError != nil {
		return DecisionCancel, fmt.Errorf(confirmationErrorTemplateConstant, confirmError)
	}
	if decision == DecisionCancel {
		return DecisionCancel, ErrCloneCancelled
	}
	return decision, nil
}

func (session *cloneSession) print(icon string, painter *color.Color, template string, arguments ...any) {
	fmt.Fprintf(session.service.output, lineTemplateConstant, icon, painter.Sprintf(template, arguments...))
}
