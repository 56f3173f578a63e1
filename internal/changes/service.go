package changes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/temirov/gitaccess/internal/audit"
	"github.com/temirov/gitaccess/internal/gitrepo"
	"github.com/temirov/gitaccess/internal/prompt"
	"github.com/temirov/gitaccess/internal/repos/shared"
	"github.com/temirov/gitaccess/internal/state"
)

const (
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	prompterMissingMessageConstant          = "prompter not configured"
	workflowCancelledMessageConstant        = "workflow cancelled by operator"
	branchTimestampLayoutConstant           = "20060102_150405"
	writableHeaderConstant                  = "\nWritable packages (read-write access):\n"
	packageLineTemplateConstant             = "  - %s (%s)\n"
	readOnlyHeaderConstant                  = "\nRead-only or unknown packages:\n"
	noWritablePackagesMessageConstant       = "\nNo writable packages found. Exiting.\n"
	proceedingMessageConstant               = "\nProceeding with writable packages...\n"
	allDoneMessageConstant                  = "\nAll done.\n"
	packageHeaderTemplateConstant           = "\n==== %s ====\n"
	statusHeaderConstant                    = "\n--- git status (short) ---\n"
	diffHeaderConstant                      = "\n--- git diff (minimal) ---\n"
	stagedHeaderConstant                    = "\n--- Staged files (already added, ready to commit) ---\n"
	stagedLineTemplateConstant              = "  [staged] %s\n"
	actionPromptConstant                    = "Action?"
	actionAddKeyConstant                    = "a"
	actionBranchKeyConstant                 = "b"
	actionSkipKeyConstant                   = "s"
	actionNextKeyConstant                   = "n"
	actionQuitKeyConstant                   = "q"
	skippedTemplateConstant                 = "Skipped %s\n"
	quittingMessageConstant                 = "Quitting.\n"
	noChangedFilesMessageConstant           = "No changed files to add.\n"
	selectFilesMessageConstant              = "Select files to add (comma-separated numbers, or Enter to cancel):\n"
	selectFileLineTemplateConstant          = "  %d. %s\n"
	selectionPromptConstant                 = "Files to add"
	selectionSeparatorConstant              = ","
	invalidSelectionTemplateConstant        = "Ignoring invalid selection %q\n"
	addingFileTemplateConstant              = "Adding %s\n"
	filesAddedMessageConstant               = "Files added.\n"
	noFilesSelectedMessageConstant          = "No files selected.\n"
	branchNamePromptConstant                = "Enter branch name"
	commitMessagePromptConstant             = "Enter commit message"
	remoteURLTemplateConstant               = "Remote URL: %s\n"
	canonicalPushURLTemplateConstant        = "Using canonical SSH push URL: %s\n"
	alreadySSHMessageConstant               = "Remote is already SSH format.\n"
	unrecognizedRemoteMessageConstant       = "[WARNING] Remote URL is not recognized for SSH rewrite. Push may fail.\n"
	continueReviewPromptConstant            = "\nBranch pushed. Continue reviewing this package?"
	continueYesKeyConstant                  = "y"
	continueNoKeyConstant                   = "n"
	actionErrorTemplateConstant             = "[ERROR] %v\n"
	sshPrefixConstant                       = "git@"
	lineSeparatorConstant                   = "\n"
	logMessageBranchPushedConstant          = "workflow branch pushed"
	logMessageActionFailedConstant          = "workflow action failed"
	logFieldRepositoryPathConstant          = "repository_path"
	logFieldRepositoryURLConstant           = "repository_url"
	logFieldBranchNameConstant              = "branch_name"
	logFieldActionConstant                  = "action"
)

var (
	// ErrRepositoryManagerNotConfigured indicates the service was built without git access.
	ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)
	// ErrPrompterNotConfigured indicates an interactive review was requested without a prompter.
	ErrPrompterNotConfigured = errors.New(prompterMissingMessageConstant)
	// ErrWorkflowCancelled indicates the operator chose to quit the review.
	ErrWorkflowCancelled = errors.New(workflowCancelledMessageConstant)
)

var (
	addOption    = prompt.Option{Key: actionAddKeyConstant, Description: "add"}
	branchOption = prompt.Option{Key: actionBranchKeyConstant, Description: "branch/push"}
	skipOption   = prompt.Option{Key: actionSkipKeyConstant, Description: "skip"}
	nextOption   = prompt.Option{Key: actionNextKeyConstant, Description: "next"}
	quitOption   = prompt.Option{Key: actionQuitKeyConstant, Description: "quit"}
	yesNoOptions = []prompt.Option{
		{Key: continueYesKeyConstant, Description: "yes"},
		{Key: continueNoKeyConstant, Description: "no"},
	}
)

// ServiceDependencies enumerates collaborators required by the service.
type ServiceDependencies struct {
	RepositoryManager shared.RepositoryManager
	Prompter          prompt.Prompter
	Clock             clock.Clock
	Output            io.Writer
	Logger            *zap.Logger
}

// Options configure one review pass.
type Options struct {
	BranchPrefix  string
	CommitMessage string
	Interactive   bool
}

// Service walks writable checkouts and helps the operator stage, commit and push their changes.
type Service struct {
	repositories shared.RepositoryManager
	prompter     prompt.Prompter
	clock        clock.Clock
	output       io.Writer
	logger       *zap.Logger
}

type packageDecision int

const (
	decisionNext packageDecision = iota
	decisionRepeat
	decisionQuit
)

// NewService constructs a Service from the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	serviceClock := dependencies.Clock
	if serviceClock == nil {
		serviceClock = clock.New()
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
		repositories: dependencies.RepositoryManager,
		prompter:     dependencies.Prompter,
		clock:        serviceClock,
		output:       output,
		logger:       logger,
	}, nil
}

// Review prints the access partition and walks every writable checkout.
// It returns ErrWorkflowCancelled when the operator quits. The document is updated in place and never saved here.
func (service *Service) Review(executionContext context.Context, result audit.BatchResult, document *state.Document, options Options) error {
	if options.Interactive && service.prompter == nil {
		return ErrPrompterNotConfigured
	}

	service.printPartition(result)
	if len(result.Writable) == 0 {
		fmt.Fprint(service.output, noWritablePackagesMessageConstant)
		return nil
	}

	fmt.Fprint(service.output, proceedingMessageConstant)
	for _, outcome := range result.Writable {
		decision, reviewError := service.reviewCheckout(executionContext, outcome, document, options)
		if reviewError != nil {
			return reviewError
		}
		if decision == decisionQuit {
			return ErrWorkflowCancelled
		}
	}
	fmt.Fprint(service.output, allDoneMessageConstant)
	return nil
}

func (service *Service) printPartition(result audit.BatchResult) {
	fmt.Fprint(service.output, writableHeaderConstant)
	for _, outcome := range result.Writable {
		fmt.Fprintf(service.output, packageLineTemplateConstant, outcome.Target.Name, outcome.CanonicalURL)
	}
	fmt.Fprint(service.output, readOnlyHeaderConstant)
	for _, outcome := range result.ReadOnly {
		fmt.Fprintf(service.output, packageLineTemplateConstant, outcome.Target.Name, outcome.Reason)
	}
}

func (service *Service) reviewCheckout(executionContext context.Context, outcome audit.Outcome, document *state.Document, options Options) (packageDecision, error) {
	for {
		staged := service.showWorkingTree(executionContext, outcome.Target.Directory)
		if !options.Interactive {
			return decisionNext, nil
		}

		actionOptions := []prompt.Option{addOption}
		if len(staged) > 0 {
			actionOptions = append(actionOptions, branchOption)
		}
		actionOptions = append(actionOptions, skipOption, nextOption, quitOption)

		action, promptError := service.prompter.PromptChoice(actionPromptConstant, actionOptions, actionNextKeyConstant)
		if promptError != nil {
			return decisionQuit, promptError
		}

		var decision packageDecision
		switch action {
		case actionAddKeyConstant:
			decision = service.addFiles(executionContext, outcome.Target.Directory)
		case actionBranchKeyConstant:
			decision, promptError = service.branchAndPush(executionContext, outcome, document, options)
			if promptError != nil {
				return decisionQuit, promptError
			}
		case actionSkipKeyConstant:
			fmt.Fprintf(service.output, skippedTemplateConstant, outcome.Target.Name)
			decision = decisionNext
		case actionQuitKeyConstant:
			fmt.Fprint(service.output, quittingMessageConstant)
			decision = decisionQuit
		default:
			decision = decisionNext
		}

		if decision != decisionRepeat {
			return decision, nil
		}
	}
}

func (service *Service) showWorkingTree(executionContext context.Context, repositoryPath string) []string {
	fmt.Fprintf(service.output, packageHeaderTemplateConstant, repositoryPath)

	fmt.Fprint(service.output, statusHeaderConstant)
	service.printGitOutput(service.repositories.WorkingTreeStatus(executionContext, repositoryPath))

	fmt.Fprint(service.output, diffHeaderConstant)
	service.printGitOutput(service.repositories.UnstagedDiff(executionContext, repositoryPath))

	staged, stagedError := service.repositories.StagedFiles(executionContext, repositoryPath)
	if stagedError != nil {
		fmt.Fprintf(service.output, actionErrorTemplateConstant, stagedError)
		return nil
	}
	if len(staged) > 0 {
		fmt.Fprint(service.output, stagedHeaderConstant)
		for _, stagedFile := range staged {
			fmt.Fprintf(service.output, stagedLineTemplateConstant, stagedFile)
		}
	}
	return staged
}

func (service *Service) printGitOutput(output string, gitError error) {
	if gitError != nil {
		fmt.Fprintf(service.output, actionErrorTemplateConstant, gitError)
		return
	}
	if len(output) == 0 {
		return
	}
	fmt.Fprint(service.output, output)
	if !strings.HasSuffix(output, lineSeparatorConstant) {
		fmt.Fprint(service.output, lineSeparatorConstant)
	}
}

func (service *Service) addFiles(executionContext context.Context, repositoryPath string) packageDecision {
	changedFiles, changedError := service.repositories.ChangedFiles(executionContext, repositoryPath)
	if changedError != nil {
		service.reportActionFailure(repositoryPath, actionAddKeyConstant, changedError)
		return decisionRepeat
	}
	if len(changedFiles) == 0 {
		fmt.Fprint(service.output, noChangedFilesMessageConstant)
		return decisionRepeat
	}

	fmt.Fprint(service.output, selectFilesMessageConstant)
	for fileIndex, changedFile := range changedFiles {
		fmt.Fprintf(service.output, selectFileLineTemplateConstant, fileIndex+1, changedFile)
	}
	selection, promptError := service.prompter.PromptText(selectionPromptConstant, "")
	if promptError != nil {
		service.reportActionFailure(repositoryPath, actionAddKeyConstant, promptError)
		return decisionRepeat
	}

	selectedFiles := service.parseSelection(selection, changedFiles)
	if len(selectedFiles) == 0 {
		fmt.Fprint(service.output, noFilesSelectedMessageConstant)
		return decisionRepeat
	}
	for _, selectedFile := range selectedFiles {
		fmt.Fprintf(service.output, addingFileTemplateConstant, selectedFile)
		if stageError := service.repositories.StageFile(executionContext, repositoryPath, selectedFile); stageError != nil {
			service.reportActionFailure(repositoryPath, actionAddKeyConstant, stageError)
			return decisionRepeat
		}
	}
	fmt.Fprint(service.output, filesAddedMessageConstant)
	return decisionRepeat
}

// parseSelection maps 1-based comma-separated numbers to files, ignoring invalid entries and repeats.
func (service *Service) parseSelection(selection string, changedFiles []string) []string {
	selectedFiles := make([]string, 0, len(changedFiles))
	chosen := make(map[int]struct{}, len(changedFiles))
	for _, rawEntry := range strings.Split(selection, selectionSeparatorConstant) {
		entry := strings.TrimSpace(rawEntry)
		if len(entry) == 0 {
			continue
		}
		fileNumber, parseError := strconv.Atoi(entry)
		if parseError != nil || fileNumber < 1 || fileNumber > len(changedFiles) {
			fmt.Fprintf(service.output, invalidSelectionTemplateConstant, entry)
			continue
		}
		if _, duplicate := chosen[fileNumber]; duplicate {
			continue
		}
		chosen[fileNumber] = struct{}{}
		selectedFiles = append(selectedFiles, changedFiles[fileNumber-1])
	}
	return selectedFiles
}

func (service *Service) branchAndPush(executionContext context.Context, outcome audit.Outcome, document *state.Document, options Options) (packageDecision, error) {
	repositoryPath := outcome.Target.Directory
	defaultBranchName := options.BranchPrefix + service.clock.Now().Format(branchTimestampLayoutConstant)

	branchName, branchPromptError := service.prompter.PromptText(branchNamePromptConstant, defaultBranchName)
	if branchPromptError != nil {
		return decisionQuit, branchPromptError
	}
	commitMessage, messagePromptError := service.prompter.PromptText(commitMessagePromptConstant, options.CommitMessage)
	if messagePromptError != nil {
		return decisionQuit, messagePromptError
	}

	if branchError := service.repositories.CreateBranch(executionContext, repositoryPath, branchName); branchError != nil {
		service.reportActionFailure(repositoryPath, actionBranchKeyConstant, branchError)
		return decisionRepeat, nil
	}
	if commitError := service.repositories.Commit(executionContext, repositoryPath, commitMessage); commitError != nil {
		service.reportActionFailure(repositoryPath, actionBranchKeyConstant, commitError)
		return decisionRepeat, nil
	}

	remoteURL, remoteError := service.repositories.GetRemoteURL(executionContext, repositoryPath, shared.OriginRemoteNameConstant)
	if remoteError != nil {
		service.reportActionFailure(repositoryPath, actionBranchKeyConstant, remoteError)
		return decisionRepeat, nil
	}
	fmt.Fprintf(service.output, remoteURLTemplateConstant, remoteURL)

	pushURL := service.resolvePushURL(remoteURL)
	if pushError := service.repositories.PushBranch(executionContext, repositoryPath, pushURL, branchName); pushError != nil {
		service.reportActionFailure(repositoryPath, actionBranchKeyConstant, pushError)
		return decisionRepeat, nil
	}

	if document != nil && len(outcome.CanonicalURL) > 0 {
		document.RecordWorkflowBranch(outcome.CanonicalURL, branchName, service.clock.Now())
	}
	service.logger.Info(
		logMessageBranchPushedConstant,
		zap.String(logFieldRepositoryPathConstant, repositoryPath),
		zap.String(logFieldRepositoryURLConstant, pushURL),
		zap.String(logFieldBranchNameConstant, branchName),
	)

	continueReview, continueError := service.prompter.PromptChoice(continueReviewPromptConstant, yesNoOptions, continueNoKeyConstant)
	if continueError != nil {
		return decisionQuit, continueError
	}
	if continueReview == continueYesKeyConstant {
		return decisionRepeat, nil
	}
	return decisionNext, nil
}

// resolvePushURL prefers the canonical SSH form of the origin url and falls back to the raw url.
func (service *Service) resolvePushURL(remoteURL string) string {
	canonicalURL, canonicalError := gitrepo.CanonicalizeRepositoryURL(remoteURL)
	if canonicalError != nil || !strings.HasPrefix(canonicalURL, sshPrefixConstant) {
		fmt.Fprint(service.output, unrecognizedRemoteMessageConstant)
		return remoteURL
	}
	if canonicalURL == strings.TrimSpace(remoteURL) {
		fmt.Fprint(service.output, alreadySSHMessageConstant)
	} else {
		fmt.Fprintf(service.output, canonicalPushURLTemplateConstant, canonicalURL)
	}
	return canonicalURL
}

func (service *Service) reportActionFailure(repositoryPath string, action string, failure error) {
	fmt.Fprintf(service.output, actionErrorTemplateConstant, failure)
	service.logger.Warn(
		logMessageActionFailedConstant,
		zap.String(logFieldRepositoryPathConstant, repositoryPath),
		zap.String(logFieldActionConstant, action),
		zap.Error(failure),
	)
}
