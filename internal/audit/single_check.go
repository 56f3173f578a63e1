package audit

import (
	"context"
	"fmt"
	"io"

	"github.com/temirov/gitaccess/internal/access"
	"github.com/temirov/gitaccess/internal/gitrepo"
)

const (
	singleCheckHeaderTemplateConstant     = "\n[ACCESS CHECK] URL: %s\n"
	singleCheckCanonicalTemplateConstant  = "Canonical URL: %s\n"
	singleCheckRejectedTemplateConstant   = "Canonicalization failed: %s\n"
	singleCheckPlatformTemplateConstant   = "Platform: %s\nRepo path: %s\n"
	singleCheckResultTemplateConstant     = "%s access: %s\n"
	singleCheckUnsupportedMessageConstant = "Unknown platform or unsupported URL.\n"
	singleCheckErrorTemplateConstant      = "Error: %v\n"
)

var singleCheckPlatformNames = map[gitrepo.Platform]string{
	gitrepo.PlatformGitHub: "GitHub",
	gitrepo.PlatformGitLab: "GitLab",
}

// CheckSingleURL canonicalizes, classifies and checks one url, printing every step.
// The state document is not involved.
func CheckSingleURL(executionContext context.Context, output io.Writer, checkers map[gitrepo.Platform]access.Checker, rawURL string) access.Status {
	fmt.Fprintf(output, singleCheckHeaderTemplateConstant, rawURL)

	candidateURL := rawURL
	canonicalURL, canonicalError := gitrepo.CanonicalizeRepositoryURL(rawURL)
	if canonicalError != nil {
		fmt.Fprintf(output, singleCheckRejectedTemplateConstant, canonicalError)
	} else {
		candidateURL = canonicalURL
		fmt.Fprintf(output, singleCheckCanonicalTemplateConstant, canonicalURL)
	}

	platform := gitrepo.ClassifyPlatform(candidateURL)
	repositoryPath, pathFound := gitrepo.ExtractRepositoryPath(candidateURL)
	fmt.Fprintf(output, singleCheckPlatformTemplateConstant, platform, repositoryPath)

	checker, supported := checkers[platform]
	if !supported || checker == nil || canonicalError != nil {
		fmt.Fprint(output, singleCheckUnsupportedMessageConstant)
		return access.StatusUnknown
	}
	if !pathFound {
		fmt.Fprintf(output, singleCheckResultTemplateConstant, singleCheckPlatformNames[platform], access.StatusCheckFailed)
		return access.StatusCheckFailed
	}

	status, checkError := checker.CheckAccess(executionContext, repositoryPath)
	fmt.Fprintf(output, singleCheckResultTemplateConstant, singleCheckPlatformNames[platform], status)
	if checkError != nil {
		fmt.Fprintf(output, singleCheckErrorTemplateConstant, checkError)
	}
	return status
}
