package audit

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/temirov/gitaccess/internal/access"
	"github.com/temirov/gitaccess/internal/gitrepo"
)

const (
	summaryHeaderConstant             = "Access check complete. Summary for this run:\n"
	summaryLineTemplateConstant       = " - %s: %-12s: %d\n"
	summaryLabelWidthTemplateConstant = "%-30s"
	summaryTotalLabelConstant         = "Total"
	stateChangesTemplateConstant      = "State file update complete. Added: %d, Updated: %d\n"
	archiveSizeTemplateConstant       = ">>> Latest release/tag archive size for %s: %s\n"
	archiveSizeFailedTemplateConstant = ">>> Could not determine latest release/tag archive size for %s: %s\n"
	problematicHeaderConstant         = "--- Problematic Repositories ---\n"
	problematicStatusTemplateConstant = "Repositories with status '%s':\n"
	problematicLineTemplateConstant   = "  - [%s] %s\n"
	problematicFooterConstant         = "--- End Problematic Repositories ---\n"
	noProblematicMessageConstant      = "No problematic repositories found in this run.\n"
	unsupportedReportFormatTemplate   = "unsupported report format %q"
	jsonIndentConstant                = "  "
	yamlIndentConstant                = 2
)

var (
	reportPlatforms     = []gitrepo.Platform{gitrepo.PlatformGitHub, gitrepo.PlatformGitLab, gitrepo.PlatformOther}
	problematicStatuses = []access.Status{access.StatusInaccessible, access.StatusCheckFailed, access.StatusUnknown}
	reportCounterKeys   = []string{
		string(access.StatusReadWrite),
		string(access.StatusReadOnly),
		string(access.StatusInaccessible),
		string(access.StatusCheckFailed),
		string(access.StatusUnknown),
		CounterSkipped,
	}
	counterLabels = map[string]string{
		string(access.StatusReadWrite):    "Writable",
		string(access.StatusReadOnly):     "Read-Only",
		string(access.StatusInaccessible): "Inaccessible",
		string(access.StatusCheckFailed):  "Check Failed",
		string(access.StatusUnknown):      "Unknown Platform",
		CounterSkipped:                    "Skipped (Already Read-Write)",
	}
	platformLabels = map[gitrepo.Platform]string{
		gitrepo.PlatformGitHub: "GitHub",
		gitrepo.PlatformGitLab: "GitLab (d.o)",
		gitrepo.PlatformOther:  "Other/Unknown",
	}
	counterColors = map[string]color.Attribute{
		string(access.StatusReadWrite):    color.FgGreen,
		string(access.StatusReadOnly):     color.FgYellow,
		string(access.StatusInaccessible): color.FgRed,
		string(access.StatusCheckFailed):  color.FgRed,
		string(access.StatusUnknown):      color.FgMagenta,
		CounterSkipped:                    color.FgCyan,
	}
)

// CountEntry is one non-zero cell of the platform by status breakdown.
type CountEntry struct {
	Status   string           `json:"status" yaml:"status"`
	Platform gitrepo.Platform `json:"platform" yaml:"platform"`
	Count    int              `json:"count" yaml:"count"`
}

// MachineReport is the serialized form of a Summary.
type MachineReport struct {
	Counts       []CountEntry            `json:"counts" yaml:"counts"`
	Added        int                     `json:"added" yaml:"added"`
	Updated      int                     `json:"updated" yaml:"updated"`
	Problematic  []ProblematicRepository `json:"problematic" yaml:"problematic"`
	ArchiveSizes []ArchiveSizeReport     `json:"archive_sizes,omitempty" yaml:"archive_sizes,omitempty"`
}

// ReportWriter renders a Summary.
type ReportWriter struct {
	Writer          io.Writer
	Format          string
	ShowProblematic bool
	ColorEnabled    bool
}

// Write renders the summary in the configured format.
func (reportWriter ReportWriter) Write(summary Summary) error {
	switch reportWriter.Format {
	case "", ReportFormatText:
		reportWriter.writeText(summary)
		return nil
	case ReportFormatJSON:
		encoder := json.NewEncoder(reportWriter.Writer)
		encoder.SetEscapeHTML(false)
		encoder.SetIndent("", jsonIndentConstant)
		return encoder.Encode(BuildMachineReport(summary))
	case ReportFormatYAML:
		encoder := yaml.NewEncoder(reportWriter.Writer)
		encoder.SetIndent(yamlIndentConstant)
		if encodeError := encoder.Encode(BuildMachineReport(summary)); encodeError != nil {
			return encodeError
		}
		return encoder.Close()
	default:
		return fmt.Errorf(unsupportedReportFormatTemplate, reportWriter.Format)
	}
}

// BuildMachineReport flattens the counters in report order and drops empty cells.
func BuildMachineReport(summary Summary) MachineReport {
	report := MachineReport{
		Counts:       []CountEntry{},
		Added:        summary.Added,
		Updated:      summary.Updated,
		Problematic:  []ProblematicRepository{},
		ArchiveSizes: summary.ArchiveSizes,
	}
	for _, counterKey := range reportCounterKeys {
		for _, platform := range reportPlatforms {
			if count := summary.Count(platform, counterKey); count > 0 {
				report.Counts = append(report.Counts, CountEntry{Status: counterKey, Platform: platform, Count: count})
			}
		}
	}
	report.Problematic = append(report.Problematic, summary.Problematic...)
	return report
}

func (reportWriter ReportWriter) writeText(summary Summary) {
	output := reportWriter.Writer

	for _, archiveSize := range summary.ArchiveSizes {
		if len(archiveSize.Error) > 0 {
			fmt.Fprintf(output, archiveSizeFailedTemplateConstant, archiveSize.RepositoryURL, archiveSize.Error)
			continue
		}
		fmt.Fprintf(output, archiveSizeTemplateConstant, archiveSize.RepositoryURL, archiveSize.HumanReadable)
	}

	fmt.Fprintf(output, stateChangesTemplateConstant, summary.Added, summary.Updated)
	fmt.Fprint(output, summaryHeaderConstant)
	for _, counterKey := range reportCounterKeys {
		label := reportWriter.colorize(counterKey, fmt.Sprintf(summaryLabelWidthTemplateConstant, counterLabels[counterKey]))
		printedForKey := false
		for _, platform := range reportPlatforms {
			count := summary.Count(platform, counterKey)
			if count == 0 {
				continue
			}
			fmt.Fprintf(output, summaryLineTemplateConstant, label, platformLabels[platform], count)
			printedForKey = true
		}
		if counterKey == CounterSkipped && !printedForKey {
			fmt.Fprintf(output, summaryLineTemplateConstant, label, summaryTotalLabelConstant, 0)
		}
	}

	if !reportWriter.ShowProblematic {
		return
	}
	if len(summary.Problematic) == 0 {
		fmt.Fprint(output, noProblematicMessageConstant)
		return
	}
	fmt.Fprint(output, problematicHeaderConstant)
	for _, status := range problematicStatuses {
		headerPrinted := false
		for _, problematic := range summary.Problematic {
			if problematic.Status != status {
				continue
			}
			if !headerPrinted {
				fmt.Fprintf(output, problematicStatusTemplateConstant, status)
				headerPrinted = true
			}
			fmt.Fprintf(output, problematicLineTemplateConstant, platformLabels[problematic.Platform], problematic.RepositoryURL)
		}
	}
	fmt.Fprint(output, problematicFooterConstant)
}

func (reportWriter ReportWriter) colorize(counterKey string, text string) string {
	if !reportWriter.ColorEnabled {
		return text
	}
	attribute, exists := counterColors[counterKey]
	if !exists {
		return text
	}
	painter := color.New(attribute)
	painter.EnableColor()
	return painter.Sprint(text)
}
