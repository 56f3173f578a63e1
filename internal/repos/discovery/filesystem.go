package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/temirov/gitaccess/internal/repos/shared"
)

const (
	gitMetadataDirectoryNameConstant = ".git"
	contribScanErrorTemplateConstant = "unable to scan %s: %w"
)

// contribDirectories are scanned one level deep, in order. The first checkout wins on duplicate names.
var contribDirectories = []string{
	filepath.Join("modules", "contrib"),
	filepath.Join("profiles", "contrib"),
}

// CheckoutScanner locates contributed extensions below a docroot that carry their own .git directory.
type CheckoutScanner struct {
	fileSystem afero.Fs
}

// NewCheckoutScanner constructs a scanner on the provided filesystem, defaulting to the OS filesystem.
func NewCheckoutScanner(fileSystem afero.Fs) *CheckoutScanner {
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	return &CheckoutScanner{fileSystem: fileSystem}
}

// DiscoverCheckouts returns git-tracked extension directories sorted by machine name.
// Missing contrib directories are skipped.
func (scanner *CheckoutScanner) DiscoverCheckouts(docroot string) ([]shared.Checkout, error) {
	seen := make(map[string]struct{})
	checkouts := make([]shared.Checkout, 0)

	for _, contribDirectory := range contribDirectories {
		scanRoot := filepath.Join(docroot, contribDirectory)
		entries, readError := afero.ReadDir(scanner.fileSystem, scanRoot)
		if readError != nil {
			if errors.Is(readError, fs.ErrNotExist) || errors.Is(readError, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf(contribScanErrorTemplateConstant, scanRoot, readError)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			if _, alreadySeen := seen[entry.Name()]; alreadySeen {
				continue
			}
			checkoutPath := filepath.Join(scanRoot, entry.Name())
			isCheckout, checkError := afero.DirExists(scanner.fileSystem, filepath.Join(checkoutPath, gitMetadataDirectoryNameConstant))
			if checkError != nil || !isCheckout {
				continue
			}
			seen[entry.Name()] = struct{}{}
			checkouts = append(checkouts, shared.Checkout{MachineName: entry.Name(), Path: checkoutPath})
		}
	}

	sort.Slice(checkouts, func(firstIndex int, secondIndex int) bool {
		return checkouts[firstIndex].MachineName < checkouts[secondIndex].MachineName
	})
	return checkouts, nil
}

var _ shared.CheckoutDiscoverer = (*CheckoutScanner)(nil)
