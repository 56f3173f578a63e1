package audit_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/gitaccess/internal/audit"
	"github.com/temirov/gitaccess/internal/composer"
	"github.com/temirov/gitaccess/internal/repos/shared"
)

func TestLockTargetsCanonicalizesAndDeduplicates(testInstance *testing.T) {
	packages := []composer.Package{
		{Name: "drupal/foo", Source: &composer.PackageOrigin{URL: fooRepositoryURL}},
		{Name: "acme/widget", Source: &composer.PackageOrigin{URL: widgetRepositoryURL}},
		{Name: "acme/widget-mirror", Dist: &composer.PackageOrigin{URL: widgetCanonicalURL}},
		{Name: "drupal/landing", Source: &composer.PackageOrigin{URL: "https://www.drupal.org/project/landing"}},
		{Name: "acme/nowhere"},
	}

	targets := audit.LockTargets(packages, zap.NewNop())

	require.Equal(testInstance, []audit.Target{
		{Name: "drupal/foo", RepositoryURL: fooCanonicalURL},
		{Name: "acme/widget", RepositoryURL: widgetCanonicalURL},
	}, targets)
}

func TestURLTargetsNameTargetsByRepositoryPath(testInstance *testing.T) {
	targets := audit.URLTargets([]string{widgetRepositoryURL, "https://github.com/acme/widget", "not a url"}, nil)

	require.Equal(testInstance, []audit.Target{{Name: "acme/widget", RepositoryURL: widgetCanonicalURL}}, targets)
}

func TestCheckoutTargetsMatchPackagesByMachineName(testInstance *testing.T) {
	checkouts := []shared.Checkout{
		{MachineName: "widget", Path: "docroot/modules/contrib/widget"},
		{MachineName: "custom_only", Path: "docroot/modules/contrib/custom_only"},
		{MachineName: "gadget", Path: "docroot/modules/contrib/gadget"},
	}
	packages := []composer.Package{
		{Name: "acme/widget", Source: &composer.PackageOrigin{URL: widgetRepositoryURL}},
		{Name: "other/widget", Source: &composer.PackageOrigin{URL: "https://github.com/other/widget.git"}},
		{Name: "drupal/gadget"},
		{Name: "acme/gadget", Source: &composer.PackageOrigin{URL: "https://github.com/acme/gadget.git"}},
	}

	targets := audit.CheckoutTargets(checkouts, packages)

	require.Equal(testInstance, []audit.Target{
		{Name: "widget", Directory: "docroot/modules/contrib/widget", RepositoryURL: widgetRepositoryURL},
		{Name: "custom_only", Directory: "docroot/modules/contrib/custom_only"},
		{Name: "gadget", Directory: "docroot/modules/contrib/gadget", RepositoryURL: "https://github.com/acme/gadget.git"},
	}, targets)
}
