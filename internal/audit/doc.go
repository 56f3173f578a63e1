// Package audit classifies write access for every repository a Drupal project depends on.
//
// BatchDriver walks the discovered repositories, reuses cached read-write results unless a
// re-check is forced, calls the GitHub or GitLab checker for everything else and merges the
// outcome into the state document. The access command wires the driver to composer.lock,
// the state file and the summary report.
package audit
