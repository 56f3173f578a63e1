// Package clone prepares contributed Drupal extensions for diffing against upstream.
//
// Every module, profile and theme in composer.lock is cloned into a repositories
// root, checked out at its locked reference and its .git directory is copied into
// the installed extension so that git diff shows local modifications.
package clone
