// Package changes reviews local git checkouts of contributed Drupal extensions.
//
// Checkouts below the docroot are classified with the access batch driver. For every
// writable checkout the working tree is shown and, when running interactively, the
// operator can stage files, commit them on a fresh branch and push that branch to the
// canonical SSH remote. Pushed branches are recorded in the access state file.
package changes
