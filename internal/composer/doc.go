// Package composer reads package metadata from composer.lock and `composer show` output.
package composer
