// Package credentials resolves the GitHub and GitLab tokens used for access checks.
//
// Tokens come from declared sources ("env:NAME" or "file:PATH"). Environment sources consult
// dotenv files before the process environment.
package credentials
