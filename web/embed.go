// Package web provides the embedded page templates of the letter-status
// server.
//
// The templates are rendered with html/template by internal/server. Their
// markup is the contract the sync client parses: tracked rows carry
// data-letter-number and data-letter-status, badges carry "bg-<color>" and
// "bi-<icon>" classes, authenticated pages have an element with id
// "sidebar", and every authenticated page embeds its CSRF token in
// <meta name="csrf-token">.
package web

import "embed"

// Templates is an embedded filesystem containing the page templates.
//
// The filesystem structure is:
//
//	templates/
//	  letter_status.html  - letter list with status badges (authenticated layout)
//	  login.html          - sign-in page without the sidebar
//
//go:embed templates/*.html
var Templates embed.FS
