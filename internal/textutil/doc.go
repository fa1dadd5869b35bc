// Package textutil provides small text helpers for filenames and display
// labels: sanitizing user-derived names for safe filesystem use and title
// casing identifiers for presentation.
package textutil
