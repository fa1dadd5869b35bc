// Package main hosts the clipforge CLI entrypoint and command graph.
//
// The Cobra-based command tree surfaces tool status checks, managed
// installations, source selection, video metadata queries, clip creation,
// and configuration scaffolding. It centralizes configuration resolution
// and logger setup so subcommands can focus on user experience instead of
// wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
