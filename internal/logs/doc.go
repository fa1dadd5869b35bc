// Package logs reads the tool manager's log file for display. It can
// return the most recent lines and stream lines appended after a known
// offset, which backs the "clipforge logs" command.
package logs
