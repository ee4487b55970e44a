// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates the kong command grammar into the application's Config and
// the Command to run.
package cli
