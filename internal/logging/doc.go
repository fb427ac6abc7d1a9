// Package logging wires log/slog with Sherpa conventions.
//
// It provides console and JSON handlers selected from config, multi-writer
// output (stdout plus a log file in the configured log directory), attribute
// helpers with standardized field names, and a no-op logger for tests.
// Components receive a child logger tagged via NewComponentLogger so console
// lines read "component: message".
package logging
