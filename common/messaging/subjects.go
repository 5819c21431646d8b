package messaging

import "strings"

// Subject constants for the TelHawk CDC message bus.
// Follow the pattern: {domain}.{action}.{resource}
const (
	// SubjectStagedPrefix is published after a batch is durably staged and
	// committed. Append .{table}.
	SubjectStagedPrefix = "cdc.staged"

	// SubjectDLQPrefix carries messages the stager could not decode.
	// Append .{reason}.
	SubjectDLQPrefix = "cdc.dlq"
)

// StagedSubject returns the notification subject for a table.
// Example: cdc.staged.doctors
func StagedSubject(prefix, table string) string {
	if prefix == "" {
		prefix = SubjectStagedPrefix
	}
	return prefix + "." + subjectToken(table)
}

// DLQSubject returns the dead-letter subject for a failure reason.
// Example: cdc.dlq.malformed
func DLQSubject(reason string) string {
	return SubjectDLQPrefix + "." + subjectToken(reason)
}

// subjectToken makes s safe to use as a single NATS subject token.
func subjectToken(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(s)
}
