package git

// Exported aliases for testing internal helpers from
// the git_test package.

// DateAndTimeForTest exposes dateAndTime.
var DateAndTimeForTest = dateAndTime

// IsCloneForTest exposes isClone.
var IsCloneForTest = isClone

// LogFormatForTest exposes logFormat.
const LogFormatForTest = logFormat
