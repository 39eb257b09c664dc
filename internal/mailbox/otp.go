package mailbox

import "regexp"

// otpPattern matches exactly six decimal digits on word boundaries.
// Longer digit runs (order numbers, phone numbers) never qualify, not
// even partially.
var otpPattern = regexp.MustCompile(`\b\d{6}\b`)

// ExtractCodes scans subject text for candidate one-time codes and
// returns them in left-to-right order. This is the instant,
// connectionless surface; the server-side extraction (ExtractOTP) also
// considers the message body and ranks candidates.
func ExtractCodes(subject string) []string {
	return otpPattern.FindAllString(subject, -1)
}
