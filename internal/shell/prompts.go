package shell

import "strings"

// Flavor selects which client binary a session drives.
type Flavor string

const (
	FlavorSSH  Flavor = "ssh"
	FlavorSFTP Flavor = "sftp"
)

// Valid reports whether f names a known flavor.
func (f Flavor) Valid() bool {
	return f == FlavorSSH || f == FlavorSFTP
}

// Prompts the clients print when they are ready for the next line.
const (
	PromptShell = "$"
	PromptSFTP  = "sftp>"
	PromptPSFTP = "psftp>"
)

// Phrases printed by ssh/sftp and plink/psftp. They are the only signal
// available for password and host-key handling, so matching is
// case-insensitive substring search.
var (
	passwordPhrases = []string{
		"password:",
		"password for",
		"passphrase for key",
	}
	hostKeyPhrases = []string{
		"the authenticity of host",
		"are you sure you want to continue connecting",
		"host key is not cached",
		"store key in cache?",
		"host key verification failed",
	}
	deniedPhrases = []string{
		"permission denied",
		"access denied",
		"too many authentication failures",
	}
)

func containsAny(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsPasswordPrompt reports whether text asks for a password or passphrase.
func IsPasswordPrompt(text string) bool { return containsAny(text, passwordPhrases) }

// IsHostKeyPrompt reports whether text says the host key is not trusted yet.
func IsHostKeyPrompt(text string) bool { return containsAny(text, hostKeyPhrases) }

// IsAccessDenied reports whether text says the credentials were rejected.
func IsAccessDenied(text string) bool { return containsAny(text, deniedPhrases) }

// stripLeadingPrompt removes a prompt (and following whitespace) that the
// client echoed in front of the first response chunk.
func stripLeadingPrompt(text, prompt string) string {
	if prompt == "" {
		return text
	}
	trimmed := strings.TrimLeft(text, "\r\n")
	if !strings.HasPrefix(trimmed, prompt) {
		return text
	}
	return strings.TrimLeft(trimmed[len(prompt):], " ")
}
