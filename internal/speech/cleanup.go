package speech

import (
	"regexp"
	"strings"
)

// envAnnotation matches whisper environmental annotations like
// "(keyboard clicking)", "[laughter]", "(speaking French)", etc.
var envAnnotation = regexp.MustCompile(`[\(\[][a-zA-Z][a-zA-Z_\s]*[\)\]]`)

// timestampPrefix matches "[00:00:00.000 --> 00:00:05.000]".
var timestampPrefix = regexp.MustCompile(`^\[[0-9:.]+\s*-->\s*[0-9:.]+\]\s*`)

var multiSpace = regexp.MustCompile(`\s{2,}`)

// hallucinations are phrases whisper produces on silence. A chunk that
// is only one of these is discarded.
var hallucinations = map[string]bool{
	"...":                     true,
	"you":                     true,
	"thank you.":              true,
	"thanks for watching!":    true,
	"thank you for watching.": true,
	"bye.":                    true,
	"the end.":                true,
}

// cleanTranscription normalizes whitespace and removes whisper
// artifacts: timestamps, bracketed annotations such as "[BLANK_AUDIO]"
// and known silence hallucinations. Returns "" when nothing spoken
// remains.
func cleanTranscription(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	s = strings.TrimSpace(s)

	for {
		loc := timestampPrefix.FindStringIndex(s)
		if loc == nil {
			break
		}
		s = s[loc[1]:]
	}

	s = envAnnotation.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if hallucinations[strings.ToLower(s)] {
		return ""
	}
	return s
}

var (
	mdLink     = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdHeading  = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	mdBullet   = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	mdEmphasis = strings.NewReplacer("**", "", "__", "", "*", "", "`", "", "~~", "")
)

// cleanForSpeech strips markdown that shouldn't be read aloud.
func cleanForSpeech(msg string) string {
	cleaned := mdLink.ReplaceAllString(msg, "$1")
	cleaned = mdHeading.ReplaceAllString(cleaned, "")
	cleaned = mdBullet.ReplaceAllString(cleaned, "")
	cleaned = mdEmphasis.Replace(cleaned)
	cleaned = multiSpace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
