// Package redact scrubs secret-shaped substrings out of text before it
// is written into a crash or incident bundle. Grounded on crash.rs's
// Redactor::new()/with_debug_markers() call sites and
// write_redacted_file (the Redactor type itself lives in a sibling
// policy crate not present in the retrieval pack, so the pattern
// catalogue below is reconstructed from the S6 test scenario and
// common provider-key shapes).
package redact

import (
	"crypto/subtle"
	"fmt"
	"regexp"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// pattern is one named secret-shape regex.
type pattern struct {
	name string
	re   *regexp.Regexp
}

var catalogue = []pattern{
	{"anthropic_api_key", regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`)},
	{"openai_api_key", regexp.MustCompile(`sk-[a-zA-Z0-9]{32,}`)},
	{"aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"github_token", regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{20,}`)},
	{"slack_token", regexp.MustCompile(`xox[baprs]-[a-zA-Z0-9\-]{10,}`)},
	{"bearer_token", regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._\-]{20,}`)},
	{"private_key_block", regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----`)},
	{"generic_secret_assignment", regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password)\s*[:=]\s*['"]?[a-zA-Z0-9_\-]{12,}['"]?`)},
}

// Mode selects whether redacted runs are replaced with a fixed marker or
// a debug marker that also reports which pattern matched.
type Mode int

const (
	ModeStandard Mode = iota
	ModeDebugMarkers
)

// Redactor scrubs secret-shaped substrings from text.
type Redactor struct {
	mode Mode
}

// New returns a Redactor using the standard "[REDACTED]" marker.
func New() *Redactor { return &Redactor{mode: ModeStandard} }

// WithDebugMarkers returns a Redactor whose replacement marker embeds the
// matched pattern's name, used by the incident bundle collector so a
// human reviewing a bundle can see what kind of secret was caught
// without the secret itself ever reaching disk.
func WithDebugMarkers() *Redactor { return &Redactor{mode: ModeDebugMarkers} }

// Match is one detected secret occurrence, positions into the original text.
type Match struct {
	Pattern string
	Start   int
	End     int
}

// Detect returns every secret-shaped match in s without modifying it,
// ordered by Start ascending with overlapping matches from later
// patterns in the catalogue dropped in favor of the earlier, wider one.
func (r *Redactor) Detect(s string) []Match {
	var matches []Match
	for _, p := range catalogue {
		for _, loc := range p.re.FindAllStringIndex(s, -1) {
			matches = append(matches, Match{Pattern: p.name, Start: loc[0], End: loc[1]})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		return matches[i].End > matches[j].End
	})

	deduped := matches[:0]
	lastEnd := -1
	for _, m := range matches {
		if m.Start < lastEnd {
			continue
		}
		deduped = append(deduped, m)
		lastEnd = m.End
	}
	return deduped
}

// Redact returns s with every secret-shaped match replaced.
func (r *Redactor) Redact(s string) string {
	matches := r.Detect(s)
	if len(matches) == 0 {
		return s
	}
	// matches is sorted by Start ascending and non-overlapping; replace
	// right-to-left so earlier offsets stay valid.
	out := []byte(s)
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		marker := "[REDACTED]"
		if r.mode == ModeDebugMarkers {
			marker = fmt.Sprintf("[REDACTED:%s]", m.Pattern)
		}
		out = append(out[:m.Start], append([]byte(marker), out[m.End:]...)...)
	}
	return string(out)
}

// ContainsSecret reports whether s contains any catalogued secret shape,
// used by replay's no_secrets_* checks (spec §4.4).
func (r *Redactor) ContainsSecret(s string) bool {
	return len(r.Detect(s)) > 0
}

// Fingerprint returns a fixed-width blake2b digest of a matched secret,
// used by the redaction report to identify repeated occurrences of the
// same secret across files without ever persisting the secret itself.
func Fingerprint(secret string) [32]byte {
	return blake2b.Sum256([]byte(secret))
}

// ConstantTimeEqual compares two fingerprints without leaking timing
// information, mirroring the teacher's use of golang.org/x/crypto for
// secret-adjacent comparisons.
func ConstantTimeEqual(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// FileEntry records how many secrets were redacted from one bundle file.
type FileEntry struct {
	File  string `json:"file"`
	Count int    `json:"count"`
}

// Report summarizes redactions performed while collecting a bundle.
type Report struct {
	TotalRedactions int         `json:"total_redactions"`
	PerFile         []FileEntry `json:"per_file"`
}

// RedactAndRecord redacts content, appends a FileEntry to report when any
// match was found, and returns the redacted bytes — mirroring crash.rs's
// write_redacted_file.
func (r *Redactor) RedactAndRecord(name, content string, report *Report) []byte {
	before := len(r.Detect(content))
	redacted := r.Redact(content)
	if before > 0 {
		report.TotalRedactions += before
		report.PerFile = append(report.PerFile, FileEntry{File: name, Count: before})
	}
	return []byte(redacted)
}
