// Package errcat is ft's error code catalogue: fixed FT-#### codes with
// title/description/causes/recovery steps, rendered plain-text by
// `ft why`. Grounded on
// original_source/crates/frankenterm-core/src/error_codes.rs.
package errcat

import (
	"fmt"
	"strconv"
	"strings"
)

// Category groups error codes by the numeric range they fall in.
type Category string

const (
	CategoryMultiplexer Category = "multiplexer"
	CategoryStorage      Category = "storage"
	CategoryPattern      Category = "pattern"
	CategoryPolicy       Category = "policy"
	CategoryWorkflow     Category = "workflow"
	CategoryNetwork      Category = "network"
	CategoryConfig       Category = "config"
	CategoryInternal     Category = "internal"
)

// Range returns the [low, high] numeric bounds for the category.
func (c Category) Range() (int, int) {
	switch c {
	case CategoryMultiplexer:
		return 1000, 1999
	case CategoryStorage:
		return 2000, 2999
	case CategoryPattern:
		return 3000, 3999
	case CategoryPolicy:
		return 4000, 4999
	case CategoryWorkflow:
		return 5000, 5999
	case CategoryNetwork:
		return 6000, 6999
	case CategoryConfig:
		return 7000, 7999
	case CategoryInternal:
		return 9000, 9999
	default:
		return 0, -1
	}
}

// CategoryFromCode parses the category out of a "FT-####" code string.
func CategoryFromCode(code string) (Category, bool) {
	num, ok := strings.CutPrefix(code, "FT-")
	if !ok {
		return "", false
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return "", false
	}
	for _, c := range []Category{
		CategoryMultiplexer, CategoryStorage, CategoryPattern, CategoryPolicy,
		CategoryWorkflow, CategoryNetwork, CategoryConfig, CategoryInternal,
	} {
		lo, hi := c.Range()
		if n >= lo && n <= hi {
			return c, true
		}
	}
	return "", false
}

// RecoveryStep is one numbered remediation action, optionally with a
// command the operator can run verbatim.
type RecoveryStep struct {
	Description string
	Command     string
}

// Def is a complete error code definition.
type Def struct {
	Code          string
	Category      Category
	Title         string
	Description   string
	Causes        []string
	RecoverySteps []RecoveryStep
	DocLink       string
}

// FormatPlain renders the definition as plain text with numbered
// recovery steps, matching the original's format_plain layout.
func (d Def) FormatPlain() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n\n", d.Code, d.Title)
	b.WriteString(d.Description)
	b.WriteString("\n\n")

	if len(d.Causes) > 0 {
		b.WriteString("Common causes:\n")
		for _, c := range d.Causes {
			fmt.Fprintf(&b, "  - %s\n", c)
		}
		b.WriteString("\n")
	}

	if len(d.RecoverySteps) > 0 {
		b.WriteString("Recovery steps:\n")
		for i, step := range d.RecoverySteps {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, step.Description)
			if step.Command != "" {
				fmt.Fprintf(&b, "     $ %s\n", step.Command)
			}
		}
		b.WriteString("\n")
	}

	if d.DocLink != "" {
		fmt.Fprintf(&b, "Learn more: %s\n", d.DocLink)
	}

	return b.String()
}

// Catalogue is the full set of known error definitions, keyed by code.
type Catalogue struct {
	defs map[string]Def
}

// NewCatalogue builds a Catalogue from the given definitions.
func NewCatalogue(defs []Def) *Catalogue {
	m := make(map[string]Def, len(defs))
	for _, d := range defs {
		m[d.Code] = d
	}
	return &Catalogue{defs: m}
}

// Lookup returns the definition for code, if known.
func (c *Catalogue) Lookup(code string) (Def, bool) {
	d, ok := c.defs[code]
	return d, ok
}

// Default returns the catalogue built into ft, covering one representative
// code per category plus the codes the storage/recorder/reflow/crashbundle
// packages raise in practice.
func Default() *Catalogue {
	return NewCatalogue([]Def{
		{
			Code:        "FT-1001",
			Category:    CategoryMultiplexer,
			Title:       "multiplexer RPC unavailable",
			Description: "Discovery could not reach the configured terminal multiplexer. Panes will stop being discovered until connectivity is restored.",
			Causes:      []string{"the multiplexer process exited", "the control socket path changed", "permission denied on the control socket"},
			RecoverySteps: []RecoveryStep{
				{Description: "confirm the multiplexer is running", Command: "tmux list-sessions"},
				{Description: "check the configured socket path in settings.json"},
			},
		},
		{
			Code:        "FT-2001",
			Category:    CategoryStorage,
			Title:       "storage handle not writable",
			Description: "The SQLite-backed storage handle reported is_writable() == false, typically because the database file or its containing directory is read-only or disk space is exhausted.",
			Causes:      []string{"disk full", "database file permissions changed underneath the daemon", "WAL checkpoint failed and left the database locked"},
			RecoverySteps: []RecoveryStep{
				{Description: "check free disk space", Command: "df -h"},
				{Description: "inspect the database file's permissions"},
			},
		},
		{
			Code:        "FT-3001",
			Category:    CategoryPattern,
			Title:       "pattern rule set failed to load",
			Description: "The configured pattern rule set directory could not be parsed. Detection will continue using the last successfully loaded rule set, if any.",
			Causes:      []string{"malformed rule YAML", "rule set directory does not exist"},
			RecoverySteps: []RecoveryStep{
				{Description: "validate the rule set files", Command: "ft pattern lint"},
			},
		},
		{
			Code:        "FT-5001",
			Category:    CategoryWorkflow,
			Title:       "indexer commit failed",
			Description: "The index writer's commit() call returned CommitFailed, aborting the current indexer run. The previous checkpoint is preserved so the next run retries from the same point.",
			Causes:      []string{"search backend unreachable", "index corruption detected by the writer"},
			RecoverySteps: []RecoveryStep{
				{Description: "inspect the search backend's logs"},
				{Description: "retry the indexer run", Command: "ft index run"},
			},
		},
		{
			Code:        "FT-6001",
			Category:    CategoryNetwork,
			Title:       "native event socket connection dropped",
			Description: "A client connected to the native event socket sent a malformed message, which per the wire contract terminates the connection.",
			Causes:      []string{"client/daemon protocol version mismatch", "truncated write on the client side"},
			RecoverySteps: []RecoveryStep{
				{Description: "reconnect the client"},
			},
		},
		{
			Code:        "FT-7001",
			Category:    CategoryConfig,
			Title:       "settings file failed to parse",
			Description: "The on-disk settings.json could not be decoded; the daemon continues running on its last good configuration.",
			Causes:      []string{"hand-edited settings.json has a syntax error"},
			RecoverySteps: []RecoveryStep{
				{Description: "validate the settings file", Command: "jq . ~/.ft/settings.json"},
			},
		},
		{
			Code:        "FT-9001",
			Category:    CategoryInternal,
			Title:       "unhandled panic",
			Description: "The daemon panicked. A crash bundle was written (if crash_dir is configured) capturing the panic payload, backtrace, and recent health snapshot.",
			Causes:      []string{"unexpected nil/invariant violation in a pipeline stage"},
			RecoverySteps: []RecoveryStep{
				{Description: "inspect the crash bundle", Command: "ft bundle show <dir>"},
			},
			DocLink: "https://ft.dev/errors/FT-9001",
		},
	})
}
