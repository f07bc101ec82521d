// Package doctor checks a host configuration for problems that Load accepts
// but that will surprise the operator at runtime.
package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/nidvy/host/internal/config"
	"github.com/nidvy/host/internal/storage"
)

// Window sizes above this are almost certainly a typo.
const maxSaneDimension = 8192

var knownURLSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"file":  true,
	"about": true,
	"data":  true,
}

// Result holds the outcome of a check run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

type Doctor struct {
	cfg       *config.Config
	checkPath func(path string) error
}

// New creates a Doctor for a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg, checkPath: storage.CheckLocalFilesystem}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateWindow(r)
	d.validateJournal(r)
	d.validateAPI(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateWindow(r *Result) {
	w := d.cfg.Window

	u, err := url.Parse(w.URL)
	switch {
	case err != nil:
		d.addError(r, "window", "window.url", fmt.Sprintf("cannot parse %q: %v", w.URL, err))
	case u.Scheme == "":
		d.addWarning(r, "window", "window.url", fmt.Sprintf("%q has no scheme; the engine may treat it as a relative path", w.URL))
	case !knownURLSchemes[strings.ToLower(u.Scheme)]:
		d.addWarning(r, "window", "window.url", fmt.Sprintf("unusual scheme %q", u.Scheme))
	}

	if w.Width > maxSaneDimension {
		d.addWarning(r, "window", "window.width", fmt.Sprintf("%d is wider than any common display", w.Width))
	}
	if w.Height > maxSaneDimension {
		d.addWarning(r, "window", "window.height", fmt.Sprintf("%d is taller than any common display", w.Height))
	}
	if strings.TrimSpace(w.Title) == "" {
		d.addWarning(r, "window", "window.title", "default title is empty")
	}
}

func (d *Doctor) validateJournal(r *Result) {
	if !d.cfg.Journal.Enabled {
		return
	}

	err := d.checkPath(d.cfg.Journal.Path)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNetworkFilesystem):
		d.addError(r, "journal", "journal.path", err.Error())
	default:
		d.addWarning(r, "journal", "journal.path", fmt.Sprintf("could not inspect filesystem: %v", err))
	}
}

func (d *Doctor) validateAPI(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}

	if d.cfg.API.Token == "" {
		d.addWarning(r, "api", "api.token", "no token configured; any local process can read status and journal")
	}
	if !d.cfg.Journal.Enabled {
		d.addWarning(r, "api", "api.enabled", "journal is disabled; GET /journal will return 404")
	}

	_, port, err := net.SplitHostPort(d.cfg.API.Listen)
	if err == nil && port == "0" {
		d.addWarning(r, "api", "api.listen", "port 0 picks a random port; nidvyctl watch cannot find it")
	}
}

// FormatHuman returns a human-readable report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid {
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	writeIssues(&b, "ERROR", r.Errors)
	writeIssues(&b, "WARN ", r.Warnings)
	return b.String()
}

func writeIssues(b *strings.Builder, label string, issues []Issue) {
	for _, i := range issues {
		if i.Field != "" {
			fmt.Fprintf(b, "  %s [%s] %s: %s\n", label, i.Category, i.Field, i.Message)
		} else {
			fmt.Fprintf(b, "  %s [%s] %s\n", label, i.Category, i.Message)
		}
	}
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
