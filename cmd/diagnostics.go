package cmd

import (
	"fmt"

	"github.com/eykd/prosemark-elements/internal/embed"
	"github.com/eykd/prosemark-elements/internal/field"
)

// Diagnostic severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Operation diagnostic codes. Validation findings carry their validator's
// code instead.
const (
	CodeElementNotFound  = "OPE001"
	CodeFieldNotFound    = "OPE002"
	CodeRefused          = "OPE003"
	CodeIOOrParseFailure = "OPE009"
)

// Diagnostic is one finding in CLI output.
type Diagnostic struct {
	Severity string `json:"severity"` // "error" | "warning"
	Code     string `json:"code"`
	Message  string `json:"message"`
	// Path locates the finding as "<pos>:<element>[.<field>]".
	Path string `json:"path,omitempty"`
}

// OpResult is the CLI JSON output of any command.
type OpResult struct {
	Version     string       `json:"version"` // "1"
	Changed     bool         `json:"changed"` // true if the document bytes were modified
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// fromFindings converts validation findings, which arrive sorted errors
// first, into diagnostics.
func fromFindings(findings []embed.ElementError) []Diagnostic {
	diags := make([]Diagnostic, 0, len(findings))
	for _, f := range findings {
		sev := SeverityWarning
		if f.Level == field.LevelError {
			sev = SeverityError
		}
		path := fmt.Sprintf("%d:%s", f.Pos, f.Element)
		if f.Field != "" {
			path += "." + f.Field
		}
		diags = append(diags, Diagnostic{Severity: sev, Code: f.Code, Message: f.Message, Path: path})
	}
	return diags
}

// hasDiagnosticError reports whether any diagnostic in diags has error severity.
func hasDiagnosticError(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
