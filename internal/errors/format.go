//nolint:revive // Package name intentionally shadows stdlib errors for convenience.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Formatter formats errors for CLI output.
type Formatter struct {
	NoColor bool
	Writer  io.Writer

	// Colors
	errorColor    *color.Color
	codeColor     *color.Color
	resourceColor *color.Color
	hintColor     *color.Color
	expectedColor *color.Color
	gotColor      *color.Color
	dimColor      *color.Color
}

// NewFormatter creates a new Formatter.
func NewFormatter(w io.Writer, noColor bool) *Formatter {
	if noColor {
		color.NoColor = true
	}

	return &Formatter{
		NoColor:       noColor,
		Writer:        w,
		errorColor:    color.New(color.FgRed, color.Bold),
		codeColor:     color.New(color.FgRed),
		resourceColor: color.New(color.FgCyan),
		hintColor:     color.New(color.FgGreen),
		expectedColor: color.New(color.FgYellow),
		gotColor:      color.New(color.FgRed),
		dimColor:      color.New(color.FgHiBlack),
	}
}

// formatErrorHeader writes the error header with code.
// Format: "Error [E101]: message" or "Error: message" if no code.
func (f *Formatter) formatErrorHeader(sb *strings.Builder, code Code, message string) {
	sb.WriteString(f.errorColor.Sprint("Error"))
	if code != "" {
		sb.WriteString(" ")
		sb.WriteString(f.codeColor.Sprintf("[%s]", code))
	}
	sb.WriteString(f.errorColor.Sprint(": "))
	sb.WriteString(message)
	sb.WriteString("\n")
}

// Format formats an error for CLI display.
func (f *Formatter) Format(err error) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder

	var platformErr *PlatformError
	var toolchainErr *ToolchainError
	var artifactErr *ArtifactError
	var downloadErr *DownloadError
	var signatureErr *SignatureError
	var configErr *ConfigError
	var transitionErr *TransitionError
	var stateErr *StateError
	var baseErr *Error

	switch {
	case errors.As(err, &signatureErr):
		f.formatSignatureError(&sb, signatureErr)
	case errors.As(err, &platformErr):
		f.formatPlatformError(&sb, platformErr)
	case errors.As(err, &toolchainErr):
		f.formatToolchainError(&sb, toolchainErr)
	case errors.As(err, &artifactErr):
		f.formatArtifactError(&sb, artifactErr)
	case errors.As(err, &downloadErr):
		f.formatDownloadError(&sb, downloadErr)
	case errors.As(err, &configErr):
		f.formatConfigError(&sb, configErr)
	case errors.As(err, &transitionErr):
		f.formatErrorHeader(&sb, transitionErr.Base.Code, transitionErr.Base.Message)
	case errors.As(err, &stateErr):
		f.formatStateError(&sb, stateErr)
	case errors.As(err, &baseErr):
		f.formatErrorHeader(&sb, baseErr.Code, baseErr.Error())
		f.formatHint(&sb, baseErr)
	default:
		// Fallback for plain errors
		sb.WriteString(f.errorColor.Sprint("Error: "))
		sb.WriteString(err.Error())
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatJSON formats an error as JSON.
func (f *Formatter) FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return nil, nil
	}

	var platformErr *PlatformError
	var toolchainErr *ToolchainError
	var artifactErr *ArtifactError
	var downloadErr *DownloadError
	var signatureErr *SignatureError
	var configErr *ConfigError
	var transitionErr *TransitionError
	var stateErr *StateError
	var baseErr *Error

	switch {
	case errors.As(err, &signatureErr):
		return json.MarshalIndent(signatureErr, "", "  ")
	case errors.As(err, &platformErr):
		return json.MarshalIndent(platformErr, "", "  ")
	case errors.As(err, &toolchainErr):
		return json.MarshalIndent(toolchainErr, "", "  ")
	case errors.As(err, &artifactErr):
		return json.MarshalIndent(artifactErr, "", "  ")
	case errors.As(err, &downloadErr):
		return json.MarshalIndent(downloadErr, "", "  ")
	case errors.As(err, &configErr):
		return json.MarshalIndent(configErr, "", "  ")
	case errors.As(err, &transitionErr):
		return json.MarshalIndent(transitionErr, "", "  ")
	case errors.As(err, &stateErr):
		return json.MarshalIndent(stateErr, "", "  ")
	case errors.As(err, &baseErr):
		return json.MarshalIndent(baseErr, "", "  ")
	default:
		return json.MarshalIndent(map[string]string{"error": err.Error()}, "", "  ")
	}
}

func (f *Formatter) writeField(sb *strings.Builder, label, value string, c *color.Color) {
	if value == "" {
		return
	}
	sb.WriteString("  ")
	sb.WriteString(f.dimColor.Sprint(label))
	if c != nil {
		sb.WriteString(c.Sprint(value))
	} else {
		sb.WriteString(value)
	}
	sb.WriteString("\n")
}

func (f *Formatter) formatPlatformError(sb *strings.Builder, err *PlatformError) {
	f.formatErrorHeader(sb, err.Base.Code, err.Base.Message)
	sb.WriteString("\n")
	f.writeField(sb, "OS:     ", err.OS, f.resourceColor)
	f.writeField(sb, "Locale: ", err.Locale, f.gotColor)
	f.formatHint(sb, &err.Base)
}

func (f *Formatter) formatToolchainError(sb *strings.Builder, err *ToolchainError) {
	f.formatErrorHeader(sb, err.Base.Code, err.Base.Message)
	sb.WriteString("\n")
	f.writeField(sb, "Tool:  ", err.Tool, f.resourceColor)
	for i, tried := range err.Tried {
		label := "       "
		if i == 0 {
			label = "Tried: "
		}
		f.writeField(sb, label, tried, nil)
	}
	f.formatHint(sb, &err.Base)
}

func (f *Formatter) formatArtifactError(sb *strings.Builder, err *ArtifactError) {
	f.formatErrorHeader(sb, err.Base.Code, err.Base.Message)
	sb.WriteString("\n")
	f.writeField(sb, "Location: ", err.Location, f.resourceColor)
	if err.Base.Cause != nil {
		f.writeField(sb, "Cause:    ", err.Base.Cause.Error(), nil)
	}
	f.formatHint(sb, &err.Base)
}

func (f *Formatter) formatDownloadError(sb *strings.Builder, err *DownloadError) {
	f.formatErrorHeader(sb, err.Base.Code, err.Base.Message)
	sb.WriteString("\n")
	f.writeField(sb, "URL:    ", err.URL, nil)
	if err.StatusCode > 0 {
		f.writeField(sb, "Status: ", fmt.Sprintf("%d", err.StatusCode), f.gotColor)
	}
	f.writeField(sb, "Lock:   ", err.LockFile, f.resourceColor)
	if err.Base.Cause != nil {
		f.writeField(sb, "Cause:  ", err.Base.Cause.Error(), nil)
	}
	f.formatHint(sb, &err.Base)
}

func (f *Formatter) formatSignatureError(sb *strings.Builder, err *SignatureError) {
	f.formatErrorHeader(sb, err.Base.Code, err.Base.Message)
	sb.WriteString("\n")
	f.writeField(sb, "Archive:  ", err.Path, f.resourceColor)
	sb.WriteString("\n")
	f.writeField(sb, "Expected: ", err.Expected, f.expectedColor)
	f.writeField(sb, "Computed: ", err.Computed, f.gotColor)
	f.formatHint(sb, &err.Base)
}

func (f *Formatter) formatConfigError(sb *strings.Builder, err *ConfigError) {
	f.formatErrorHeader(sb, err.Base.Code, err.Base.Message)
	sb.WriteString("\n")
	f.writeField(sb, "File:  ", err.File, f.resourceColor)
	f.writeField(sb, "Field: ", err.Field, nil)
	if err.Base.Cause != nil {
		f.writeField(sb, "Cause: ", err.Base.Cause.Error(), nil)
	}
	f.formatHint(sb, &err.Base)
}

func (f *Formatter) formatStateError(sb *strings.Builder, err *StateError) {
	f.formatErrorHeader(sb, err.Base.Code, err.Base.Message)
	sb.WriteString("\n")
	f.writeField(sb, "Lock file: ", err.LockFile, f.resourceColor)
	if err.Base.Cause != nil {
		f.writeField(sb, "Cause:     ", err.Base.Cause.Error(), nil)
	}
	f.formatHint(sb, &err.Base)
}

func (f *Formatter) formatHint(sb *strings.Builder, err *Error) {
	if err.Hint == "" {
		return
	}
	sb.WriteString("\n")
	sb.WriteString(f.hintColor.Sprint("Hint: "))
	// Handle multi-line hints
	lines := strings.Split(err.Hint, "\n")
	sb.WriteString(lines[0])
	sb.WriteString("\n")
	for _, line := range lines[1:] {
		sb.WriteString("      ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}
