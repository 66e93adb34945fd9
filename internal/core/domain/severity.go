package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// SeverityScale identifies where a severity value came from.
type SeverityScale string

const (
	// ScaleUnknown means the source gave no usable severity signal.
	ScaleUnknown SeverityScale = "unknown"
	// ScaleCVSS means the score is a CVSS base score extracted at the
	// adapter boundary.
	ScaleCVSS SeverityScale = "cvss"
	// ScaleLabel means the source gave a qualitative label; Score holds a
	// best-effort numeric read of it (0 when the label has no digits).
	ScaleLabel SeverityScale = "label"
)

// Severity is a small tagged value resolved once at the adapter boundary, so
// downstream consumers never re-parse severity strings ad hoc. On the wire it
// still marshals as the legacy string shape ("CVSS 9.8", a vendor label, or
// "Unknown").
type Severity struct {
	Scale SeverityScale
	Score float64
	Label string
}

func UnknownSeverity() Severity {
	return Severity{Scale: ScaleUnknown}
}

// CVSSSeverity builds a CVSS-scaled severity from a base score.
func CVSSSeverity(score float64) Severity {
	return Severity{Scale: ScaleCVSS, Score: score}
}

// LabelSeverity builds a severity from an upstream qualitative label. The
// numeric component, if any, is extracted immediately by concatenating the
// digit and period characters of the label.
func LabelSeverity(label string) Severity {
	label = strings.TrimSpace(label)
	if label == "" || label == "Unknown" {
		return UnknownSeverity()
	}
	return Severity{Scale: ScaleLabel, Score: numericPart(label), Label: label}
}

// ParseSeverity re-hydrates a severity from its string shape.
func ParseSeverity(raw string) Severity {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "CVSS "); ok {
		if score, err := strconv.ParseFloat(strings.TrimSpace(rest), 64); err == nil {
			return CVSSSeverity(score)
		}
	}
	return LabelSeverity(raw)
}

func (s Severity) IsZero() bool {
	return s.Scale == ""
}

// Numeric returns the severity's numeric component. Labels without digits
// read as 0 and therefore never cross an alert threshold.
func (s Severity) Numeric() float64 {
	return s.Score
}

func (s Severity) String() string {
	switch s.Scale {
	case ScaleCVSS:
		return "CVSS " + strconv.FormatFloat(s.Score, 'g', -1, 64)
	case ScaleLabel:
		return s.Label
	default:
		return "Unknown"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseSeverity(raw)
	return nil
}

// numericPart concatenates the digit and period characters of a label and
// parses the result as a decimal. "High (8.1)" reads as 8.1, "Critical" as 0.
func numericPart(label string) float64 {
	var b strings.Builder
	hasDigit := false
	for _, r := range label {
		if r >= '0' && r <= '9' {
			hasDigit = true
			b.WriteRune(r)
		} else if r == '.' {
			b.WriteRune(r)
		}
	}
	if !hasDigit {
		return 0
	}
	score, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return score
}
