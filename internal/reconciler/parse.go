package reconciler

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/scan-io-git/taint-io/internal/labels"
	taintioErrors "github.com/scan-io-git/taint-io/pkg/shared/errors"
)

// repair is one textual fix applied to a response that failed to decode.
type repair struct {
	name string
	fix  func(string) string
}

var (
	codeFenceOpen  = regexp.MustCompile("```[a-zA-Z]*[ \t]*\r?\n?")
	controlChars   = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]")
	emptyField     = regexp.MustCompile(`"(package|class|method|signature)":\s*,`)
	danglingQuote  = regexp.MustCompile(`":\s*"\s*,`)
	lineComment    = regexp.MustCompile(`(?m)^\s*//.*$`)
	trailingComma  = regexp.MustCompile(`,(\s*[\]}])`)
	flatObject     = regexp.MustCompile(`\{[^{}]*\}`)
	smartQuotes    = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'", `\'`, "'")
	errNotAnArray  = errors.New("response is not a JSON list")
	errNoArrayText = errors.New("no JSON list found in response")
)

// repairs run in order, each on the output of the previous one.
var repairs = []repair{
	{"strip-code-fences", stripCodeFences},
	{"strip-control-chars", func(s string) string { return controlChars.ReplaceAllString(s, "") }},
	{"fill-empty-fields", fillEmptyFields},
	{"normalize-quotes", smartQuotes.Replace},
	{"strip-line-comments", func(s string) string { return lineComment.ReplaceAllString(s, "") }},
	{"strip-trailing-commas", func(s string) string { return trailingComma.ReplaceAllString(s, "$1") }},
	{"extract-array", extractArray},
}

func stripCodeFences(s string) string {
	return codeFenceOpen.ReplaceAllString(s, "")
}

func fillEmptyFields(s string) string {
	s = emptyField.ReplaceAllString(s, `"$1": "",`)
	return danglingQuote.ReplaceAllString(s, `": "",`)
}

// extractArray keeps the text between the first '[' and the last ']'.
func extractArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// decodeList decodes text as a JSON list and keeps the object elements.
func decodeList(text string) ([]labels.RawRecord, error) {
	var items []interface{}
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		var single map[string]interface{}
		if json.Unmarshal([]byte(text), &single) == nil {
			return nil, errNotAnArray
		}
		return nil, err
	}
	records := make([]labels.RawRecord, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]interface{}); ok {
			records = append(records, labels.RawRecord(obj))
		}
	}
	return records, nil
}

// scanObjects decodes every brace-delimited object without nesting found in text.
func scanObjects(text string) []labels.RawRecord {
	var records []labels.RawRecord
	for _, match := range flatObject.FindAllString(text, -1) {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(match), &obj); err != nil {
			continue
		}
		records = append(records, labels.RawRecord(obj))
	}
	return records
}

// ParseResponse turns raw model output into records. It tries a direct
// decode, then the repair chain, then a per-object scan. When everything
// fails it returns a MalformedResponseError. Blank input yields no records.
func ParseResponse(batch int, text string) ([]labels.RawRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	records, err := decodeList(strings.TrimSpace(text))
	if err == nil {
		return records, nil
	}
	firstErr := err

	repaired := text
	for _, r := range repairs {
		repaired = r.fix(repaired)
		if records, err := decodeList(strings.TrimSpace(repaired)); err == nil {
			return records, nil
		}
	}

	if records := scanObjects(repaired); len(records) > 0 {
		return records, nil
	}
	if !strings.Contains(repaired, "[") {
		firstErr = errNoArrayText
	}
	return nil, &taintioErrors.MalformedResponseError{Batch: batch, Err: firstErr}
}
