// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package document extracts profile entities (conditions, treatments,
// outcomes, side effects, discontinuation reasons) from a medical document
// with the language model.
package document

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/pdiddy/trialmatch/internal/convert"
	"github.com/pdiddy/trialmatch/internal/errs"
	"github.com/pdiddy/trialmatch/internal/llm"
	"github.com/pdiddy/trialmatch/pkg/types"
)

const (
	systemPrompt = "You are a helpful assistant that extracts information from medical documents. " +
		"Identify the following entities: conditions, treatments, outcomes, side effects, and reasons for treatment discontinuation. " +
		`Return the extracted information as a JSON object with the keys "conditions", "treatments", "outcomes", ` +
		`"side_effects" and "discontinuation_reasons". Each value is a string or a list of strings; use an empty string when the document does not mention it.`

	// defaultMaxChars bounds the document text sent to the model.
	defaultMaxChars = 12000
)

// Parser turns a document path or URL into a ParsedDocument.
type Parser struct {
	Converter convert.Converter
	Model     llm.Completer

	// HTTP downloads URL sources.
	HTTP      *http.Client
	UserAgent string

	// TempDir holds downloads while they are parsed (default os.TempDir()).
	TempDir string

	// MaxChars truncates long documents (default 12000).
	MaxChars int

	Log *zap.Logger
}

// Parse reads source, a local file path or an http(s) URL, and returns
// the entities the model found. An unreadable or empty source fails with
// ErrInvalidInput, an unusable model reply with ErrParseFailure.
func (p *Parser) Parse(ctx context.Context, source string) (types.ParsedDocument, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return types.ParsedDocument{}, errs.Invalid("document", "source must not be empty")
	}

	path := source
	if isURL(source) {
		tmp, err := download(ctx, p.HTTP, source, p.TempDir, p.UserAgent)
		if err != nil {
			return types.ParsedDocument{}, fmt.Errorf("downloading %s: %w", source, err)
		}
		defer os.Remove(tmp)
		path = tmp
	} else if _, err := os.Stat(path); err != nil {
		return types.ParsedDocument{}, errs.Invalid("document", "%v", err)
	}

	if !convert.Supported(path) {
		return types.ParsedDocument{}, errs.Invalid("document", "unsupported document type for %s", source)
	}

	text, err := p.Converter.Convert(ctx, path)
	if err != nil {
		return types.ParsedDocument{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return types.ParsedDocument{}, errs.Invalid("document", "%s contains no text", source)
	}
	text = truncateRunes(text, p.maxChars())

	reply, err := p.Model.Complete(ctx, llm.Request{
		System:   systemPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: text}},
		JSONMode: true,
	})
	if err != nil {
		return types.ParsedDocument{}, err
	}

	doc, err := ParseReply(reply)
	if err != nil {
		return types.ParsedDocument{}, err
	}
	if p.Log != nil {
		p.Log.Info("document parsed", zap.String("source", source), zap.Int("chars", len(text)))
	}
	return doc, nil
}

func (p *Parser) maxChars() int {
	if p.MaxChars > 0 {
		return p.MaxChars
	}
	return defaultMaxChars
}

// fieldAliases maps normalized reply keys onto ParsedDocument fields.
// Keys are normalized by lowercasing and dropping everything but letters.
var fieldAliases = map[string]string{
	"conditions":                         "conditions",
	"condition":                          "conditions",
	"diagnoses":                          "conditions",
	"treatments":                         "treatments",
	"treatment":                          "treatments",
	"priortreatments":                    "treatments",
	"outcomes":                           "outcomes",
	"outcome":                            "outcomes",
	"sideeffects":                        "side_effects",
	"sideeffect":                         "side_effects",
	"discontinuationreasons":             "discontinuation_reasons",
	"reasonsfordiscontinuation":          "discontinuation_reasons",
	"reasonsfortreatmentdiscontinuation": "discontinuation_reasons",
	"treatmentdiscontinuationreasons":    "discontinuation_reasons",
}

// ParseReply decodes a model reply. Values may be strings, lists of
// strings, or absent; lists are joined with "; ".
func ParseReply(raw string) (types.ParsedDocument, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(llm.StripJSONFence(raw)), &m); err != nil {
		return types.ParsedDocument{}, errs.Parse("document entities", err)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := map[string]string{}
	for _, k := range keys {
		name, ok := fieldAliases[normalizeKey(k)]
		if !ok {
			continue
		}
		if s := flatten(m[k]); s != "" {
			fields[name] = joinNonEmpty(fields[name], s)
		}
	}

	return types.ParsedDocument{
		Conditions:             fields["conditions"],
		Treatments:             fields["treatments"],
		Outcomes:               fields["outcomes"],
		SideEffects:            fields["side_effects"],
		DiscontinuationReasons: fields["discontinuation_reasons"],
	}, nil
}

// flatten renders a JSON value as text. Strings are kept, lists are joined,
// numbers and objects are rendered as JSON, null is empty.
func flatten(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil {
		var out string
		for _, item := range list {
			out = joinNonEmpty(out, flatten(item))
		}
		return out
	}
	if t := strings.TrimSpace(string(raw)); t != "null" {
		return t
	}
	return ""
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "; " + b
	}
}

func normalizeKey(k string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(k) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
