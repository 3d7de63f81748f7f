package script

import (
	"fmt"
	"strings"

	"github.com/robertkrimen/otto/ast"
)

// optMarker opens the inline script that carries the challenge parameters.
const optMarker = "window._cf_chl_opt={"

// ChallengeOptions holds the per-challenge parameters the platform embeds in
// the page.  Field names follow the platform's own property names where
// those are stable.
type ChallengeOptions struct {
	CType      string
	CvID       string
	CArg       string
	Zone       string
	APIVID     string
	WidgetID   string
	SiteKey    string
	APIMode    string
	APISize    string
	APIRcV     string
	ResetSrc   string
	CRay       string
	CH         string
	MD         string
	Time       string
	IssUA      string
	IP         string
	TurnstileU string
}

// OptionsFromHTML locates the challenge options object in a page and parses
// it.  The object is extracted by balanced-brace scanning so surrounding
// script noise cannot break the parse, then read through the otto AST.
func OptionsFromHTML(html string) (*ChallengeOptions, error) {
	start := strings.Index(html, optMarker)
	if start < 0 {
		return nil, fmt.Errorf("script: challenge options marker not found")
	}

	objSrc, ok := balancedObject(html[start+len(optMarker)-1:])
	if !ok {
		return nil, fmt.Errorf("script: challenge options object is unterminated")
	}

	program, err := Parse("var __chl_opt = " + objSrc + ";")
	if err != nil {
		return nil, fmt.Errorf("script: parse challenge options: %w", err)
	}

	opts := &ChallengeOptions{}
	found := false
	for _, stmt := range program.Body {
		varStmt, ok := stmt.(*ast.VariableStatement)
		if !ok {
			continue
		}
		for _, expr := range varStmt.List {
			decl, ok := expr.(*ast.VariableExpression)
			if !ok {
				continue
			}
			obj, ok := decl.Initializer.(*ast.ObjectLiteral)
			if !ok {
				continue
			}
			found = true
			readOptions(opts, obj)
		}
	}
	if !found {
		return nil, fmt.Errorf("script: challenge options object not found in AST")
	}

	// TurnstileU often lives outside the main object; recover it from the
	// surrounding document text.
	opts.TurnstileU = extractTurnstileU(html)
	return opts, nil
}

// balancedObject returns the shortest prefix of src that is a brace-balanced
// object literal.  String literals are skipped so braces inside them do not
// affect the depth count.
func balancedObject(src string) (string, bool) {
	if len(src) == 0 || src[0] != '{' {
		return "", false
	}
	depth := 0
	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return src[:i+1], true
			}
		}
	}
	return "", false
}

// readOptions copies every recognised string property into opts.  Unknown
// keys are ignored; the platform adds and removes fields between builds.
func readOptions(opts *ChallengeOptions, obj *ast.ObjectLiteral) {
	for _, prop := range obj.Value {
		str, ok := prop.Value.(*ast.StringLiteral)
		if !ok {
			continue
		}
		switch prop.Key {
		case "cType":
			opts.CType = str.Value
		case "cvId":
			opts.CvID = str.Value
		case "cFPWv":
			opts.CArg = str.Value
		case "cZone":
			opts.Zone = str.Value
		case "chlApivId":
			opts.APIVID = str.Value
		case "chlApiWidgetId":
			opts.WidgetID = str.Value
		case "chlApiSitekey":
			opts.SiteKey = str.Value
		case "chlApiMode":
			opts.APIMode = str.Value
		case "chlApiSize":
			opts.APISize = str.Value
		case "chlApiRcV":
			opts.APIRcV = str.Value
		case "chlApiResetSrc":
			opts.ResetSrc = str.Value
		case "cRay":
			opts.CRay = str.Value
		case "cH":
			opts.CH = str.Value
		case "md":
			opts.MD = str.Value
		case "cITimeS":
			opts.Time = str.Value
		case "chlIssUA":
			opts.IssUA = str.Value
		case "chlIp":
			opts.IP = str.Value
		}
	}
}

// extractTurnstileU pulls the turnstile "u" value from the text after the
// chlTimeoutMs key.  Best effort; absent values yield an empty string.
func extractTurnstileU(html string) string {
	_, rest, ok := strings.Cut(html, "chlTimeoutMs:")
	if !ok {
		return ""
	}
	parts := strings.SplitN(rest, ",", 3)
	if len(parts) < 2 {
		return ""
	}
	i := strings.IndexAny(parts[1], `'"`)
	if i < 0 {
		return ""
	}
	quoted := parts[1][i+1:]
	j := strings.IndexAny(quoted, `'"`)
	if j < 0 {
		return ""
	}
	return quoted[:j]
}
