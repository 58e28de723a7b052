package naming

import (
	"fmt"
	"strings"
)

// Template tokens understood by the convention
const (
	TokenTableName           = "table_name"
	TokenColumn0Name         = "column_0_name"
	TokenColumn0Label        = "column_0_label"
	TokenColumn0NName        = "column_0N_name"
	TokenColumn0UnderNName   = "column_0_N_name"
	TokenColumn0NLabel       = "column_0N_label"
	TokenColumn0UnderNLabel  = "column_0_N_label"
	TokenReferredTableName   = "referred_table_name"
	TokenReferredColumn0Name = "referred_column_0_name"
	TokenConstraintName      = "constraint_name"
)

var knownTokens = map[string]bool{
	TokenTableName:           true,
	TokenColumn0Name:         true,
	TokenColumn0Label:        true,
	TokenColumn0NName:        true,
	TokenColumn0UnderNName:   true,
	TokenColumn0NLabel:       true,
	TokenColumn0UnderNLabel:  true,
	TokenReferredTableName:   true,
	TokenReferredColumn0Name: true,
	TokenConstraintName:      true,
}

// segment is either a literal run of text or a placeholder token
type segment struct {
	literal string
	token   string
}

// compiledTemplate is a parsed "%(token)s" template
type compiledTemplate struct {
	source   string
	segments []segment
}

// compileTemplate parses a template into literal and token segments
func compileTemplate(category Category, tmpl string) (*compiledTemplate, error) {
	if tmpl == "" {
		return nil, &NamingInputError{Category: category, Reason: "template is empty"}
	}

	ct := &compiledTemplate{source: tmpl}
	rest := tmpl
	for rest != "" {
		start := strings.Index(rest, "%(")
		if start < 0 {
			ct.segments = append(ct.segments, segment{literal: rest})
			break
		}
		if start > 0 {
			ct.segments = append(ct.segments, segment{literal: rest[:start]})
		}

		end := strings.Index(rest[start:], ")s")
		if end < 0 {
			return nil, &NamingInputError{Category: category, Template: tmpl, Reason: "unterminated placeholder"}
		}

		token := rest[start+2 : start+end]
		if !knownTokens[token] {
			return nil, &NamingInputError{Category: category, Template: tmpl, Reason: fmt.Sprintf("unknown token %q", token)}
		}
		ct.segments = append(ct.segments, segment{token: token})
		rest = rest[start+end+2:]
	}

	return ct, nil
}

// expand renders the template for the given input
func (ct *compiledTemplate) expand(in Input) (string, error) {
	var b strings.Builder
	for _, seg := range ct.segments {
		if seg.token == "" {
			b.WriteString(seg.literal)
			continue
		}
		value, err := resolveToken(seg.token, in)
		if err != nil {
			return "", err
		}
		b.WriteString(value)
	}
	return b.String(), nil
}

// resolveToken returns the value of a single token
func resolveToken(token string, in Input) (string, error) {
	missing := func(what string) error {
		return &NamingInputError{
			Category: in.Category,
			Table:    in.Table,
			Reason:   fmt.Sprintf("token %s requires %s", token, what),
		}
	}

	switch token {
	case TokenTableName:
		return in.Table, nil

	case TokenColumn0Name:
		if len(in.Columns) == 0 {
			return "", missing("at least one column")
		}
		return in.Columns[0], nil

	case TokenColumn0Label:
		if len(in.Columns) == 0 {
			return "", missing("at least one column")
		}
		return in.Table + "_" + in.Columns[0], nil

	case TokenColumn0NName, TokenColumn0UnderNName:
		if len(in.Columns) == 0 {
			return "", missing("at least one column")
		}
		sep := ""
		if token == TokenColumn0UnderNName {
			sep = "_"
		}
		return strings.Join(in.Columns, sep), nil

	case TokenColumn0NLabel, TokenColumn0UnderNLabel:
		if len(in.Columns) == 0 {
			return "", missing("at least one column")
		}
		sep := ""
		if token == TokenColumn0UnderNLabel {
			sep = "_"
		}
		labels := make([]string, len(in.Columns))
		for i, col := range in.Columns {
			labels[i] = in.Table + "_" + col
		}
		return strings.Join(labels, sep), nil

	case TokenReferredTableName:
		if in.ReferredTable == "" {
			return "", missing("a referred table")
		}
		return in.ReferredTable, nil

	case TokenReferredColumn0Name:
		if len(in.ReferredColumns) == 0 {
			return "", missing("a referred column")
		}
		return in.ReferredColumns[0], nil

	case TokenConstraintName:
		if in.ConstraintName == "" {
			return "", missing("a constraint identifier")
		}
		return in.ConstraintName, nil
	}

	return "", missing("a known token")
}
