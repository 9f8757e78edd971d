// Package directive implements the line-based preprocessing language
// embedded in source files: a tokenizer for the marker-prefixed control
// lines, a boolean expression evaluator over the run environment, and the
// processor that turns a file's lines into a single Action.
//
// The language is deliberately small: single-pass conditional inclusion
// with no nesting, and inline key substitution. It is not a templating
// language.
package directive
