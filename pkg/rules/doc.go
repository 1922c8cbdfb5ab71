// Package rules evaluates toggle rule predicates with pluggable expression
// engines: expr-lang/expr (default), cel-go, hashicorp/go-bexpr filters and
// goja (js_eval build tag).
package rules
