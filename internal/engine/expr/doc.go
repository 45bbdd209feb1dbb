// Package expr implements the small boolean expression language used by
// condition steps
//
// An expression combines literals (numbers, quoted strings, true, false,
// null), field paths into the run context (for example `fetch.items.0.id` or
// `score.value`), the comparisons == != < <= > >=, the connectives && || !
// (also spelled and, or, not), and parentheses. Expressions are parsed into
// a syntax tree once and evaluated without any host interpreter
package expr
