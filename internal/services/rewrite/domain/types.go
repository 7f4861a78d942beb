// Package domain holds the rewrite module's request and response shapes
package domain

// ResolveInput is the body of POST /v1/rewrites/resolve
type ResolveInput struct {
	Path   string `json:"path" validate:"required,notblank,startswith=/,max=2048"`
	Store  string `json:"store,omitempty" validate:"omitempty,alphanum,max=32"`
	Locale string `json:"locale,omitempty" validate:"omitempty,min=2,max=16"`
}

// Hop is one applied rewrite
type Hop struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Result is the outcome of resolving one path
type Result struct {
	Path    string `json:"path"`
	Target  string `json:"target"`
	Store   string `json:"store"`
	Locale  string `json:"locale"`
	Hops    []Hop  `json:"hops,omitempty"`
	Cached  bool   `json:"cached"`
	Lookups int    `json:"lookups"`
}

// State is what the worker's services hold right now. Between requests it
// should always read as the baseline.
type State struct {
	Store    string `json:"store"`
	Locale   string `json:"locale"`
	Lookups  int    `json:"lookups"`
	Memo     int    `json:"memo"`
	Trail    int    `json:"trail"`
	Requests int    `json:"requests"`
}

// Rule maps one path to another
type Rule struct {
	From string `json:"from"`
	To   string `json:"to"`
}
