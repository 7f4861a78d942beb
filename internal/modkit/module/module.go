// Package module is the process wide registrar of components. Every
// registered component's directory contributes an etc/reset.json rule source.
// keep this sibling of modkit free of imports so anything can register
package module
