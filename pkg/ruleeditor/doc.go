// Package ruleeditor provides a minimal public façade for editing linking
// rules without importing internal packages. It re-exports the rule graph
// and rule tree types and exposes a Runtime that opens editing sessions over
// an in-memory rule store.
package ruleeditor
