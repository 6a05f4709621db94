// Package diag holds small debug-dump helpers adapted from
// pkg/fmtt/printe.go (PrintErrChainDebug's spew.Dump + reflective field
// walk). Narrowed to two call sites: a dropped malformed IPC payload and
// a SpawnError chain, both logged at Debug level only.
package diag

import (
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// DumpBytes renders a byte payload with spew for Debug-level logging.
// Callers are expected to gate this behind a Debug log check; DumpBytes
// itself does no gating.
func DumpBytes(label string, b []byte) string {
	return fmt.Sprintf("%s: %s", label, spew.Sdump(b))
}

// DumpErrChain walks an error chain, printing each layer's concrete type,
// the same way PrintErrChainDebug did for the teacher's CRUD error paths.
func DumpErrChain(err error) string {
	if err == nil {
		return "<nil>"
	}
	out := ""
	for i, e := 0, err; e != nil; i, e = i+1, errors.Unwrap(e) {
		out += fmt.Sprintf("[%d] %T: %v\n", i, e, e)
	}
	return out
}
