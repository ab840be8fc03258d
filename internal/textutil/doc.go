// Package textutil provides text normalization and similarity scoring used by
// the matching engine, plus filename sanitization for destination paths.
package textutil
