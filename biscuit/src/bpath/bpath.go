// Package bpath canonicalizes user-supplied paths the way
// filesys/directory.c's get_next_part tokenizer does: collapse runs of
// slashes and strip a trailing slash, leaving both "." and ".." components
// for the caller (fs.parse) to resolve against the directory tree.
package bpath

import "ustr"

/// Canonicalize collapses consecutive slashes in p and strips a trailing
/// slash (other than the root "/" itself). It does not resolve "." or ".."
/// -- that requires directory lookups and is fs.parse's job.
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	out := make(ustr.Ustr, 0, len(p))
	prevSlash := false
	for i, b := range p {
		if b == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		_ = i
		out = append(out, b)
	}
	for len(out) > 1 && out[len(out)-1] == '/' {
		out = out[:len(out)-1]
	}
	return out
}

/// Split breaks p into its slash-separated components, skipping empty
/// components produced by leading/consecutive slashes. A leading "/"
/// is reported separately via IsAbsolute on the caller's copy of p.
func Split(p ustr.Ustr) []ustr.Ustr {
	var parts []ustr.Ustr
	start := -1
	flush := func(end int) {
		if start >= 0 && end > start {
			parts = append(parts, p[start:end])
		}
		start = -1
	}
	for i, b := range p {
		if b == '/' {
			flush(i)
		} else if start < 0 {
			start = i
		}
	}
	flush(len(p))
	return parts
}
