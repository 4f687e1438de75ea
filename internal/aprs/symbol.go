package aprs

// validSymTableUncompressed reports whether c is a valid symbol table
// identifier or overlay character for an uncompressed position: the
// primary/secondary table selectors '/' and '\\', an uppercase letter
// overlay, or a digit overlay.
func validSymTableUncompressed(c byte) bool {
	return c == '/' || c == '\\' || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// validSymTableCompressed is the compressed-position variant: digit
// overlays are replaced by the range a-j (0-9 shifted to avoid clashing
// with the base-91 digit alphabet).
func validSymTableCompressed(c byte) bool {
	return c == '/' || c == '\\' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'j')
}
