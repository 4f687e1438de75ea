package dedup

// normalize applies one of the closed set of body transforms used to
// recognize near-duplicate packets, always returning a value (even
// when the transform is a no-op for this body). Matching must work
// regardless of which arrival "caused" a difference -- an already
// clean body still has to land on the same normalized form as a dirty
// one for the two to be recognized as duplicates of each other.
func normalize(body []byte, v Variant) []byte {
	switch v {
	case VariantExact:
		return body
	case VariantSpaceTrim:
		return trimSpace(body)
	case VariantStrip8Bit:
		return filterBytes(body, drop8Bit)
	case VariantClear8Bit:
		return mapBytes(body, clear8Bit)
	case VariantSpaced8Bit:
		return mapBytes(body, space8Bit)
	case VariantLowDataStrip:
		return filterBytes(body, dropLowASCII)
	case VariantLowDataSpaced:
		return mapBytes(body, spaceLowASCII)
	case VariantDelStrip:
		return filterBytes(body, dropDEL)
	case VariantDelSpaced:
		return mapBytes(body, spaceDEL)
	}
	return body
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && b[start] == ' ' {
		start++
	}
	for end > start && b[end-1] == ' ' {
		end--
	}
	out := make([]byte, 0, end-start)
	for i := start; i < end; i++ {
		if b[i] == ' ' && i+1 < end && b[i+1] == ' ' {
			continue // collapse interior runs of spaces too
		}
		out = append(out, b[i])
	}
	return out
}

func drop8Bit(c byte) (byte, bool) { return c, c < 0x80 }
func clear8Bit(c byte) byte {
	if c >= 0x80 {
		return c & 0x7f
	}
	return c
}
func space8Bit(c byte) byte {
	if c >= 0x80 {
		return ' '
	}
	return c
}

func dropLowASCII(c byte) (byte, bool) { return c, c >= 0x20 }
func spaceLowASCII(c byte) byte {
	if c < 0x20 {
		return ' '
	}
	return c
}

func dropDEL(c byte) (byte, bool) { return c, c != 0x7f }
func spaceDEL(c byte) byte {
	if c == 0x7f {
		return ' '
	}
	return c
}

func filterBytes(b []byte, keep func(byte) (byte, bool)) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if v, ok := keep(c); ok {
			out = append(out, v)
		}
	}
	return out
}

func mapBytes(b []byte, xform func(byte) byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = xform(c)
	}
	return out
}
