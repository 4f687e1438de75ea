package aprs

// symbolFromDest infers a symbol table and code from a GPS unit's
// destination callsign convention (GPSxy, SPCxy, SYMxy, or one of
// those with a two-digit numeric suffix), used by packets that carry
// no explicit symbol of their own (NMEA sentences). It returns a
// space/space pair when no convention matches.
func symbolFromDest(dst string) (table, code byte) {
	table, code = ' ', ' '

	if len(dst) < 5 {
		return
	}
	prefix := dst[:3]
	if prefix != "GPS" && prefix != "SPC" && prefix != "SYM" {
		return
	}
	rest := dst[3:]
	if !isAlnum(rest[0]) || !isAlnum(rest[1]) {
		return
	}

	sub := len(rest)
	if sub > 3 {
		sub = 3
	}

	c1 := rest[0]
	if sub == 3 {
		if !isAlnum(rest[2]) {
			return ' ', ' '
		}
		c2, c3 := rest[1], rest[2]
		if c1 == 'C' || c1 == 'E' {
			if !isDigit(c2) || !isDigit(c3) {
				return ' ', ' '
			}
			numberid := int(c2-'0')*10 + int(c3-'0')
			code = byte(numberid + 32)
			if c1 == 'C' {
				table = '/'
			} else {
				table = '\\'
			}
			return table, code
		}
		switch c1 {
		case 'O', 'A', 'N', 'D', 'S', 'Q':
			if isAlnum(c3) {
				return destSymTwoChar(c1, c2)
			}
		}
		return ' ', ' '
	}

	return destSymTwoChar(rest[0], rest[1])
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// destSymTwoChar implements the two-letter primary/secondary symbol
// table lookup (e.g. "MV" => primary table, code '>' for an
// automobile), exactly mirroring the APRS101.PDF destination address
// symbol table.
func destSymTwoChar(c1, c2 byte) (table, code byte) {
	switch c1 {
	case 'B':
		if c2 >= 'B' && c2 <= 'P' {
			return '/', c2 - 'B' + '!'
		}
	case 'P':
		if (c2 >= '0' && c2 <= '9') || (c2 >= 'A' && c2 <= 'Z') {
			return '/', c2
		}
	case 'M':
		if c2 >= 'R' && c2 <= 'X' {
			return '/', c2 - 'R' + ':'
		}
	case 'H':
		if c2 >= 'S' && c2 <= 'X' {
			return '/', c2 - 'S' + '['
		}
	case 'L':
		if c2 >= 'A' && c2 <= 'Z' {
			return '/', c2 - 'A' + 'a'
		}
	case 'J':
		if c2 >= '1' && c2 <= '4' {
			return '/', c2 - '1' + '{'
		}
	case 'O':
		if c2 >= 'B' && c2 <= 'P' {
			return '\\', c2 - 'B' + '!'
		}
	case 'A':
		if (c2 >= '0' && c2 <= '9') || (c2 >= 'A' && c2 <= 'Z') {
			return '\\', c2
		}
	case 'N':
		if c2 >= 'R' && c2 <= 'X' {
			return '\\', c2 - 'R' + ':'
		}
	case 'D':
		if c2 >= 'S' && c2 <= 'X' {
			return '\\', c2 - 'S' + '['
		}
	case 'S':
		if c2 >= 'A' && c2 <= 'Z' {
			return '\\', c2 - 'A' + 'a'
		}
	case 'Q':
		if c2 >= '1' && c2 <= '4' {
			return '\\', c2 - '1' + '{'
		}
	}
	return ' ', ' '
}
