package aprs

import "math"

// fillPosition validates a decoded lat/lng pair (in degrees) and, if
// valid, stores it on p in radians along with the precomputed cosine
// of the latitude used by spherical-law-of-cosines range filters. It
// mirrors pbuf_fill_pos: besides the plain out-of-range check, it
// rejects the handful of degenerate points (exactly on the equator at
// the prime meridian or the +/-90 longitude lines, or at either pole
// with near-zero longitude) that are far more likely to be a blank or
// zeroed GPS fix than a real location.
func fillPosition(p *Packet, lat, lng float64, symTable, symCode byte) bool {
	p.SymTable, p.SymCode = symTable, symCode

	if symCode == '_' && validSymTableUncompressed(symTable) {
		p.Flags |= WX
	}
	if symCode == '@' && validSymTableUncompressed(symTable) {
		p.Flags |= WX // hurricane
	}

	bad := (lat < -89.9 && lng >= -0.0001 && lng <= 0.0001) ||
		(lat > 89.9 && lng >= -0.0001 && lng <= 0.0001)

	if lat >= -0.0001 && lat <= 0.0001 {
		bad = bad ||
			(lng >= -0.0001 && lng <= 0.0001) ||
			(lng >= -90.01 && lng <= -89.99) ||
			(lng >= 89.99 && lng <= 90.01)
	}

	if bad || lat < -90.0 || lat > 90.0 || lng < -180.0 || lng > 180.0 {
		return false
	}

	p.Lat = lat * math.Pi / 180.0
	p.Lng = lng * math.Pi / 180.0
	p.CosLat = math.Cos(p.Lat)
	p.HasPos = true
	return true
}

// parseUncompressed decodes the 19-byte uncompressed position format
// "DDMM.mmNcDDDMM.mmWc" (degrees, minutes, hundredths of a minute,
// hemisphere, symbol table, ... symbol code) starting at body[0].
// Position ambiguity (space-padded minute digits) is accepted but
// ignored: the missing digits are filled with the values the original
// parser substitutes, which is close enough to the true position for
// map display and range filtering.
func parseUncompressed(p *Packet, body []byte) bool {
	if len(body) < 19 {
		return false
	}
	buf := make([]byte, 19)
	copy(buf, body[:19])

	blank := func(i int, fill byte) {
		if buf[i] == ' ' {
			buf[i] = fill
		}
	}
	blank(2, '3')
	blank(3, '5')
	blank(5, '5')
	blank(6, '5')
	blank(12, '3')
	blank(13, '5')
	blank(15, '5')
	blank(16, '5')

	latDeg, ok1 := atoiRange(buf, 0, 2)
	latMin, ok2 := atoiRange(buf, 2, 4)
	latFrag, ok3 := atoiRange(buf, 5, 7)
	latHemi := buf[7]
	symTable := buf[8]
	lngDeg, ok4 := atoiRange(buf, 9, 12)
	lngMin, ok5 := atoiRange(buf, 12, 14)
	lngFrag, ok6 := atoiRange(buf, 15, 17)
	lngHemi := buf[17]
	symCode := buf[18]

	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return false
	}
	if !validSymTableUncompressed(symTable) {
		symTable = 0
	}

	var south, west bool
	switch latHemi {
	case 'S', 's':
		south = true
	case 'N', 'n':
	default:
		return false
	}
	switch lngHemi {
	case 'W', 'w':
		west = true
	case 'E', 'e':
	default:
		return false
	}
	if latDeg > 89 || lngDeg > 179 {
		return false
	}

	lat := float64(latDeg) + float64(latMin)/60.0 + float64(latFrag)/6000.0
	lng := float64(lngDeg) + float64(lngMin)/60.0 + float64(lngFrag)/6000.0
	if south {
		lat = -lat
	}
	if west {
		lng = -lng
	}
	return fillPosition(p, lat, lng, symTable, symCode)
}

func atoiRange(b []byte, start, end int) (int, bool) {
	n := 0
	for i := start; i < end; i++ {
		c := b[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// parseCompressed decodes the 13-byte base-91 compressed position
// format: 1 symbol table byte, 4 latitude digits, 4 longitude digits,
// 1 symbol code byte, and 3 compression-type bytes (course/speed or
// range, ignored here).
func parseCompressed(p *Packet, body []byte) bool {
	if len(body) < 13 {
		return false
	}
	symTable := body[0]
	if !validSymTableCompressed(symTable) {
		return false
	}
	lat1, ok1 := base91(body[1:5])
	lng1, ok2 := base91(body[5:9])
	if !ok1 || !ok2 {
		return false
	}
	symCode := body[9]

	lat := 90.0 - float64(lat1)/380926.0
	lng := -180.0 + float64(lng1)/190463.0
	return fillPosition(p, lat, lng, symTable, symCode)
}

// base91 decodes a 4-character base-91 field as used by the compressed
// position format (each byte in [0x21, 0x7b]).
func base91(b []byte) (int64, bool) {
	var v int64
	for _, c := range b {
		if c < 0x21 || c > 0x7b {
			return 0, false
		}
		v = v*91 + int64(c-0x21)
	}
	return v, true
}

// miceDstTranslate maps one destination-callsign byte through the
// Mic-E digit/message-bit encoding table, returning the decoded digit
// byte ('0'-'9'), '_' for a position-ambiguity placeholder, or the
// input unchanged if it carries no special meaning (should not occur
// once the caller has validated the callsign character classes).
func miceDstTranslate(c byte) byte {
	switch {
	case c >= 'A' && c <= 'J':
		return c - 'A' + '0'
	case c >= 'P' && c <= 'Y':
		return c - 'P' + '0'
	case c == 'K' || c == 'L' || c == 'Z':
		return '_'
	default:
		return c
	}
}

// parseMiCE decodes a Mic-E position packet. The latitude, the
// north/south and west/east signs, and a longitude offset are encoded
// in the destination callsign; the longitude degrees/minutes and the
// symbol are encoded in the first eight bytes of the information
// field. See APRS101.PDF chapter 10.
func parseMiCE(p *Packet, dst string, body []byte) bool {
	if len(body) < 8 {
		return false
	}
	if len(dst) != 6 {
		return false
	}
	d := []byte(dst)

	for i := 0; i < 3; i++ {
		c := d[i]
		if !((c >= '0' && c <= '9') || (c >= 'A' && c <= 'L') || (c >= 'P' && c <= 'Z')) {
			return false
		}
	}
	for i := 3; i < 6; i++ {
		c := d[i]
		if !((c >= '0' && c <= '9') || c == 'L' || (c >= 'P' && c <= 'Z')) {
			return false
		}
	}

	if body[0] < 0x26 || body[0] > 0x7f {
		return false
	}
	if body[1] < 0x26 || body[1] > 0x61 {
		return false
	}
	if body[2] < 0x1c || body[2] > 0x7f {
		return false
	}
	if body[3] < 0x1c || body[3] > 0x7f {
		return false
	}
	if body[4] < 0x1c || body[4] > 0x7d {
		return false
	}
	if body[5] < 0x1c || body[5] > 0x7f {
		return false
	}
	if (body[6] < 0x21 || body[6] > 0x7b) && body[6] != 0x7d {
		return false
	}
	if !validSymTableUncompressed(body[7]) {
		return false
	}

	translated := make([]byte, 6)
	for i, c := range d {
		translated[i] = miceDstTranslate(c)
	}

	posamb := 0
	if translated[5] == '_' {
		translated[5] = '5'
		posamb = 1
	}
	if translated[4] == '_' {
		translated[4] = '5'
		posamb = 2
	}
	if translated[3] == '_' {
		translated[3] = '5'
		posamb = 3
	}
	if translated[2] == '_' {
		translated[2] = '3'
		posamb = 4
	}
	if translated[1] == '_' || translated[0] == '_' {
		return false
	}

	latDeg, ok1 := atoiRange(translated, 0, 2)
	latMin, ok2 := atoiRange(translated, 2, 4)
	latFrag, ok3 := atoiRange(translated, 4, 6)
	if !(ok1 && ok2 && ok3) {
		return false
	}
	lat := float64(latDeg) + float64(latMin)/60.0 + float64(latFrag)/6000.0
	if d[3] <= 0x4c {
		lat = -lat
	}

	lngDeg := int(body[0]) - 28
	if d[4] >= 0x50 {
		lngDeg += 100
	}
	switch {
	case lngDeg >= 180 && lngDeg <= 189:
		lngDeg -= 80
	case lngDeg >= 190 && lngDeg <= 199:
		lngDeg -= 190
	}

	lngMin := int(body[1]) - 28
	if lngMin >= 60 {
		lngMin -= 60
	}
	lngFrag := int(body[2]) - 28

	var lng float64
	switch posamb {
	case 0:
		lng = float64(lngDeg) + float64(lngMin)/60.0 + float64(lngFrag)/6000.0
	case 1:
		lng = float64(lngDeg) + float64(lngMin)/60.0 + float64(lngFrag-lngFrag%10+5)/6000.0
	case 2:
		lng = float64(lngDeg) + (float64(lngMin)+0.5)/60.0
	case 3:
		lng = float64(lngDeg) + float64(lngMin-lngMin%10+5)/60.0
	case 4:
		lng = float64(lngDeg) + 0.5
	default:
		return false
	}
	if d[5] >= 0x50 {
		lng = -lng
	}

	symCode := body[6]
	symTable := body[7]
	return fillPosition(p, lat, lng, symTable, symCode)
}
