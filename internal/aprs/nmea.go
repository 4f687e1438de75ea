package aprs

import "strconv"

// parseNMEA decodes a $GP-prefixed NMEA sentence carrying a position.
// Only the three sentence types actually seen in APRS-IS traffic in
// volume are decoded (GGA, GLL, RMC). Every other sentence, including
// GPWPL and the Alinco $PNTS extension, falls through to the default
// case below and is reported as unparseable like any other unknown
// sentence; no special-cased recognition is implemented for them,
// since no example traffic carrying them appeared in the course of
// grounding this parser.
func parseNMEA(p *Packet, dst string, body []byte) bool {
	if len(body) >= 3 && string(body[:3]) == "ULT" {
		p.Flags |= WX
		return false
	}

	symTable, symCode := symbolFromDest(dst)

	switch {
	case hasPrefix(body, "GPGGA,"):
		return parseGPGGA(p, body, symTable, symCode)
	case hasPrefix(body, "GPGLL,"):
		return parseGPGLL(p, body, symTable, symCode)
	case hasPrefix(body, "GPRMC,"):
		return parseGPRMC(p, body, symTable, symCode)
	default:
		return false
	}
}

func hasPrefix(b []byte, s string) bool {
	return len(b) >= len(s) && string(b[:len(s)]) == s
}

func splitNMEAFields(body []byte) []string {
	// Strip the checksum suffix (*hh) before splitting, if present.
	end := len(body)
	for i, c := range body {
		if c == '*' {
			end = i
			break
		}
	}
	fields := []string{}
	start := 0
	for i := 0; i < end; i++ {
		if body[i] == ',' {
			fields = append(fields, string(body[start:i]))
			start = i + 1
		}
	}
	fields = append(fields, string(body[start:end]))
	return fields
}

// decodeNMEALatLng parses a latitude/longitude pair in NMEA's
// "DDMM.mmmm" / "DDDMM.mmmm" degrees-and-decimal-minutes form, with
// single-letter hemisphere fields.
func decodeNMEALatLng(latField, latHemi, lngField, lngHemi string) (lat, lng float64, ok bool) {
	lat, ok = decodeNMEACoord(latField, 2)
	if !ok {
		return 0, 0, false
	}
	lng, ok = decodeNMEACoord(lngField, 3)
	if !ok {
		return 0, 0, false
	}
	switch latHemi {
	case "S", "s":
		lat = -lat
	case "N", "n":
	default:
		return 0, 0, false
	}
	switch lngHemi {
	case "W", "w":
		lng = -lng
	case "E", "e":
	default:
		return 0, 0, false
	}
	return lat, lng, true
}

func decodeNMEACoord(field string, degDigits int) (float64, bool) {
	dot := -1
	for i, c := range field {
		if c == '.' {
			dot = i
			break
		}
	}
	if dot < degDigits {
		return 0, false
	}
	deg, err := strconv.Atoi(field[:degDigits])
	if err != nil {
		return 0, false
	}
	min, err := strconv.ParseFloat(field[degDigits:], 64)
	if err != nil {
		return 0, false
	}
	return float64(deg) + min/60.0, true
}

func parseGPGGA(p *Packet, body []byte, symTable, symCode byte) bool {
	f := splitNMEAFields(body)
	// GPGGA,time,lat,N/S,lng,E/W,fixquality,...
	if len(f) < 6 {
		return false
	}
	lat, lng, ok := decodeNMEALatLng(f[2], f[3], f[4], f[5])
	if !ok {
		return false
	}
	return fillPosition(p, lat, lng, symTable, symCode)
}

func parseGPGLL(p *Packet, body []byte, symTable, symCode byte) bool {
	f := splitNMEAFields(body)
	// GPGLL,lat,N/S,lng,E/W,time,status
	if len(f) < 5 {
		return false
	}
	lat, lng, ok := decodeNMEALatLng(f[1], f[2], f[3], f[4])
	if !ok {
		return false
	}
	return fillPosition(p, lat, lng, symTable, symCode)
}

func parseGPRMC(p *Packet, body []byte, symTable, symCode byte) bool {
	f := splitNMEAFields(body)
	// GPRMC,time,status(A/V),lat,N/S,lng,E/W,speed,course,date,...
	if len(f) < 7 {
		return false
	}
	if f[2] != "A" && f[2] != "V" {
		return false
	}
	if f[2] != "A" {
		return false // no fix
	}
	lat, lng, ok := decodeNMEALatLng(f[3], f[4], f[5], f[6])
	if !ok {
		return false
	}
	return fillPosition(p, lat, lng, symTable, symCode)
}
