package dvbsi

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnsupportedEncoding is returned in strict mode when a text field selects a character
// set the implementation doesn't handle
var ErrUnsupportedEncoding = errors.New("dvbsi: unsupported DVB text encoding")

// Character set selection bytes
// Page: 127 | Annex A.2 | Link: https://www.dvb.org/resources/public/standards/a38_dvb-si_specification.pdf
var characterSets = map[byte]*charmap.Charmap{
	0x01: charmap.ISO8859_5, // Cyrillic
	0x02: charmap.ISO8859_6, // Arabic
	0x03: charmap.ISO8859_7, // Greek
	0x04: charmap.ISO8859_8, // Hebrew
	0x05: charmap.ISO8859_9, // Turkish
}

// Character sets selectable through the 0x10 escape followed by a 16 bit table id
var extendedCharacterSets = map[uint16]*charmap.Charmap{
	0x0001: charmap.ISO8859_1,
	0x0002: charmap.ISO8859_2,
	0x0003: charmap.ISO8859_3,
	0x0004: charmap.ISO8859_4,
	0x0005: charmap.ISO8859_5,
	0x0006: charmap.ISO8859_6,
	0x0007: charmap.ISO8859_7,
	0x0008: charmap.ISO8859_8,
	0x0009: charmap.ISO8859_9,
	0x000a: charmap.ISO8859_10,
	0x000d: charmap.ISO8859_13,
	0x000e: charmap.ISO8859_14,
	0x000f: charmap.ISO8859_15,
}

// dvbAccent maps the base characters an ISO/IEC 6937 accent prefix composes with to the
// precomposed characters, index for index
type dvbAccent struct {
	bases    string
	composed []rune
}

// ISO/IEC 6937 accent prefixes. The byte latches the diacritic, the following base letter
// selects the composed character.
var dvbAccents = map[byte]dvbAccent{
	0xc1: {"AEIOUaeiou", []rune("ÀÈÌÒÙàèìòù")},                         // grave
	0xc2: {"ACEILNORSUYZaceilnorsuyz", []rune("ÁĆÉÍĹŃÓŔŚÚÝŹáćéíĺńóŕśúýź")}, // acute
	0xc3: {"ACEGHIJOSUWYaceghijosuwy", []rune("ÂĈÊĜĤÎĴÔŜÛŴŶâĉêĝĥîĵôŝûŵŷ")}, // circumflex
	0xc4: {"AINOUainou", []rune("ÃĨÑÕŨãĩñõũ")},                         // tilde
	0xc5: {"AEIOUaeiou", []rune("ĀĒĪŌŪāēīōū")},                         // macron
	0xc6: {"AGUagu", []rune("ĂĞŬăğŭ")},                                 // breve
	0xc7: {"CEGIZcegz", []rune("ĊĖĠİŻċėġż")},                           // dot above
	0xc8: {"AEIOUYaeiouy", []rune("ÄËÏÖÜŸäëïöüÿ")},                     // diaeresis
	0xca: {"AUau", []rune("ÅŮåů")},                                     // ring
	0xcb: {"CGKLNRSTcgklnrst", []rune("ÇĢĶĻŅŖŞŢçģķļņŗşţ")},             // cedilla
	0xcd: {"OUou", []rune("ŐŰőű")},                                     // double acute
	0xce: {"AEIUaeiu", []rune("ĄĘĮŲąęįų")},                             // ogonek
	0xcf: {"CDELNRSTZcdelnrstz", []rune("ČĎĚĽŇŘŠŤŽčďěľňřšťž")},         // caron
}

// DecodeDVBText decodes a DVB text field as defined in EN 300 468 Annex A. Character sets
// the implementation doesn't handle yield an empty string.
func DecodeDVBText(b []byte) string {
	s, _ := decodeDVBTextMode(b, false)
	return s
}

// DecodeDVBTextStrict behaves like DecodeDVBText but fails with ErrUnsupportedEncoding
// when the field selects a character set the implementation doesn't handle.
func DecodeDVBTextStrict(b []byte) (string, error) {
	return decodeDVBTextMode(b, true)
}

// decodeDVBText is the lenient decode the descriptor layer relies on
func decodeDVBText(b []byte) string {
	s, _ := decodeDVBTextMode(b, false)
	return s
}

func decodeDVBTextMode(b []byte, strict bool) (s string, err error) {
	if len(b) == 0 {
		return
	}

	// A first byte in 0x01..0x1f selects an alternate character set and is consumed.
	// Under a recognised prefix the remaining bytes decode verbatim, control code and
	// accent handling don't apply.
	if b[0] >= 0x01 && b[0] <= 0x1f {
		if cm, ok := characterSets[b[0]]; ok {
			return decodeCharmap(cm, b[1:])
		}
		if b[0] == 0x10 && len(b) >= 3 {
			if cm, ok := extendedCharacterSets[uint16(b[1])<<8|uint16(b[2])]; ok {
				return decodeCharmap(cm, b[3:])
			}
		}
		if strict {
			err = errors.Wrapf(ErrUnsupportedEncoding, "dvbsi: character set selection byte 0x%x", b[0])
		}
		return
	}

	// Default character set
	var sb strings.Builder
	var accent byte
	for _, c := range b {
		switch {
		case c >= 0x80 && c <= 0x9f:
			// Control codes. 0x8a is a line separator, emphasis toggles and the rest emit
			// nothing. All of them reset a pending accent.
			if c == 0x8a {
				sb.WriteByte('\n')
			}
			accent = 0
		case c >= 0xc1 && c <= 0xcf:
			if _, ok := dvbAccents[c]; ok {
				accent = c
			} else {
				// Not an accent we compose with, drop it
				accent = 0
			}
		case c >= 0x20 && c <= 0x7f:
			if accent > 0 {
				a := dvbAccents[accent]
				if idx := strings.IndexByte(a.bases, c); idx >= 0 {
					sb.WriteRune(a.composed[idx])
				} else {
					sb.WriteByte(c)
				}
				accent = 0
			} else {
				sb.WriteByte(c)
			}
		default:
			// Dropped
			accent = 0
		}
	}
	s = sb.String()
	return
}

func decodeCharmap(cm *charmap.Charmap, b []byte) (string, error) {
	s, err := cm.NewDecoder().String(string(b))
	if err != nil {
		return "", errors.Wrap(err, "dvbsi: decoding character set failed")
	}
	return s, nil
}
