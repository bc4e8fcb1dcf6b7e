// CLAUDE:SUMMARY Name keys for register matching: lowercase, accents stripped, whitespace collapsed.
package registry

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NameKey lowercases, strips accents and collapses runs of whitespace
// (e.g. "  Café   DU Nord " -> "cafe du nord").
func NameKey(s string) string {
	folded, _, _ := transform.String(stripAccents, strings.ToLower(s))
	return strings.Join(strings.Fields(folded), " ")
}

// likeEscape escapes the LIKE wildcards in s for use with ESCAPE '\'.
func likeEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
