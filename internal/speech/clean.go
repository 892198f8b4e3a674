package speech

import (
	"strings"
	"unicode"
)

// emojiRanges are the pictographic blocks removed before narration.
var emojiRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x2600, Hi: 0x26FF, Stride: 1},
		{Lo: 0x2700, Hi: 0x27BF, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1F1E0, Hi: 0x1F1FF, Stride: 1},
		{Lo: 0x1F300, Hi: 0x1F5FF, Stride: 1},
		{Lo: 0x1F600, Hi: 0x1F64F, Stride: 1},
		{Lo: 0x1F680, Hi: 0x1F6FF, Stride: 1},
		{Lo: 0x1F900, Hi: 0x1F9FF, Stride: 1},
	},
}

// CleanForSpeech strips emphasis markers and emoji from text and normalizes
// whitespace. An empty result means there is nothing to say.
func CleanForSpeech(text string) string {
	stripped := strings.Map(func(r rune) rune {
		if r == '*' || unicode.Is(emojiRanges, r) {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(stripped), " ")
}
