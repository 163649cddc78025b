// Package text provides small text-measurement helpers shared by the
// output layout's title sanitization and truncation.
package text

// CountRunes counts Unicode characters (runes) rather than bytes, so
// title-length caps treat multi-byte characters (Japanese, emoji,
// accented Latin) as one character each instead of over-counting them.
//
// Examples:
//
//	CountRunes("hello")     // 5
//	CountRunes("こんにちは")   // 5
//	CountRunes("hello世界")  // 7
//	CountRunes("")          // 0
func CountRunes(text string) int {
	return len([]rune(text))
}
