package abn

// abnWeights are the ABR modulus-89 weights.
var abnWeights = [ABNLength]int{10, 1, 3, 5, 7, 9, 11, 13, 15, 17, 19}

// ValidChecksum implements the ABR modulus-89 check: subtract 1 from the
// leading digit, take the weighted sum, and require sum % 89 == 0.
// Whitespace is ignored.
func ValidChecksum(id string) bool {
	s := StripSpace(id)
	if !isDigits(s, ABNLength) {
		return false
	}
	// A leading zero would go negative after the subtraction.
	if s[0] == '0' {
		return false
	}
	sum := 0
	for i := 0; i < ABNLength; i++ {
		d := int(s[i] - '0')
		if i == 0 {
			d--
		}
		sum += d * abnWeights[i]
	}
	return sum%89 == 0
}
