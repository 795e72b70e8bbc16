package validation

import "strings"

// ValidCPF checks a Brazilian CPF number: eleven digits and two mod-11
// check digits. Punctuation (dots, dash) is ignored.
func ValidCPF(raw string) bool {
	digits := make([]int, 0, 11)

	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case strings.ContainsRune(".-", r):
		default:
			return false
		}
	}

	if len(digits) != 11 {
		return false
	}

	// Sequences of one repeated digit pass the checksum but are not
	// valid documents.
	same := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			same = false

			break
		}
	}

	if same {
		return false
	}

	return digits[9] == cpfCheckDigit(digits[:9]) && digits[10] == cpfCheckDigit(digits[:10])
}

func cpfCheckDigit(digits []int) int {
	weight := len(digits) + 1
	sum := 0

	for _, d := range digits {
		sum += d * weight
		weight--
	}

	rest := sum * 10 % 11
	if rest == 10 {
		return 0
	}

	return rest
}
