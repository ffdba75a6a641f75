package catalogue

import "strings"

// permTable maps every nine-character rwx string to its permission bits.
var permTable = buildPermTable()

func buildPermTable() map[string]uint16 {
	table := make(map[string]uint16, 512)
	letters := "rwxrwxrwx"
	for bits := 0; bits < 512; bits++ {
		var b strings.Builder
		for i := 0; i < 9; i++ {
			if bits&(1<<(8-i)) != 0 {
				b.WriteByte(letters[i])
			} else {
				b.WriteByte('-')
			}
		}
		table[b.String()] = uint16(bits)
	}
	return table
}

// parseMode converts the permission part of a listing line. The execute
// columns may carry setuid, setgid or sticky letters: lower case means the
// execute bit is set, upper case that it is not.
func parseMode(s string) (uint16, bool) {
	if len(s) != 9 {
		return 0, false
	}
	b := []byte(s)
	for _, i := range []int{2, 5, 8} {
		switch b[i] {
		case 's', 't':
			b[i] = 'x'
		case 'S', 'T':
			b[i] = '-'
		}
	}
	mode, ok := permTable[string(b)]
	return mode, ok
}

// ModeString renders permission bits the way ls does, without the type.
func ModeString(mode uint16) string {
	letters := "rwxrwxrwx"
	b := make([]byte, 9)
	for i := 0; i < 9; i++ {
		if mode&(1<<(8-i)) != 0 {
			b[i] = letters[i]
		} else {
			b[i] = '-'
		}
	}
	return string(b)
}
