package extract

import (
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Decoding order for downloaded case files. cylaw serves most documents
// as ISO-8859-7, some newer ones as UTF-8 and a few as Windows-1253.
// Latin-1 maps every byte, so the chain always produces something.
var legacyCharmaps = []*charmap.Charmap{
	charmap.ISO8859_7,
	charmap.Windows1253,
	charmap.ISO8859_1,
}

// DecodeBytes converts raw file contents to UTF-8. A charmap is rejected
// when it leaves replacement runes in the output, which is how unassigned
// bytes surface here.
func DecodeBytes(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	for _, cm := range legacyCharmaps {
		decoded, err := cm.NewDecoder().Bytes(data)
		if err != nil || strings.ContainsRune(string(decoded), utf8.RuneError) {
			continue
		}
		return string(decoded)
	}
	return string(data)
}

// ReadDocument reads a downloaded case file and decodes it to UTF-8.
func ReadDocument(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return DecodeBytes(data), nil
}
