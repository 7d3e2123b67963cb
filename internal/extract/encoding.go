package extract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// toUTF8 detects body's encoding via chardet and, when it is not already
// UTF-8, transcodes it through golang.org/x/net/html/charset so goquery
// always sees valid UTF-8.
func toUTF8(body []byte, contentType string) ([]byte, error) {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(body)
	if err != nil || result == nil {
		return body, nil
	}
	if isUTF8Label(result.Charset) {
		return body, nil
	}

	reader, err := charset.NewReaderLabel(result.Charset, bytes.NewReader(body))
	if err != nil {
		reader, err = charset.NewReaderLabel(result.Charset, bytes.NewReader(body))
		if err != nil {
			return body, fmt.Errorf("transcode from %s: %w", result.Charset, err)
		}
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return body, fmt.Errorf("read transcoded body: %w", err)
	}
	return decoded, nil
}

func isUTF8Label(label string) bool {
	switch label {
	case "UTF-8", "utf-8", "ascii", "US-ASCII":
		return true
	default:
		return false
	}
}
