package econnect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"

	"golang.org/x/net/html"
)

var sessionIDPattern = regexp.MustCompile(`var\s+sessionId\s*=\s*['"]([^'"]+)['"]`)

// ExtractSessionID finds the `var sessionId = '...'` assignment in a web
// login page. Script elements are searched first, then the raw page.
func ExtractSessionID(page []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(page))
	inScript := false

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				if m := sessionIDPattern.FindSubmatch(page); m != nil {
					return string(m[1]), nil
				}
				return "", fmt.Errorf("%w: session id not found in login page", ErrParse)
			}
			return "", fmt.Errorf("%w: %v", ErrParse, z.Err())
		case html.StartTagToken:
			name, _ := z.TagName()
			inScript = string(name) == "script"
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if !inScript {
				continue
			}
			if m := sessionIDPattern.FindSubmatch(z.Text()); m != nil {
				return string(m[1]), nil
			}
		}
	}
}
