/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package process

import (
	"fmt"
	"strings"
)

// tokenize splits a raw command line into executable + args using
// standard shell-word rules (quoting, escaping) without invoking a shell,
// per spec.md §4.4's "Shell interpretation is avoided... tokenized with
// standard shell-word splitting - no shell is invoked."
func tokenize(raw string) (executable string, args []string, err error) {
	var (
		words      []string
		cur        strings.Builder
		inSingle   bool
		inDouble   bool
		haveToken  bool
		escapeNext bool
	)

	flush := func() {
		if haveToken {
			words = append(words, cur.String())
			cur.Reset()
			haveToken = false
		}
	}

	for _, r := range raw {
		switch {
		case escapeNext:
			cur.WriteRune(r)
			haveToken = true
			escapeNext = false
		case inSingle:
			if r == '\'' {
				inSingle = false
			} else {
				cur.WriteRune(r)
			}
		case inDouble:
			switch r {
			case '"':
				inDouble = false
			case '\\':
				escapeNext = true
			default:
				cur.WriteRune(r)
			}
		case r == '\\':
			escapeNext = true
			haveToken = true
		case r == '\'':
			inSingle = true
			haveToken = true
		case r == '"':
			inDouble = true
			haveToken = true
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			cur.WriteRune(r)
			haveToken = true
		}
	}

	if inSingle || inDouble {
		return "", nil, fmt.Errorf("process: unterminated quote in command")
	}

	flush()

	if len(words) == 0 {
		return "", nil, fmt.Errorf("process: empty command")
	}

	return words[0], words[1:], nil
}
