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

package timing

import (
	"path/filepath"
	"strings"
)

// Class is the closed set of command categories spec.md §4.2 names.
type Class string

const (
	ClassCalculation Class = "calculation"
	ClassCode        Class = "code"
	ClassData        Class = "data"
	ClassFile        Class = "file"
	ClassGeneral     Class = "general"
)

// Complexity is the closed set of complexity bands spec.md §4.2 names.
type Complexity string

const (
	ComplexityTrivial Complexity = "trivial"
	ComplexityLow     Complexity = "low"
	ComplexityMedium  Complexity = "medium"
	ComplexityHigh    Complexity = "high"
	ComplexityExtreme Complexity = "extreme"
)

// keywords maps a class to the substrings (already lower-cased) that tag a
// command as belonging to it. Checked in declaration order; the first
// class with a match wins.
var keywords = []struct {
	class Class
	words []string
}{
	{ClassCalculation, []string{"calc", "bc ", "python -c", "solve", "compute", "math"}},
	{ClassCode, []string{"claude", "llm", "gpt", "codex", "refactor", "implement", "write a function", "fix the bug", "generate code"}},
	{ClassData, []string{"sql", "csv", "json", "parquet", "pandas", "dataframe", "query"}},
	{ClassFile, []string{"cp ", "mv ", "rm ", "find ", "grep ", "sed ", "tar ", "zip"}},
}

// multiStepConnectives are signals that a command describes several
// sequential steps, which pushes complexity up a band.
var multiStepConnectives = []string{" then ", " and then ", "; ", " && ", "step 1", "first,"}

// Classify is a pure function mapping a command line to (class,
// complexity): the executable name, a keyword scan over the full command,
// and length/connective heuristics, exactly as spec.md §4.2 prescribes.
// The same input always yields the same output.
func Classify(executable, fullCommand string) (Class, Complexity) {
	lc := strings.ToLower(fullCommand)
	exe := strings.ToLower(filepath.Base(executable))

	class := classify(exe, lc)
	complexity := complexityOf(lc)

	return class, complexity
}

func classify(exe, lc string) Class {
	for _, k := range keywords {
		if containsAny(exe, k.words) || containsAny(lc, k.words) {
			return k.class
		}
	}

	return ClassGeneral
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}

	return false
}

func complexityOf(lc string) Complexity {
	steps := 0
	for _, c := range multiStepConnectives {
		steps += strings.Count(lc, c)
	}

	n := len(lc)

	switch {
	case steps >= 3 || n > 2000:
		return ComplexityExtreme
	case steps >= 2 || n > 800:
		return ComplexityHigh
	case steps >= 1 || n > 300:
		return ComplexityMedium
	case n > 80:
		return ComplexityLow
	default:
		return ComplexityTrivial
	}
}
