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

// Package hook implements C3, the Hook Engine: an ordered, typed sequence
// of external hook programs run around every command, per spec.md §4.3.
package hook

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Kind is the closed set of hook points spec.md §3/§4.3 name.
type Kind string

const (
	KindPreExecute Kind = "pre-execute"
	KindPreTool    Kind = "pre-tool"
	KindPreClaude  Kind = "pre-claude"
	KindPostClaude Kind = "post-claude"
	KindPostTool   Kind = "post-tool"
	KindPostOutput Kind = "post-output"
)

// preOrder and postOrder are the strict, cross-kind sequences spec.md
// §4.3 mandates. Within a kind, hooks still run in declaration order.
var preOrder = []Kind{KindPreExecute, KindPreTool, KindPreClaude}
var postOrder = []Kind{KindPostClaude, KindPostTool, KindPostOutput}

// Hook is spec.md §3's tagged variant `Simple(cmd) | Detailed{cmd,
// timeout}`, represented as one struct with an optional timeout - the
// teacher's own "mixed string/map config" pattern generalized to a single
// field.
type Hook struct {
	Command string         `yaml:"command"`
	Timeout *time.Duration `yaml:"-"`

	// RawTimeout supports both `timeout: 30` (seconds) and a bare command
	// string entry; UnmarshalYAML below normalizes either form into
	// Command/Timeout.
	RawTimeout int `yaml:"timeout"`
}

// Manifest is the single configuration document loaded at service start
// and held immutable thereafter (spec.md §5's "loaded once... read-only").
type Manifest struct {
	Hooks map[Kind][]Hook `yaml:"hooks"`
}

// UnmarshalYAML accepts either a bare string (`- "./hooks/pre.sh"`) or a
// mapping (`- command: ./hooks/pre.sh`\n`  timeout: 30`), matching the
// teacher's own "string or detailed struct" hook-config precedent.
func (h *Hook) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&h.Command)
	}

	type plain Hook
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}

	*h = Hook(p)
	if h.RawTimeout > 0 {
		d := time.Duration(h.RawTimeout) * time.Second
		h.Timeout = &d
	}

	return nil
}

// LoadManifest reads and parses the hooks file at path. An empty path, or
// one that does not exist, returns an empty Manifest (hooks disabled) -
// spec.md treats the absence of hook configuration as a valid, non-fatal
// deployment choice.
func LoadManifest(path string) (*Manifest, error) {
	m := &Manifest{Hooks: map[Kind][]Hook{}}

	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, err
	}

	return m, nil
}
