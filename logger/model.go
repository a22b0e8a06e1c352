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

package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

type lgr struct {
	e *logrus.Entry
}

// New returns a Logger writing JSON lines to stderr at InfoLevel, the
// default for the `cc-executor` command.
func New() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.InfoLevel)

	return &lgr{e: logrus.NewEntry(l)}
}

func (o *lgr) SetLevel(lvl Level) {
	o.e.Logger.SetLevel(lvl.toLogrus())
}

func (o *lgr) GetLevel() Level {
	return fromLogrus(o.e.Logger.GetLevel())
}

func (o *lgr) WithField(key string, value interface{}) Logger {
	return &lgr{e: o.e.WithField(key, value)}
}

func (o *lgr) WithFields(f Fields) Logger {
	return &lgr{e: o.e.WithFields(logrus.Fields(f))}
}

func (o *lgr) entry(f []Fields) *logrus.Entry {
	if len(f) == 0 {
		return o.e
	}

	e := o.e
	for _, m := range f {
		e = e.WithFields(logrus.Fields(m))
	}

	return e
}

func (o *lgr) Debug(msg string, f ...Fields) {
	o.entry(f).Debug(msg)
}

func (o *lgr) Info(msg string, f ...Fields) {
	o.entry(f).Info(msg)
}

func (o *lgr) Warning(msg string, f ...Fields) {
	o.entry(f).Warning(msg)
}

func (o *lgr) Error(msg string, f ...Fields) {
	o.entry(f).Error(msg)
}

func (o *lgr) Fatal(msg string, f ...Fields) {
	o.entry(f).Fatal(msg)
}
