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
	"encoding/json"
	"fmt"

	"github.com/nutsdb/nutsdb"

	"github.com/nabbar/cc-executor/logger"
)

const bucketTiming = "timing"

// Record is one observed duration appended to a (class, complexity)'s
// history, per spec.md §3's Timing Record.
type Record struct {
	Seconds float64 `json:"seconds"`
	Outcome string  `json:"outcome"`
}

// Store persists Timing Records keyed by (class, complexity) in an
// embedded nutsdb database - the teacher's own go.mod dependency, chosen
// as the backing key/value store spec.md §6 calls for. Absence or failure
// of the store must never prevent C2 from returning a value: every method
// here logs and swallows its own errors.
type Store struct {
	log logger.Logger
	db  *nutsdb.DB // nil when the store is disabled/unavailable
	cap int
}

// OpenDB opens (creating if absent) the single nutsdb database this
// process shares between the Timing Oracle's history and the Hook
// Engine's `hooks:recent` bookkeeping (spec.md §6's "Persisted state
// layout": two logical namespaces in one key/value store). An empty dir,
// or any open failure, returns a nil *nutsdb.DB - every caller treats that
// as "store unavailable" and falls back to in-memory defaults.
func OpenDB(log logger.Logger, dir string) *nutsdb.DB {
	if dir == "" {
		return nil
	}

	db, err := nutsdb.Open(nutsdb.DefaultOptions, nutsdb.WithDir(dir))
	if err != nil {
		log.Warning("timing store unavailable, falling back to defaults", logger.Fields{"error": err, "dir": dir})
		return nil
	}

	return db
}

// Open wraps an already-opened (possibly nil) database as a Store.
func Open(log logger.Logger, db *nutsdb.DB, historyCap int) *Store {
	return &Store{log: log.WithField("component", "timing.store"), db: db, cap: historyCap}
}

func key(class Class, complexity Complexity) string {
	return fmt.Sprintf("%s:%s", class, complexity)
}

// History loads the observed-duration sequence for (class, complexity).
// Any store error (including "store disabled") yields an empty slice, not
// an error - the oracle treats that exactly like "no history".
func (s *Store) History(class Class, complexity Complexity) []Record {
	if s.db == nil {
		return nil
	}

	var recs []Record

	err := s.db.View(func(tx *nutsdb.Tx) error {
		e, err := tx.Get(bucketTiming, []byte(key(class, complexity)))
		if err != nil {
			return err
		}
		return json.Unmarshal(e.Value, &recs)
	})

	if err != nil {
		s.log.Debug("timing history miss", logger.Fields{"error": err, "key": key(class, complexity)})
		return nil
	}

	return recs
}

// Record appends one observation to (class, complexity)'s history,
// trimming to the configured cap (keeping the most recent entries). A
// store error here is logged and swallowed: spec.md §4.2 says the oracle
// "keeps running on defaults" when the store is unreachable.
func (s *Store) Record(class Class, complexity Complexity, seconds float64, outcome string) {
	if s.db == nil {
		return
	}

	k := []byte(key(class, complexity))

	err := s.db.Update(func(tx *nutsdb.Tx) error {
		var recs []Record

		if e, err := tx.Get(bucketTiming, k); err == nil {
			_ = json.Unmarshal(e.Value, &recs)
		}

		recs = append(recs, Record{Seconds: seconds, Outcome: outcome})
		if len(recs) > s.cap {
			recs = recs[len(recs)-s.cap:]
		}

		v, err := json.Marshal(recs)
		if err != nil {
			return err
		}

		return tx.Put(bucketTiming, k, v, 0)
	})

	if err != nil {
		s.log.Warning("timing record write failed", logger.Fields{"error": err})
	}
}
