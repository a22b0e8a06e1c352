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

package hook

import (
	"encoding/json"
	"time"

	"github.com/nutsdb/nutsdb"

	"github.com/nabbar/cc-executor/logger"
)

const (
	bucketHooks = "hooks"
	recentKey   = "recent"
)

// Execution is one recorded hook run, kept in the `hooks:recent`
// namespace spec.md §6's persisted-state layout names but does not
// itself define an access path for - the read accessor here
// (RecentStore.List) is this repo's supplement, used by the `hook_status`
// RPC (SPEC_FULL.md §C).
type Execution struct {
	Kind      Kind      `json:"kind"`
	Command   string    `json:"command"`
	CommandID string    `json:"command_id"`
	ExitCode  int       `json:"exit_code"`
	TimedOut  bool      `json:"timed_out"`
	At        time.Time `json:"at"`
}

// RecentStore persists a capped list of recent hook Executions in the
// same nutsdb database the Timing Oracle uses. A nil db disables
// persistence without affecting hook execution itself.
type RecentStore struct {
	log logger.Logger
	db  *nutsdb.DB
	cap int
}

func NewRecentStore(log logger.Logger, db *nutsdb.DB, cap int) *RecentStore {
	if cap <= 0 {
		cap = 50
	}
	return &RecentStore{log: log.WithField("component", "hook.recent"), db: db, cap: cap}
}

func (s *RecentStore) Append(e Execution) {
	if s == nil || s.db == nil {
		return
	}

	err := s.db.Update(func(tx *nutsdb.Tx) error {
		var execs []Execution

		if ent, err := tx.Get(bucketHooks, []byte(recentKey)); err == nil {
			_ = json.Unmarshal(ent.Value, &execs)
		}

		execs = append(execs, e)
		if len(execs) > s.cap {
			execs = execs[len(execs)-s.cap:]
		}

		v, err := json.Marshal(execs)
		if err != nil {
			return err
		}

		return tx.Put(bucketHooks, []byte(recentKey), v, 0)
	})

	if err != nil {
		s.log.Debug("hook recent-execution write failed", logger.Fields{"error": err})
	}
}

func (s *RecentStore) List() []Execution {
	if s == nil || s.db == nil {
		return nil
	}

	var execs []Execution

	err := s.db.View(func(tx *nutsdb.Tx) error {
		ent, err := tx.Get(bucketHooks, []byte(recentKey))
		if err != nil {
			return err
		}
		return json.Unmarshal(ent.Value, &execs)
	})

	if err != nil {
		return nil
	}

	return execs
}
