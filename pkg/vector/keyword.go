// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vector

import (
	"sort"
	"strings"
	"sync"
	"unicode"
)

// keywordIndex is a small in-process inverted index used to produce the
// keyword side of hybrid search. No external keyword/full-text engine is
// part of the dependency pack this runtime draws from, so this one piece
// is intentionally stdlib rather than a wired third-party library.
type keywordIndex struct {
	mu sync.RWMutex

	// postings maps table -> term -> set of row ids containing that term.
	postings map[string]map[string]map[string]struct{}

	// docTerms maps table -> id -> term frequency, used for scoring.
	docTerms map[string]map[string]map[string]int
}

func newKeywordIndex() *keywordIndex {
	return &keywordIndex{
		postings: make(map[string]map[string]map[string]struct{}),
		docTerms: make(map[string]map[string]map[string]int),
	}
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	return fields
}

// index replaces the tokenized content for id within table.
func (k *keywordIndex) index(table, id, content string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.remove(table, id)

	terms := tokenize(content)
	if len(terms) == 0 {
		return
	}

	if k.postings[table] == nil {
		k.postings[table] = make(map[string]map[string]struct{})
	}
	if k.docTerms[table] == nil {
		k.docTerms[table] = make(map[string]map[string]int)
	}

	freq := make(map[string]int, len(terms))
	for _, term := range terms {
		freq[term]++
		if k.postings[table][term] == nil {
			k.postings[table][term] = make(map[string]struct{})
		}
		k.postings[table][term][id] = struct{}{}
	}
	k.docTerms[table][id] = freq
}

// remove deletes id's postings within table. Caller must hold k.mu.
func (k *keywordIndex) remove(table, id string) {
	freq, ok := k.docTerms[table][id]
	if !ok {
		return
	}
	for term := range freq {
		if ids, ok := k.postings[table][term]; ok {
			delete(ids, id)
			if len(ids) == 0 {
				delete(k.postings[table], term)
			}
		}
	}
	delete(k.docTerms[table], id)
}

// Delete removes id from table's keyword index.
func (k *keywordIndex) Delete(table, id string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.remove(table, id)
}

// DropTable clears all keyword postings for table.
func (k *keywordIndex) DropTable(table string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.postings, table)
	delete(k.docTerms, table)
}

// keywordHit is one ranked keyword match.
type keywordHit struct {
	ID    string
	Score float64
}

// search scores every document containing at least one of keywords by a
// simple summed-term-frequency measure and returns them ranked descending.
func (k *keywordIndex) search(table string, keywords []string, limit int) []keywordHit {
	k.mu.RLock()
	defer k.mu.RUnlock()

	scores := make(map[string]float64)
	for _, kw := range keywords {
		for _, term := range tokenize(kw) {
			ids, ok := k.postings[table][term]
			if !ok {
				continue
			}
			for id := range ids {
				scores[id] += float64(k.docTerms[table][id][term])
			}
		}
	}

	hits := make([]keywordHit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, keywordHit{ID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
