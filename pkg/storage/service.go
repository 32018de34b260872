// Package storage maps the vocabulary tables onto the flat key-value
// namespace. Every row lives at <prefix><id>; a table scan is a prefix
// filter over all keys, and word/meaning joins happen application-side.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vocadrill/vocadrill/pkg/kvstore"
	"github.com/vocadrill/vocadrill/pkg/logger"
)

const (
	wordPrefix         = "word_"
	meaningPrefix      = "meaning_"
	sentencePrefix     = "sentence_"
	conversationPrefix = "conversation_"
	profileKey         = "profile"
	statsKey           = "practice_stats"
)

var tablePrefixes = []string{wordPrefix, meaningPrefix, sentencePrefix, conversationPrefix}

// Service is the relational-emulation layer. Reads degrade softly: corrupt
// rows are dropped and logged, store failures yield empty results. Writes
// return their errors.
//
// The RWMutex serializes ReplaceAll and ClearAll against everything else so
// no reader can observe a partially repopulated table. Individual
// operations take the read lock; they are not protected from each other,
// matching the single-user, single-writer assumption of the original app.
type Service struct {
	store kvstore.Store
	mu    sync.RWMutex
}

func NewService(store kvstore.Store) *Service {
	return &Service{store: store}
}

func wordKey(id string) string         { return wordPrefix + id }
func meaningKey(id string) string      { return meaningPrefix + id }
func sentenceKey(id string) string     { return sentencePrefix + id }
func conversationKey(id string) string { return conversationPrefix + id }

// Words returns all words, newest first, each joined with its meaning rows.
func (s *Service) Words(ctx context.Context) []Word {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadWords(ctx)
}

func (s *Service) WordByID(ctx context.Context, id string) *Word {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadWordByID(ctx, id)
}

func (s *Service) Sentences(ctx context.Context) []Sentence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadSentences(ctx)
}

func (s *Service) SentenceByID(ctx context.Context, id string) *Sentence {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sentence Sentence
	if !s.loadRow(ctx, sentenceKey(id), &sentence) {
		return nil
	}
	return &sentence
}

func (s *Service) Conversations(ctx context.Context) []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadConversations(ctx)
}

func (s *Service) ConversationByID(ctx context.Context, id string) *Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conversation Conversation
	if !s.loadRow(ctx, conversationKey(id), &conversation) {
		return nil
	}
	return &conversation
}

func (s *Service) Profile(ctx context.Context) *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var profile Profile
	if !s.loadRow(ctx, profileKey, &profile) {
		return nil
	}
	return &profile
}

// Stats returns the practice aggregate, creating the row on first read.
// Creation happens only when the row is truly absent; a store failure or a
// corrupt row degrades to a zero value without writing anything, so the
// persisted aggregate is never clobbered by a transient read problem.
func (s *Service) Stats(ctx context.Context) *PracticeStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats PracticeStats
	value, err := s.store.Get(ctx, statsKey)
	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(value), &stats); err != nil {
			logger.Warn("corrupt practice stats row", "error", err)
			return &PracticeStats{}
		}
		return &stats
	case errors.Is(err, kvstore.ErrKeyNotFound):
		stats = PracticeStats{}
		if err := s.setRow(ctx, statsKey, &stats); err != nil {
			logger.Warn("failed to persist initial practice stats", "error", err)
		}
		return &stats
	default:
		logger.Warn("failed to read practice stats", "error", err)
		return &PracticeStats{}
	}
}

// SaveWord persists the word and its meanings as independent rows in one
// batch, assigning an id and creation time when absent. Meaning rows that
// belonged to the word but are gone from it are removed afterwards so no
// orphans accumulate.
func (s *Service) SaveWord(ctx context.Context, word *Word) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if word == nil {
		return fmt.Errorf("storage: nil word")
	}
	if word.ID == "" {
		word.ID = uuid.NewString()
	}
	if word.CreatedAt.IsZero() {
		word.CreatedAt = time.Now().UTC()
	}

	kept := make(map[string]bool, len(word.Meanings))
	pairs := make([]kvstore.Pair, 0, len(word.Meanings)+1)
	for i := range word.Meanings {
		meaning := &word.Meanings[i]
		if meaning.ID == "" {
			meaning.ID = uuid.NewString()
		}
		meaning.WordID = word.ID
		kept[meaning.ID] = true
		value, err := json.Marshal(meaning)
		if err != nil {
			return fmt.Errorf("storage: encoding meaning %s: %w", meaning.ID, err)
		}
		pairs = append(pairs, kvstore.Pair{Key: meaningKey(meaning.ID), Value: string(value)})
	}

	// The word row does not carry its meanings; they are joined on read.
	row := *word
	row.Meanings = nil
	value, err := json.Marshal(&row)
	if err != nil {
		return fmt.Errorf("storage: encoding word %s: %w", word.ID, err)
	}
	pairs = append(pairs, kvstore.Pair{Key: wordKey(word.ID), Value: string(value)})

	stale := s.staleMeaningKeys(ctx, word.ID, kept)
	if err := s.store.MultiSet(ctx, pairs); err != nil {
		return fmt.Errorf("storage: saving word %s: %w", word.ID, err)
	}
	if len(stale) > 0 {
		if err := s.store.MultiRemove(ctx, stale); err != nil {
			return fmt.Errorf("storage: pruning meanings of word %s: %w", word.ID, err)
		}
	}
	return nil
}

func (s *Service) SaveSentence(ctx context.Context, sentence *Sentence) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sentence == nil {
		return fmt.Errorf("storage: nil sentence")
	}
	if sentence.ID == "" {
		sentence.ID = uuid.NewString()
	}
	if sentence.CreatedAt.IsZero() {
		sentence.CreatedAt = time.Now().UTC()
	}
	return s.setRow(ctx, sentenceKey(sentence.ID), sentence)
}

func (s *Service) SaveConversation(ctx context.Context, conversation *Conversation) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if conversation == nil {
		return fmt.Errorf("storage: nil conversation")
	}
	if conversation.ID == "" {
		conversation.ID = uuid.NewString()
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now().UTC()
	}
	for i := range conversation.Messages {
		if conversation.Messages[i].ID == "" {
			conversation.Messages[i].ID = uuid.NewString()
		}
	}
	return s.setRow(ctx, conversationKey(conversation.ID), conversation)
}

func (s *Service) SaveProfile(ctx context.Context, profile *Profile) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if profile == nil {
		return fmt.Errorf("storage: nil profile")
	}
	return s.setRow(ctx, profileKey, profile)
}

func (s *Service) SaveStats(ctx context.Context, stats *PracticeStats) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if stats == nil {
		return fmt.Errorf("storage: nil stats")
	}
	return s.setRow(ctx, statsKey, stats)
}

// DeleteWord removes the word row and every meaning row referencing it in
// a single batch.
func (s *Service) DeleteWord(ctx context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := []string{wordKey(id)}
	for _, meaning := range s.loadMeanings(ctx) {
		if meaning.WordID == id {
			keys = append(keys, meaningKey(meaning.ID))
		}
	}
	if err := s.store.MultiRemove(ctx, keys); err != nil {
		return fmt.Errorf("storage: deleting word %s: %w", id, err)
	}
	return nil
}

func (s *Service) DeleteSentence(ctx context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Remove(ctx, sentenceKey(id))
}

func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Remove(ctx, conversationKey(id))
}

// ClearAll wipes every row this layer owns. Deletion is scoped to the known
// prefixes and singleton keys; foreign keys sharing the store survive.
func (s *Service) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.store.AllKeys(ctx)
	if err != nil {
		return fmt.Errorf("storage: listing keys: %w", err)
	}
	owned := make([]string, 0, len(keys))
	for _, key := range keys {
		if s.ownedKey(key) {
			owned = append(owned, key)
		}
	}
	if err := s.store.MultiRemove(ctx, owned); err != nil {
		return fmt.Errorf("storage: clearing tables: %w", err)
	}
	return nil
}

// Snapshot gathers the full local state for the sync payload.
func (s *Service) Snapshot(ctx context.Context) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Words:         s.loadWords(ctx),
		Sentences:     s.loadSentences(ctx),
		Conversations: s.loadConversations(ctx),
	}
	var profile Profile
	if s.loadRow(ctx, profileKey, &profile) {
		snap.Profile = &profile
	}
	var stats PracticeStats
	if s.loadRow(ctx, statsKey, &stats) {
		snap.Stats = &stats
	}
	return snap
}

// ReplaceAll clears each entity table and repopulates it from the snapshot.
// It holds the write lock for the whole sequence, so concurrent readers see
// either the old state or the new one, never a half-cleared table. This is
// a full overwrite, not a field-level merge: local rows the snapshot does
// not carry are gone afterwards.
func (s *Service) ReplaceAll(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap == nil {
		return fmt.Errorf("storage: nil snapshot")
	}

	keys, err := s.store.AllKeys(ctx)
	if err != nil {
		return fmt.Errorf("storage: listing keys: %w", err)
	}
	old := make([]string, 0, len(keys))
	for _, key := range keys {
		for _, prefix := range tablePrefixes {
			if strings.HasPrefix(key, prefix) {
				old = append(old, key)
				break
			}
		}
	}

	pairs := make([]kvstore.Pair, 0, len(snap.Words)+len(snap.Sentences)+len(snap.Conversations)+2)
	for i := range snap.Words {
		word := snap.Words[i]
		if word.ID == "" {
			word.ID = uuid.NewString()
		}
		for j := range word.Meanings {
			meaning := word.Meanings[j]
			if meaning.ID == "" {
				meaning.ID = uuid.NewString()
			}
			meaning.WordID = word.ID
			value, err := json.Marshal(&meaning)
			if err != nil {
				return fmt.Errorf("storage: encoding meaning %s: %w", meaning.ID, err)
			}
			pairs = append(pairs, kvstore.Pair{Key: meaningKey(meaning.ID), Value: string(value)})
		}
		word.Meanings = nil
		value, err := json.Marshal(&word)
		if err != nil {
			return fmt.Errorf("storage: encoding word %s: %w", word.ID, err)
		}
		pairs = append(pairs, kvstore.Pair{Key: wordKey(word.ID), Value: string(value)})
	}
	for i := range snap.Sentences {
		sentence := snap.Sentences[i]
		if sentence.ID == "" {
			sentence.ID = uuid.NewString()
		}
		value, err := json.Marshal(&sentence)
		if err != nil {
			return fmt.Errorf("storage: encoding sentence %s: %w", sentence.ID, err)
		}
		pairs = append(pairs, kvstore.Pair{Key: sentenceKey(sentence.ID), Value: string(value)})
	}
	for i := range snap.Conversations {
		conversation := snap.Conversations[i]
		if conversation.ID == "" {
			conversation.ID = uuid.NewString()
		}
		value, err := json.Marshal(&conversation)
		if err != nil {
			return fmt.Errorf("storage: encoding conversation %s: %w", conversation.ID, err)
		}
		pairs = append(pairs, kvstore.Pair{Key: conversationKey(conversation.ID), Value: string(value)})
	}
	if snap.Profile != nil {
		value, err := json.Marshal(snap.Profile)
		if err != nil {
			return fmt.Errorf("storage: encoding profile: %w", err)
		}
		pairs = append(pairs, kvstore.Pair{Key: profileKey, Value: string(value)})
	}
	if snap.Stats != nil {
		value, err := json.Marshal(snap.Stats)
		if err != nil {
			return fmt.Errorf("storage: encoding stats: %w", err)
		}
		pairs = append(pairs, kvstore.Pair{Key: statsKey, Value: string(value)})
	}

	if err := s.store.MultiRemove(ctx, old); err != nil {
		return fmt.Errorf("storage: clearing tables: %w", err)
	}
	if err := s.store.MultiSet(ctx, pairs); err != nil {
		return fmt.Errorf("storage: repopulating tables: %w", err)
	}
	return nil
}

func (s *Service) ownedKey(key string) bool {
	if key == profileKey || key == statsKey {
		return true
	}
	for _, prefix := range tablePrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// loadRow reads a single row into out. Missing keys, store failures and
// corrupt rows all report false; only the latter two are logged.
func (s *Service) loadRow(ctx context.Context, key string, out any) bool {
	value, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrKeyNotFound) {
			logger.Warn("failed to read row", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		logger.Warn("dropping corrupt row", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Service) setRow(ctx context.Context, key string, row any) error {
	value, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("storage: encoding %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, string(value)); err != nil {
		return fmt.Errorf("storage: writing %s: %w", key, err)
	}
	return nil
}

// rawRows scans the namespace for one table's rows.
func (s *Service) rawRows(ctx context.Context, prefix string) []string {
	keys, err := s.store.AllKeys(ctx)
	if err != nil {
		logger.Warn("failed to list keys", "prefix", prefix, "error", err)
		return nil
	}
	matched := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, key)
		}
	}
	values, err := s.store.MultiGet(ctx, matched)
	if err != nil {
		logger.Warn("failed to read rows", "prefix", prefix, "error", err)
		return nil
	}
	rows := make([]string, 0, len(matched))
	for _, key := range matched {
		if value, ok := values[key]; ok {
			rows = append(rows, value)
		}
	}
	return rows
}

func (s *Service) loadWords(ctx context.Context) []Word {
	meanings := s.loadMeanings(ctx)
	rows := s.rawRows(ctx, wordPrefix)
	words := make([]Word, 0, len(rows))
	for _, row := range rows {
		var word Word
		if err := json.Unmarshal([]byte(row), &word); err != nil {
			logger.Warn("dropping corrupt word row", "error", err)
			continue
		}
		word.Meanings = meaningsOf(meanings, word.ID)
		words = append(words, word)
	}
	sort.SliceStable(words, func(i, j int) bool {
		return words[i].CreatedAt.After(words[j].CreatedAt)
	})
	return words
}

func (s *Service) loadWordByID(ctx context.Context, id string) *Word {
	var word Word
	if !s.loadRow(ctx, wordKey(id), &word) {
		return nil
	}
	word.Meanings = meaningsOf(s.loadMeanings(ctx), id)
	return &word
}

func (s *Service) loadMeanings(ctx context.Context) []Meaning {
	rows := s.rawRows(ctx, meaningPrefix)
	meanings := make([]Meaning, 0, len(rows))
	for _, row := range rows {
		var meaning Meaning
		if err := json.Unmarshal([]byte(row), &meaning); err != nil {
			logger.Warn("dropping corrupt meaning row", "error", err)
			continue
		}
		meanings = append(meanings, meaning)
	}
	return meanings
}

func (s *Service) loadSentences(ctx context.Context) []Sentence {
	rows := s.rawRows(ctx, sentencePrefix)
	sentences := make([]Sentence, 0, len(rows))
	for _, row := range rows {
		var sentence Sentence
		if err := json.Unmarshal([]byte(row), &sentence); err != nil {
			logger.Warn("dropping corrupt sentence row", "error", err)
			continue
		}
		sentences = append(sentences, sentence)
	}
	sort.SliceStable(sentences, func(i, j int) bool {
		return sentences[i].CreatedAt.After(sentences[j].CreatedAt)
	})
	return sentences
}

func (s *Service) loadConversations(ctx context.Context) []Conversation {
	rows := s.rawRows(ctx, conversationPrefix)
	conversations := make([]Conversation, 0, len(rows))
	for _, row := range rows {
		var conversation Conversation
		if err := json.Unmarshal([]byte(row), &conversation); err != nil {
			logger.Warn("dropping corrupt conversation row", "error", err)
			continue
		}
		conversations = append(conversations, conversation)
	}
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt.After(conversations[j].CreatedAt)
	})
	return conversations
}

// staleMeaningKeys finds meaning rows referencing wordID that are absent
// from the kept set. Matching is by the exact word_id field, never a key
// substring, so ids that prefix other ids cannot cross-match.
func (s *Service) staleMeaningKeys(ctx context.Context, wordID string, kept map[string]bool) []string {
	var stale []string
	for _, meaning := range s.loadMeanings(ctx) {
		if meaning.WordID == wordID && !kept[meaning.ID] {
			stale = append(stale, meaningKey(meaning.ID))
		}
	}
	return stale
}

func meaningsOf(meanings []Meaning, wordID string) []Meaning {
	var matched []Meaning
	for _, meaning := range meanings {
		if meaning.WordID == wordID {
			matched = append(matched, meaning)
		}
	}
	return matched
}
