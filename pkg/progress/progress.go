// Package progress updates spaced-repetition scheduling fields and the
// global practice statistics after each practice interaction.
package progress

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/vocadrill/vocadrill/pkg/storage"
)

var ErrNotFound = errors.New("progress: not found")

type Kind string

const (
	KindWord     Kind = "word"
	KindSentence Kind = "sentence"
)

// maxReviewExponent caps the exponential backoff; 1<<16 days is far beyond
// any usable review horizon and keeps the date arithmetic in range.
const maxReviewExponent = 16

type Tracker struct {
	svc *storage.Service
	now func() time.Time
	rng *rand.Rand
}

func NewTracker(svc *storage.Service) *Tracker {
	return &Tracker{
		svc: svc,
		now: time.Now,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// MarkReviewed applies the review outcome to a word's scheduling fields.
// Remembered words back off exponentially (2^reviewCount days, one day at
// stage zero); forgotten words come back tomorrow and restart the ladder.
func (t *Tracker) MarkReviewed(ctx context.Context, id string, remembered bool) error {
	word := t.svc.WordByID(ctx, id)
	if word == nil {
		return fmt.Errorf("progress: word %s: %w", id, ErrNotFound)
	}

	today := startOfDay(t.now().UTC())
	if remembered {
		word.NextReviewDate = today.AddDate(0, 0, intervalDays(word.ReviewCount))
		word.ReviewCount++
		word.ViewCount = clampViews(word.ViewCount + 2)
	} else {
		word.NextReviewDate = today.AddDate(0, 0, 1)
		word.ReviewCount = 0
		word.ViewCount = clampViews(word.ViewCount - 2)
	}
	return t.svc.SaveWord(ctx, word)
}

// MarkMastered stops reminders for the word entirely.
func (t *Tracker) MarkMastered(ctx context.Context, id string) error {
	word := t.svc.WordByID(ctx, id)
	if word == nil {
		return fmt.Errorf("progress: word %s: %w", id, ErrNotFound)
	}
	word.ViewCount = storage.MasteredViewCount
	return t.svc.SaveWord(ctx, word)
}

// LeastViewedWords returns up to limit unmastered words, least viewed
// first. Ties keep the newest-first order of the underlying listing.
func (t *Tracker) LeastViewedWords(ctx context.Context, limit int) []storage.Word {
	if limit <= 0 {
		return nil
	}
	var words []storage.Word
	for _, word := range t.svc.Words(ctx) {
		if word.ViewCount == storage.MasteredViewCount {
			continue
		}
		words = append(words, word)
	}
	sort.SliceStable(words, func(i, j int) bool {
		return words[i].ViewCount < words[j].ViewCount
	})
	if len(words) > limit {
		words = words[:limit]
	}
	return words
}

// PracticeWords selects up to limit words for a session: everything due
// today takes priority, most overdue first when the due set overflows the
// limit, the rest is backfilled newest first, and the final set is
// shuffled so the session order is not predictable.
func (t *Tracker) PracticeWords(ctx context.Context, limit int) []storage.Word {
	if limit <= 0 {
		return nil
	}
	tomorrow := startOfDay(t.now().UTC()).AddDate(0, 0, 1)

	var due, rest []storage.Word
	for _, word := range t.svc.Words(ctx) {
		if !word.NextReviewDate.IsZero() && word.NextReviewDate.Before(tomorrow) {
			due = append(due, word)
		} else {
			rest = append(rest, word)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].NextReviewDate.Before(due[j].NextReviewDate)
	})
	selected := due
	if len(selected) > limit {
		selected = selected[:limit]
	}
	for _, word := range rest {
		if len(selected) >= limit {
			break
		}
		selected = append(selected, word)
	}

	t.rng.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	return selected
}

// LowestScoreSentences returns up to limit sentences ordered by average
// score ascending. Never-practiced sentences count as average zero and so
// surface first.
func (t *Tracker) LowestScoreSentences(ctx context.Context, limit int) []storage.Sentence {
	if limit <= 0 {
		return nil
	}
	sentences := t.svc.Sentences(ctx)
	sort.SliceStable(sentences, func(i, j int) bool {
		return averageScore(sentences[i]) < averageScore(sentences[j])
	})
	if len(sentences) > limit {
		sentences = sentences[:limit]
	}
	return sentences
}

// RecordSentencePractice folds one scored attempt into the sentence's
// running sum.
func (t *Tracker) RecordSentencePractice(ctx context.Context, id string, score float64) error {
	sentence := t.svc.SentenceByID(ctx, id)
	if sentence == nil {
		return fmt.Errorf("progress: sentence %s: %w", id, ErrNotFound)
	}
	sentence.PracticeCount++
	sentence.TotalScore += score
	sentence.LastPracticedAt = t.now().UTC()
	return t.svc.SaveSentence(ctx, sentence)
}

func (t *Tracker) RecordConversationPractice(ctx context.Context, id string, score float64) error {
	conversation := t.svc.ConversationByID(ctx, id)
	if conversation == nil {
		return fmt.Errorf("progress: conversation %s: %w", id, ErrNotFound)
	}
	conversation.PracticeCount++
	conversation.TotalScore += score
	conversation.LastPracticedAt = t.now().UTC()
	return t.svc.SaveConversation(ctx, conversation)
}

// UpdateStats records a completed practice session. Streaks move by
// calendar day, measured against the most recent practice of either kind:
// same day leaves the streak alone, the next day extends it, a longer gap
// resets it to one.
func (t *Tracker) UpdateStats(ctx context.Context, count int, kind Kind) error {
	stats := t.svc.Stats(ctx)
	now := t.now().UTC()

	last := stats.LastPracticeTime
	if stats.LastSentencePracticeTime.After(last) {
		last = stats.LastSentencePracticeTime
	}

	switch {
	case last.IsZero():
		stats.CurrentStreak = 1
	default:
		switch gap := calendarDays(last, now); {
		case gap == 1:
			stats.CurrentStreak++
		case gap > 1:
			stats.CurrentStreak = 1
		}
	}
	if stats.CurrentStreak > stats.LongestStreak {
		stats.LongestStreak = stats.CurrentStreak
	}

	stats.TotalSessions++
	if kind == KindSentence {
		stats.TotalSentencesPracticed += count
		stats.LastSentencePracticeTime = now
	} else {
		stats.TotalWordsPracticed += count
		stats.LastPracticeTime = now
	}
	return t.svc.SaveStats(ctx, stats)
}

func intervalDays(reviewCount int) int {
	if reviewCount <= 0 {
		return 1
	}
	if reviewCount > maxReviewExponent {
		reviewCount = maxReviewExponent
	}
	return 1 << reviewCount
}

func clampViews(views int64) int64 {
	if views < 0 {
		return 0
	}
	return views
}

func averageScore(sentence storage.Sentence) float64 {
	if sentence.PracticeCount == 0 {
		return 0
	}
	return sentence.TotalScore / float64(sentence.PracticeCount)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func calendarDays(from, to time.Time) int {
	return int(startOfDay(to.UTC()).Sub(startOfDay(from.UTC())).Hours() / 24)
}
