// pkg/storage/models.go
package storage

import "time"

// MasteredViewCount marks a word the user no longer wants reminders for.
// The value is JavaScript's MAX_SAFE_INTEGER; synced stores carry it as-is.
const MasteredViewCount int64 = 1<<53 - 1

type Word struct {
	ID                 string    `json:"id"`
	Word               string    `json:"word"`
	Phonetic           string    `json:"phonetic,omitempty"`
	ImageURL           string    `json:"imageUrl,omitempty"`
	CustomImageURL     string    `json:"customImageUrl,omitempty"`
	IsUsingCustomImage bool      `json:"isUsingCustomImage,omitempty"`
	AudioURL           string    `json:"audioUrl,omitempty"`
	ReviewCount        int       `json:"reviewCount"`
	ViewCount          int64     `json:"viewCount"`
	NextReviewDate     time.Time `json:"nextReviewDate,omitzero"`
	CreatedAt          time.Time `json:"createdAt,omitzero"`
	Topics             []string  `json:"topics,omitempty"`
	Meanings           []Meaning `json:"meanings,omitempty"`
	UserExamples       []string  `json:"userExamples,omitempty"`
}

// Meaning rows are stored independently of their Word; WordID is a lookup
// reference, not an ownership pointer.
type Meaning struct {
	ID              string `json:"id"`
	WordID          string `json:"word_id,omitempty"`
	PartOfSpeech    string `json:"partOfSpeech,omitempty"`
	Definition      string `json:"definition"`
	Example         string `json:"example,omitempty"`
	ExampleImageURL string `json:"exampleImageUrl,omitempty"`
	ExampleAudioURL string `json:"exampleAudioUrl,omitempty"`
}

// Sentence tracks a running score sum; the average is
// TotalScore / PracticeCount.
type Sentence struct {
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	PracticeCount   int       `json:"practiceCount"`
	TotalScore      float64   `json:"totalScore"`
	LastPracticedAt time.Time `json:"lastPracticedAt,omitzero"`
	CreatedAt       time.Time `json:"createdAt,omitzero"`
}

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

type Message struct {
	ID   string `json:"id"`
	Role string `json:"role"` // user or assistant
	Text string `json:"text"`
}

type Conversation struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Category        string     `json:"category,omitempty"`
	Difficulty      Difficulty `json:"difficulty,omitempty"`
	Messages        []Message  `json:"messages,omitempty"`
	PracticeCount   int        `json:"practiceCount"`
	TotalScore      float64    `json:"totalScore"`
	LastPracticedAt time.Time  `json:"lastPracticedAt,omitzero"`
	CreatedAt       time.Time  `json:"createdAt,omitzero"`
}

type Profile struct {
	ID               string    `json:"id,omitempty"`
	Email            string    `json:"email,omitempty"`
	DisplayName      string    `json:"displayName,omitempty"`
	AvatarURL        string    `json:"avatarUrl,omitempty"`
	NativeLanguage   string    `json:"nativeLanguage,omitempty"`
	LearningLanguage string    `json:"learningLanguage,omitempty"`
	CreatedAt        time.Time `json:"createdAt,omitzero"`
}

// PracticeStats is a process-wide aggregate created lazily on first read
// and only removed by a full local wipe.
type PracticeStats struct {
	TotalSessions            int       `json:"totalSessions"`
	CurrentStreak            int       `json:"currentStreak"`
	LongestStreak            int       `json:"longestStreak"`
	TotalWordsPracticed      int       `json:"totalWordsPracticed"`
	TotalSentencesPracticed  int       `json:"totalSentencesPracticed"`
	LastPracticeTime         time.Time `json:"lastPracticeTime,omitzero"`
	LastSentencePracticeTime time.Time `json:"lastSentencePracticeTime,omitzero"`
}

// Snapshot is the full local state exchanged with the sync endpoint.
type Snapshot struct {
	Profile       *Profile       `json:"profile,omitempty"`
	Stats         *PracticeStats `json:"stats,omitempty"`
	Words         []Word         `json:"words"`
	Sentences     []Sentence     `json:"sentences"`
	Conversations []Conversation `json:"conversations"`
}
