package domain

import "time"

// QuestionType distinguishes how an answer is checked.
type QuestionType string

const (
	QuestionMCQ     QuestionType = "mcq"
	QuestionText    QuestionType = "text"
	QuestionNumeric QuestionType = "numeric"
)

// BookingStatus tracks the payment lifecycle of a booking.
type BookingStatus string

const (
	StatusPending BookingStatus = "Pending"
	StatusPaid    BookingStatus = "Paid"
	StatusFailed  BookingStatus = "Failed"
)

// Contest is a talent-search contest with per-slot seat capacity.
type Contest struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	EntryFee    float64   `json:"entryFee"`
	MaxPerSlot  int       `json:"maxParticipantsPerSlot"`
	TotalSlots  int       `json:"totalSlots"`
	DurationMin int       `json:"duration"`
	IsActive    bool      `json:"isActive"`
}

// Booking is one user's reservation of one seat in one slot of one contest.
type Booking struct {
	ID             string        `json:"id"`
	ContestID      string        `json:"contestId"`
	SlotID         string        `json:"slotId"`
	UserID         string        `json:"userId,omitempty"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	Phone          string        `json:"phone"`
	ExamDate       string        `json:"examDate"` // civil date YYYY-MM-DD in IST
	RegistrationAt time.Time     `json:"registrationAt"`
	ExamTaken      bool          `json:"examTaken"`
	ExamTakenAt    *time.Time    `json:"examTakenAt,omitempty"`
	Score          float64       `json:"score"`
	Password       string        `json:"-"`
	OrderID        string        `json:"orderId,omitempty"`
	IsPaid         bool          `json:"isPaid"`
	Status         BookingStatus `json:"status"`
}

// Option is a possible answer for an MCQ question, with per-language text.
type Option struct {
	Text    map[string]string `json:"optionText"`
	Correct bool              `json:"isCorrect"`
}

// Question holds the immutable answer key for one exam question.
type Question struct {
	ID            string            `json:"id"`
	ContestID     string            `json:"contestId"`
	SlotID        string            `json:"slotId"`
	Text          map[string]string `json:"questionText"`
	Options       []Option          `json:"options,omitempty"`
	Type          QuestionType      `json:"questionType"`
	CorrectAnswer string            `json:"correctAnswer,omitempty"`
	Marks         float64           `json:"marks"`
}

// TextIn resolves localized text, falling back to English.
func TextIn(text map[string]string, lang string) string {
	if v, ok := text[lang]; ok && v != "" {
		return v
	}
	return text["en"]
}

// AnswerSubmission is the untrusted per-question payload from a client.
type AnswerSubmission struct {
	QuestionID     string `json:"questionId"`
	SelectedOption *int   `json:"selectedOptionIndex"`
	TextAnswer     string `json:"textAnswer,omitempty"`
}

// Answer is a scored line item; correctness is always derived server-side.
type Answer struct {
	QuestionID     string `json:"questionId"`
	SelectedOption *int   `json:"selectedOptionIndex"`
	TextAnswer     string `json:"textAnswer,omitempty"`
	Correct        bool   `json:"isCorrect"`
	Skipped        bool   `json:"skipped"`
}

// Submission is the exactly-once scoring record for a booking.
type Submission struct {
	BookingID   string    `json:"bookingId"`
	ContestID   string    `json:"contestId"`
	SlotID      string    `json:"slotId"`
	Answers     []Answer  `json:"answers"`
	TotalScore  float64   `json:"totalScore"`
	Attempted   int       `json:"attemptedCount"`
	Skipped     int       `json:"skippedCount"`
	Correct     int       `json:"correctCount"`
	Wrong       int       `json:"wrongCount"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// LeaderboardEntry is a snapshot-friendly view of a scored booking.
type LeaderboardEntry struct {
	BookingID   string    `json:"bookingId"`
	Name        string    `json:"name"`
	Score       float64   `json:"score"`
	ExamTakenAt time.Time `json:"examTakenAt"`
}

// Leaderboard captures the ordered scoreboard for one contest slot.
type Leaderboard struct {
	ContestID string             `json:"contestId"`
	SlotID    string             `json:"slotId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
