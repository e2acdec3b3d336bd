package http

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"

	"talent-exam-service/internal/app"
	"talent-exam-service/internal/domain"
)

// Handler wires the exam use cases into the REST surface.
type Handler struct {
	registration *app.RegistrationService
	eligibility  *app.EligibilityService
	exams        *app.ExamService
	payments     *app.PaymentService
	questions    app.QuestionRepository
	board        *app.LeaderboardHub
}

func NewHandler(
	registration *app.RegistrationService,
	eligibility *app.EligibilityService,
	exams *app.ExamService,
	payments *app.PaymentService,
	questions app.QuestionRepository,
	board *app.LeaderboardHub,
) *Handler {
	return &Handler{
		registration: registration,
		eligibility:  eligibility,
		exams:        exams,
		payments:     payments,
		questions:    questions,
		board:        board,
	}
}

// Register mounts all routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /contests/{id}/slots/{slotId}/register", h.register)
	mux.HandleFunc("GET /contests/{id}/slots", h.slotCounts)
	mux.HandleFunc("GET /contests/{id}/questions", h.listQuestions)
	mux.HandleFunc("GET /contests/{id}/leaderboard", h.leaderboard)
	mux.HandleFunc("GET /bookings/{id}/eligibility", h.checkEligibility)
	mux.HandleFunc("POST /bookings/{id}/submit", h.submit)
	mux.HandleFunc("GET /bookings/{id}/status", h.examStatus)
	mux.HandleFunc("POST /bookings/{id}/payment/order", h.createOrder)
	mux.HandleFunc("POST /bookings/{id}/payment/verify", h.verifyPayment)
	mux.HandleFunc("POST /bookings/{id}/result-token", h.issueResultToken)
	mux.HandleFunc("GET /bookings/{id}/result", h.result)
}

type registerRequest struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	ExamDate string `json:"examDate"`
}

type registerResponse struct {
	Message string         `json:"message"`
	Booking domain.Booking `json:"booking"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	booking, err := h.registration.Register(r.Context(), app.RegistrationRequest{
		ContestID: r.PathValue("id"),
		SlotID:    r.PathValue("slotId"),
		UserID:    req.UserID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		ExamDate:  req.ExamDate,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{Message: "Registration successful", Booking: booking})
}

func (h *Handler) slotCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.registration.SlotCounts(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slotCounts": counts})
}

// questionView is a question as served to exam takers: localized, with the
// answer key stripped.
type questionView struct {
	ID      string   `json:"id"`
	Text    string   `json:"questionText"`
	Options []string `json:"options,omitempty"`
	Type    string   `json:"questionType"`
	Marks   float64  `json:"marks"`
}

func (h *Handler) listQuestions(w http.ResponseWriter, r *http.Request) {
	slotID := r.URL.Query().Get("slotId")
	if slotID == "" {
		writeError(w, http.StatusBadRequest, "slotId is required")
		return
	}
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		lang = "en"
	}
	questions, err := h.questions.GetQuestions(r.Context(), r.PathValue("id"), slotID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if len(questions) == 0 {
		writeError(w, http.StatusNotFound, "no questions found")
		return
	}
	views := make([]questionView, 0, len(questions))
	for _, q := range questions {
		view := questionView{
			ID:    q.ID,
			Text:  domain.TextIn(q.Text, lang),
			Type:  string(q.Type),
			Marks: q.Marks,
		}
		for _, opt := range q.Options {
			view.Options = append(view.Options, domain.TextIn(opt.Text, lang))
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"totalQuestions": len(views), "questions": views})
}

func (h *Handler) checkEligibility(w http.ResponseWriter, r *http.Request) {
	eligibility, err := h.eligibility.Check(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eligibility)
}

type submitRequest struct {
	Answers []domain.AnswerSubmission `json:"answers"`
}

type submitResponse struct {
	Message          string  `json:"message"`
	AlreadySubmitted bool    `json:"alreadySubmitted"`
	TotalScore       float64 `json:"totalScore"`
	Attempted        int     `json:"attemptedCount"`
	Skipped          int     `json:"skippedCount"`
	Correct          int     `json:"correctCount"`
	Wrong            int     `json:"wrongCount"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Answers) == 0 {
		writeError(w, http.StatusBadRequest, "answers are required")
		return
	}
	sub, already, err := h.exams.Submit(r.Context(), r.PathValue("id"), req.Answers)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	msg := "Exam submitted successfully"
	if already {
		msg = "Exam already submitted"
	}
	// AlreadySubmitted is a 200, not an error: the retry gets the first
	// successful result back.
	writeJSON(w, http.StatusOK, submitResponse{
		Message:          msg,
		AlreadySubmitted: already,
		TotalScore:       roundScore(sub.TotalScore),
		Attempted:        sub.Attempted,
		Skipped:          sub.Skipped,
		Correct:          sub.Correct,
		Wrong:            sub.Wrong,
	})
}

func (h *Handler) examStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.exams.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.payments.CreateOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type verifyRequest struct {
	OrderID string `json:"orderId"`
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "orderId is required")
		return
	}
	booking, err := h.payments.Confirm(r.Context(), r.PathValue("id"), req.OrderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Payment info updated", "booking": booking})
}

func (h *Handler) issueResultToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.exams.IssueResultToken(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) result(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	sub, err := h.exams.Result(r.Context(), r.PathValue("id"), token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	sub.TotalScore = roundScore(sub.TotalScore)
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	slotID := r.URL.Query().Get("slotId")
	if slotID == "" {
		writeError(w, http.StatusBadRequest, "slotId is required")
		return
	}
	writeJSON(w, http.StatusOK, h.board.Snapshot(r.PathValue("id"), slotID))
}

// roundScore rounds for display only; stores keep the raw accumulator.
func roundScore(score float64) float64 {
	return math.Round(score*100) / 100
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Status: "error", Message: message})
}

// writeDomainError maps sentinel errors onto the HTTP taxonomy. Capacity and
// duplicate rejections are common, expected outcomes and come back as plain
// 409 messages, not stack traces.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidExamDate), errors.Is(err, domain.ErrInvalidSlot):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrContestNotFound), errors.Is(err, domain.ErrBookingNotFound), errors.Is(err, domain.ErrSubmissionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSlotFull), errors.Is(err, domain.ErrDuplicateRegistration), errors.Is(err, domain.ErrContestInactive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNoQuestionsResolved):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrTokenInvalid):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrPaymentUpstream):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
	}
}
