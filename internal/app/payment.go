package app

import (
	"context"
	"fmt"

	"talent-exam-service/internal/domain"
)

// PaymentOrder is the gateway's handle for a created order.
type PaymentOrder struct {
	OrderID      string `json:"orderId"`
	SessionToken string `json:"paymentSessionId"`
}

// PaymentGateway is the external payment collaborator. It is called outside
// the admission-atomicity boundary: confirming a payment only flips booking
// flags and moves seats through the same atomic counter as registration.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount float64, reference string) (PaymentOrder, error)
	VerifyOrder(ctx context.Context, orderID string) (status string, err error)
}

// PaymentService drives the booking payment flow against the gateway.
type PaymentService struct {
	contests ContestStore
	bookings BookingStore
	seats    SeatCounter
	gateway  PaymentGateway
}

func NewPaymentService(contests ContestStore, bookings BookingStore, seats SeatCounter, gateway PaymentGateway) *PaymentService {
	return &PaymentService{contests: contests, bookings: bookings, seats: seats, gateway: gateway}
}

// CreateOrder opens a gateway order for the contest's entry fee and records
// the order ID on the booking. The booking stays Pending until verified. A
// Failed booking may still open an order: it resumes via payment, and Confirm
// decides whether a seat is available for it.
func (s *PaymentService) CreateOrder(ctx context.Context, bookingID string) (PaymentOrder, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return PaymentOrder{}, err
	}
	if booking.IsPaid {
		return PaymentOrder{OrderID: booking.OrderID}, nil
	}
	contest, err := s.contests.GetContest(ctx, booking.ContestID)
	if err != nil {
		return PaymentOrder{}, err
	}

	order, err := s.gateway.CreateOrder(ctx, contest.EntryFee, booking.ID)
	if err != nil {
		return PaymentOrder{}, fmt.Errorf("%w: %v", domain.ErrPaymentUpstream, err)
	}
	if err := s.bookings.SetPayment(ctx, booking.ID, order.OrderID, false, booking.Status); err != nil {
		return PaymentOrder{}, err
	}
	return order, nil
}

// Confirm verifies the order with the gateway and settles the booking.
// Idempotent: re-verifying a paid booking is a no-op success.
//
// Seat accounting: a Pending booking already holds its seat, so a successful
// verification only flips the flags. A Failed booking's seat was released
// (by the janitor or a prior failed verification), so a late success must
// re-acquire one through the atomic counter first; ErrSlotFull means someone
// else took it in the meantime. A failed verification releases the seat of a
// still-Pending booking so it does not idle until the janitor sweep.
func (s *PaymentService) Confirm(ctx context.Context, bookingID, orderID string) (domain.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if booking.IsPaid {
		return booking, nil
	}

	status, err := s.gateway.VerifyOrder(ctx, orderID)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("%w: %v", domain.ErrPaymentUpstream, err)
	}

	switch status {
	case "PAID", "SUCCESS":
		if booking.Status == domain.StatusFailed {
			contest, err := s.contests.GetContest(ctx, booking.ContestID)
			if err != nil {
				return domain.Booking{}, err
			}
			ok, err := s.seats.Reserve(ctx, booking.ContestID, booking.SlotID, contest.MaxPerSlot)
			if err != nil {
				return domain.Booking{}, fmt.Errorf("reserve seat: %w", err)
			}
			if !ok {
				return domain.Booking{}, domain.ErrSlotFull
			}
		}
		if err := s.bookings.SetPayment(ctx, bookingID, orderID, true, domain.StatusPaid); err != nil {
			return domain.Booking{}, err
		}
	case "FAILED", "CANCELLED", "USER_DROPPED":
		// MarkFailed flips only a Pending booking, so the seat releases once
		// even when the janitor sweeps the same booking concurrently.
		failed, err := s.bookings.MarkFailed(ctx, bookingID)
		if err != nil {
			return domain.Booking{}, err
		}
		if failed {
			if err := s.seats.Release(ctx, booking.ContestID, booking.SlotID); err != nil {
				return domain.Booking{}, fmt.Errorf("release seat: %w", err)
			}
		}
	default:
		// ACTIVE / PENDING etc: leave the booking as-is, client retries later.
	}
	return s.bookings.GetBooking(ctx, bookingID)
}
