package sweeper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"booker/clock"
	"booker/sweeper"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	pages [][]string
	calls int
}

func (s *stubLister) ListExpired(_ context.Context, _ time.Time, _ int) ([]string, error) {
	if s.calls >= len(s.pages) {
		return nil, nil
	}
	page := s.pages[s.calls]
	s.calls++
	return page, nil
}

type stubCanceller struct {
	cancelled []string
	errFor    map[string]error
}

func (s *stubCanceller) Cancel(_ context.Context, bookingID, reason, actor string) error {
	if err := s.errFor[bookingID]; err != nil {
		return err
	}
	s.cancelled = append(s.cancelled, bookingID)
	return nil
}

func TestSweeper_Sweep(t *testing.T) {
	lister := &stubLister{pages: [][]string{{"booking-1", "booking-2"}}}
	canceller := &stubCanceller{}
	s := sweeper.New(lister, canceller, clock.NewFixed(time.Now()), time.Minute, logrus.StandardLogger())

	require.NoError(t, s.Sweep(context.Background()))
	assert.Equal(t, []string{"booking-1", "booking-2"}, canceller.cancelled)
}

func TestSweeper_Sweep_Empty(t *testing.T) {
	s := sweeper.New(&stubLister{}, &stubCanceller{}, clock.NewFixed(time.Now()), time.Minute, logrus.StandardLogger())
	require.NoError(t, s.Sweep(context.Background()))
}

func TestSweeper_Sweep_ContinuesPastFailures(t *testing.T) {
	lister := &stubLister{pages: [][]string{{"booking-1", "booking-2", "booking-3"}}}
	canceller := &stubCanceller{
		errFor: map[string]error{"booking-2": errors.New("deadlock")},
	}
	s := sweeper.New(lister, canceller, clock.NewFixed(time.Now()), time.Minute, logrus.StandardLogger())

	require.NoError(t, s.Sweep(context.Background()))
	assert.Equal(t, []string{"booking-1", "booking-3"}, canceller.cancelled)
}
