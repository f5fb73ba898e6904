package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goshield/goshield/internal/retry"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDo(t *testing.T) {
	Convey("Given a retry policy with three attempts", t, func() {
		policy := retry.Policy{Attempts: 3, BaseDelay: time.Millisecond}

		Convey("When the function succeeds immediately", func() {
			calls := 0
			err := retry.Do(context.Background(), policy, nil, func(ctx context.Context) error {
				calls++
				return nil
			})

			Convey("Then it is called exactly once", func() {
				So(err, ShouldBeNil)
				So(calls, ShouldEqual, 1)
			})
		})

		Convey("When the function fails twice then succeeds", func() {
			calls := 0
			retries := 0
			err := retry.Do(context.Background(), policy, func(int) { retries++ }, func(ctx context.Context) error {
				calls++
				if calls < 3 {
					return errors.New("transient")
				}
				return nil
			})

			Convey("Then it succeeds after retries and counts them", func() {
				So(err, ShouldBeNil)
				So(calls, ShouldEqual, 3)
				So(retries, ShouldEqual, 2)
			})
		})

		Convey("When the function always fails", func() {
			calls := 0
			boom := errors.New("boom")
			err := retry.Do(context.Background(), policy, nil, func(ctx context.Context) error {
				calls++
				return boom
			})

			Convey("Then the last error surfaces after the budget is spent", func() {
				So(err, ShouldEqual, boom)
				So(calls, ShouldEqual, 3)
			})
		})

		Convey("When the function returns a permanent error", func() {
			calls := 0
			fatal := errors.New("fatal")
			err := retry.Do(context.Background(), policy, nil, func(ctx context.Context) error {
				calls++
				return retry.Permanent(fatal)
			})

			Convey("Then it is not retried and the cause is unwrapped", func() {
				So(err, ShouldEqual, fatal)
				So(calls, ShouldEqual, 1)
			})
		})

		Convey("When the caller context is cancelled mid-backoff", func() {
			ctx, cancel := context.WithCancel(context.Background())
			slow := retry.Policy{Attempts: 5, BaseDelay: time.Second}
			calls := 0
			go func() {
				time.Sleep(10 * time.Millisecond)
				cancel()
			}()
			err := retry.Do(ctx, slow, nil, func(ctx context.Context) error {
				calls++
				return errors.New("transient")
			})

			Convey("Then the loop stops with the context error", func() {
				So(err, ShouldEqual, context.Canceled)
				So(calls, ShouldEqual, 1)
			})
		})
	})
}

func TestDoAttemptTimeout(t *testing.T) {
	Convey("Given a policy with a per-attempt timeout", t, func() {
		policy := retry.Policy{Attempts: 2, BaseDelay: time.Millisecond, Timeout: 20 * time.Millisecond}

		Convey("When each attempt blocks past its deadline", func() {
			calls := 0
			err := retry.Do(context.Background(), policy, nil, func(ctx context.Context) error {
				calls++
				<-ctx.Done()
				return ctx.Err()
			})

			Convey("Then a timeout counts as one attempt, not a terminal failure", func() {
				So(err, ShouldEqual, context.DeadlineExceeded)
				So(calls, ShouldEqual, 2)
			})
		})
	})
}
