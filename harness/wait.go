package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"expenses/database"
	"expenses/poll"
)

// read fetches one message. Infrastructure failures are marked permanent so
// a dead broker aborts the wait instead of burning the whole budget.
func (f *Fixture) read(ctx context.Context, queueName string) (string, error) {
	raw, ok, err := f.reader.ReadRawMessage(ctx, queueName)
	if isInfrastructure(err) {
		return "", poll.Permanent(err)
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoMessage
	}
	return raw, nil
}

func decode[T any](queueName, raw string) (T, error) {
	var msg T
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return msg, fmt.Errorf("decode message from %s: %w", queueName, err)
	}
	return msg, nil
}

// WaitForMessage reads queueName until a message passes assertion. Reads are
// destructive, so if the budget runs out on an empty queue the last assertion
// failure seen is returned rather than ErrNoMessage. A nil assertion accepts
// the first message.
func WaitForMessage[T any](ctx context.Context, f *Fixture, queueName string, assertion func(c *Check, msg T)) (T, error) {
	var (
		matched       T
		lastAssertion error
		infra         error
	)
	err := poll.Await(func() error {
		raw, err := f.read(ctx, queueName)
		if err != nil {
			var perm *poll.PermanentError
			if errors.As(err, &perm) {
				infra = perm.Err
			}
			return err
		}
		msg, err := decode[T](queueName, raw)
		if err != nil {
			return err
		}
		if assertion != nil {
			c := &Check{}
			assertion(c, msg)
			if err := c.Err(); err != nil {
				lastAssertion = err
				return err
			}
		}
		matched = msg
		return nil
	}, withObserver(f.timings.Message, f.observe("message")))

	if err == nil {
		return matched, nil
	}
	var zero T
	switch {
	case infra != nil:
		return zero, infra
	case lastAssertion != nil && errors.Is(err, ErrNoMessage):
		return zero, lastAssertion
	}
	return zero, err
}

// WaitForMessages drains queueName on every attempt and keeps the messages
// accepted by match until exactly expected of them were seen. Seeing more
// than expected fails at once.
func WaitForMessages[T any](ctx context.Context, f *Fixture, queueName string, match func(T) bool, expected int) ([]T, error) {
	var got []T
	err := poll.Await(func() error {
		for {
			raw, err := f.read(ctx, queueName)
			if errors.Is(err, ErrNoMessage) {
				break
			}
			if err != nil {
				return err
			}
			msg, err := decode[T](queueName, raw)
			if err != nil {
				return err
			}
			if match == nil || match(msg) {
				got = append(got, msg)
			}
		}
		switch {
		case len(got) > expected:
			return poll.Permanent(fmt.Errorf("number of messages did not match: got %d, expected %d", len(got), expected))
		case len(got) < expected:
			return fmt.Errorf("%w: got %d of %d", ErrNoMessage, len(got), expected)
		}
		return nil
	}, withObserver(f.timings.ManyMessages, f.observe("messages")))
	return got, err
}

// ExpectNoMessage succeeds when queueName stays empty for the whole budget.
// Any message read is consumed and reported.
func (f *Fixture) ExpectNoMessage(ctx context.Context, queueName string, opts poll.Options) error {
	var seen string
	err := poll.Await(func() error {
		raw, err := f.read(ctx, queueName)
		if err != nil {
			return err
		}
		seen = raw
		return nil
	}, opts)
	switch {
	case err == nil:
		return fmt.Errorf("unexpected message on %s: %s", queueName, seen)
	case errors.Is(err, ErrNoMessage):
		return nil
	}
	return err
}

// WaitForAPI repeats call until its result passes assertion. Call errors,
// including *APICallError, count as "not yet".
func WaitForAPI[T any](ctx context.Context, f *Fixture, call func(ctx context.Context) (T, error), assertion func(c *Check, v T)) (T, error) {
	return poll.Value(func() (T, error) {
		v, err := call(ctx)
		if err != nil {
			return v, err
		}
		if assertion != nil {
			c := &Check{}
			assertion(c, v)
			if err := c.Err(); err != nil {
				return v, err
			}
		}
		return v, nil
	}, withObserver(f.timings.API, f.observe("api")))
}

// WaitForRows runs query until the mapped rows pass assertion. Columns map
// onto T by `db` tag.
func WaitForRows[T any](ctx context.Context, f *Fixture, query string, assertion func(c *Check, rows []T), args ...any) ([]T, error) {
	if f.cleaner == nil {
		return nil, errors.New("harness: no database configured")
	}
	return poll.Value(func() ([]T, error) {
		rows, err := database.Query[T](ctx, f.cleaner, query, args...)
		if err != nil {
			return nil, err
		}
		if assertion != nil {
			c := &Check{}
			assertion(c, rows)
			if err := c.Err(); err != nil {
				return nil, err
			}
		}
		return rows, nil
	}, withObserver(f.timings.Database, f.observe("rows")))
}
