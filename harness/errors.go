package harness

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoMessage means a read found the queue empty.
var ErrNoMessage = errors.New("queue does not contain expected messages")

// APICallError is returned for any non-2xx answer of the service under test.
// Body is the raw response text.
type APICallError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APICallError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// AssertionError carries the failures collected by a Check.
type AssertionError struct {
	Failures []string
}

func (e *AssertionError) Error() string {
	return "assertion failed: " + strings.Join(e.Failures, "\n")
}

// Check collects testify assertion failures so they can be retried by a
// poller instead of failing the test on the first attempt. It satisfies
// assert.TestingT:
//
//	func(c *harness.Check, ev models.ExpenseCreatedEvent) {
//		assert.Equal(c, want, ev)
//	}
type Check struct {
	failures []string
}

func (c *Check) Errorf(format string, args ...interface{}) {
	c.failures = append(c.failures, strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Fail records a plain failure message.
func (c *Check) Fail(msg string) { c.failures = append(c.failures, msg) }

func (c *Check) Failed() bool { return len(c.failures) > 0 }

// Err returns nil when nothing failed, otherwise *AssertionError.
func (c *Check) Err() error {
	if !c.Failed() {
		return nil
	}
	out := make([]string, len(c.failures))
	copy(out, c.failures)
	return &AssertionError{Failures: out}
}
