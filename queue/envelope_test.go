package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrap(t *testing.T) {
	tests := map[string]struct {
		body    string
		want    string
		wantOK  bool
		wantErr bool
	}{
		"string payload":      {body: `{"message": "{\"id\":\"abc\"}"}`, want: `{"id":"abc"}`, wantOK: true},
		"object payload":      {body: `{"messageId":"1","message":{"id":"abc","userId":"u"}}`, want: `{"id":"abc","userId":"u"}`, wantOK: true},
		"no message property": {body: `{}`},
		"null message":        {body: `{"message":null}`},
		"not json":            {body: `plain text`, wantErr: true},
		"json array":          {body: `[1,2]`, wantErr: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok, err := Unwrap([]byte(tc.body))
			if tc.wantErr {
				require.ErrorIs(t, err, ErrMalformedEnvelope)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWrapProducesUnwrappableEnvelope(t *testing.T) {
	type event struct {
		ID     string `json:"id"`
		UserID string `json:"userId"`
	}
	body, err := Wrap("Expenses:ExpenseCreatedEvent", event{ID: "e1", UserID: "u1"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.NotEmpty(t, env.MessageID)
	assert.Equal(t, []string{"urn:message:Expenses:ExpenseCreatedEvent"}, env.MessageType)
	assert.False(t, env.SentTime.IsZero())

	payload, ok, err := Unwrap(body)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":"e1","userId":"u1"}`, payload)
}
