package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func registrationRecord(offset int64, schemaID uint32, payload string, headers ...kafka.Header) kafka.Message {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], schemaID)
	copy(value[5:], payload)
	if headers == nil {
		headers = []kafka.Header{
			{Key: "event_type", Value: []byte("registration.added")},
			{Key: "event_id", Value: []byte("evt-1")},
			{Key: "schema_subject", Value: []byte("registration_added-value")},
		}
	}
	return kafka.Message{
		Topic:     "activity_registrations",
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Key:       []byte("Chess Club"),
		Value:     value,
		Headers:   headers,
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := `{"event_id":"evt-1","activity_name":"Chess Club","email":"a@mergington.edu"}`
	reader := &stubReader{
		messages: []kafka.Message{registrationRecord(10, 42, payload)},
		after:    contextCanceled,
	}
	handler := &stubHandler{}
	before := testutil.ToFloat64(processedCounter.WithLabelValues("activity_registrations", "registration.added"))

	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "registration.added", handler.last.EventType)
	require.Equal(t, "evt-1", handler.last.EventID)
	require.Equal(t, "Chess Club", handler.last.ActivityName)
	require.Equal(t, "registration_added-value", handler.last.SchemaSubject)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, payload, string(handler.last.Payload))
	require.InDelta(t, before+1, testutil.ToFloat64(processedCounter.WithLabelValues("activity_registrations", "registration.added")), 0.0001)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	reader := &stubReader{
		messages: []kafka.Message{registrationRecord(20, 99, `{"event_id":"evt-2"}`)},
		after:    contextCanceled,
	}
	handler := &stubHandler{err: errors.New("boom")}

	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.calls)
	require.Zero(t, reader.commitCalls)
}

func TestProcessorCommitsMalformedRecords(t *testing.T) {
	cases := map[string]kafka.Message{
		"short value":    {Topic: "activity_registrations", Value: []byte{0, 1}},
		"bad magic":      {Topic: "activity_registrations", Value: append([]byte{1, 0, 0, 0, 1}, []byte(`{}`)...), Headers: []kafka.Header{{Key: "event_type", Value: []byte("registration.added")}}},
		"missing header": registrationRecord(1, 1, `{}`, kafka.Header{Key: "event_id", Value: []byte("x")}),
		"invalid json":   registrationRecord(2, 1, `{not json`),
	}

	for name, record := range cases {
		t.Run(name, func(t *testing.T) {
			reader := &stubReader{messages: []kafka.Message{record}, after: contextCanceled}
			handler := &stubHandler{}
			before := testutil.ToFloat64(decodeErrorCounter.WithLabelValues("activity_registrations"))

			err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0))).Run(context.Background())
			require.ErrorIs(t, err, context.Canceled)
			require.Zero(t, handler.calls)
			require.Equal(t, 1, reader.commitCalls)
			require.InDelta(t, before+1, testutil.ToFloat64(decodeErrorCounter.WithLabelValues("activity_registrations")), 0.0001)
		})
	}
}

func TestProcessorRetriesAfterFetchError(t *testing.T) {
	reader := &stubReader{
		fetchErrs: []error{errors.New("broker unavailable")},
		messages:  []kafka.Message{registrationRecord(30, 7, `{"event_id":"evt-3"}`)},
		after:     contextCanceled,
	}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)), WithFetchBackoff(time.Millisecond)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
}

type stubReader struct {
	fetchErrs   []error
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(_ context.Context) (kafka.Message, error) {
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		return kafka.Message{}, err
	}
	if r.index >= len(r.messages) {
		return kafka.Message{}, r.after()
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
