package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/hn-harvester/internal/progress"
)

func TestLogSinkWritesStructuredFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))
	id := uuid.New()

	err := sink.Consume(context.Background(), []progress.Event{{
		RunID:    progress.UUIDToBytes(id),
		TS:       time.Now(),
		Stage:    progress.StageFetchError,
		Site:     "hn.test",
		WorkerID: 4,
		ItemID:   42,
		Outcome:  "transport",
		Note:     "timeout",
	}})
	require.NoError(t, err)

	entries := logs.FilterMessage("progress event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, id.String(), fields["run_id"])
	require.Equal(t, "FETCH_ERROR", fields["stage"])
	require.EqualValues(t, 4, fields["worker_id"])
	require.EqualValues(t, 42, fields["item_id"])
	require.Equal(t, "timeout", fields["note"])
	require.NoError(t, sink.Close(context.Background()))
}

func TestNewLogSinkNilLogger(t *testing.T) {
	t.Parallel()

	sink := NewLogSink(nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{{Stage: progress.StageRunStart}}))
}
