package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEventPublisher_NilClientIsNoOp(t *testing.T) {
	publisher := NewEventPublisher(nil, zap.NewNop())

	err := publisher.PublishRevisionProcessed(context.Background(), RevisionProcessedEvent{
		SourceID:   uuid.New(),
		RevisionID: uuid.New(),
	})
	require.NoError(t, err)
}

func TestRevisionProcessedEvent_WireFormat(t *testing.T) {
	sourceID := uuid.New()
	revisionID := uuid.New()
	diffID := uuid.New()

	t.Run("without diff", func(t *testing.T) {
		payload, err := json.Marshal(RevisionProcessedEvent{
			SourceID:       sourceID,
			RevisionID:     revisionID,
			ChangeDetected: false,
			DiffID:         nil,
		})
		require.NoError(t, err)

		// diff_id must be an explicit null so consumers can rely on the key.
		expected := fmt.Sprintf(`{"source_id":%q,"revision_id":%q,"change_detected":false,"diff_id":null}`,
			sourceID, revisionID)
		require.JSONEq(t, expected, string(payload))
	})

	t.Run("with diff", func(t *testing.T) {
		payload, err := json.Marshal(RevisionProcessedEvent{
			SourceID:       sourceID,
			RevisionID:     revisionID,
			ChangeDetected: true,
			DiffID:         &diffID,
		})
		require.NoError(t, err)

		expected := fmt.Sprintf(`{"source_id":%q,"revision_id":%q,"change_detected":true,"diff_id":%q}`,
			sourceID, revisionID, diffID)
		require.JSONEq(t, expected, string(payload))
	})
}
