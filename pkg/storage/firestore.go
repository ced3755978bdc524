package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Gfacello/ute-energy-cost/pkg/log"
	"github.com/Gfacello/ute-energy-cost/pkg/types"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. The snapshot is stored as a JSON string inside a single
// document so the schema can evolve without Firestore field migrations.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
	meterID   string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")
	meterID := lflag.String("meter-id", "default", "Meter identifier used as the state document key")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database
		f.meterID = *meterID

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	if f.meterID == "" {
		return fmt.Errorf("meter-id is required")
	}
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) meterDoc() *firestore.DocumentRef {
	return f.client.Collection("meters").Doc(f.meterID)
}

// GetState retrieves the snapshot from the "meters/<id>/state/current"
// document.
func (f *FirestoreProvider) GetState(ctx context.Context) (types.MeterState, int, error) {
	doc, err := f.meterDoc().Collection("state").Doc("current").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.MeterState{}, 0, ErrNoState
		}
		return types.MeterState{}, 0, fmt.Errorf("failed to fetch state doc: %w", err)
	}

	// Read version if available (default 0)
	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "state doc missing json", slog.String("meterID", f.meterID))
		return types.MeterState{}, 0, fmt.Errorf("state document missing 'json' field: %w", err)
	}

	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "state doc json not string", slog.String("meterID", f.meterID))
		return types.MeterState{}, 0, fmt.Errorf("state 'json' field is not a string")
	}

	var s types.MeterState
	if err := json.Unmarshal([]byte(jsonStr), &s); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal state json", slog.String("meterID", f.meterID), slog.Any("err", err))
		return types.MeterState{}, 0, fmt.Errorf("failed to unmarshal state json: %w", err)
	}
	return s, version, nil
}

// SetState saves the snapshot to the "meters/<id>/state/current" document
// and appends a copy to the "history" sub-collection keyed by timestamp.
// The state is stored as a JSON string for portability.
func (f *FirestoreProvider) SetState(ctx context.Context, state types.MeterState, version int) error {
	jsonBytes, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	payload := map[string]interface{}{
		"json":      string(jsonBytes),
		"version":   version,
		"timestamp": state.LastUpdateTS,
	}

	if _, err := f.meterDoc().Collection("state").Doc("current").Set(ctx, payload); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	// One history document per local billing day, keyed by the day
	// watermark so history days match the rollover boundaries and range
	// queries stay lexicographic.
	if docID := historyKey(state); docID != "" {
		if _, err := f.meterDoc().Collection("history").Doc(docID).Set(ctx, payload); err != nil {
			return fmt.Errorf("failed to save state history: %w", err)
		}
	}
	return nil
}

// GetStateHistory retrieves daily snapshot copies within the range. Used by
// the API's history endpoint; the accumulator never reads these back.
func (f *FirestoreProvider) GetStateHistory(ctx context.Context, start, end time.Time) ([]types.MeterState, error) {
	startDocID := start.Format("2006-01-02")
	endDocID := end.Format("2006-01-02")

	coll := f.meterDoc().Collection("history")
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<=", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var states []types.MeterState
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating state history: %w", err)
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "history doc missing json", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
			return nil, fmt.Errorf("history document %s missing 'json' field: %w", doc.Ref.ID, err)
		}

		jsonStr, ok := val.(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "history doc json not string", slog.String("docID", doc.Ref.ID))
			return nil, fmt.Errorf("history document %s 'json' field is not string", doc.Ref.ID)
		}

		var s types.MeterState
		if err := json.Unmarshal([]byte(jsonStr), &s); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal history state", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
			return nil, fmt.Errorf("failed to unmarshal history state (id=%s): %w", doc.Ref.ID, err)
		}
		states = append(states, s)
	}
	return states, nil
}
