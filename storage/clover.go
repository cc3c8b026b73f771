package storage

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ostafen/clover"
	"go.uber.org/zap"

	"github.com/velluxe/storefront-core/types"
)

type CloverState int32

const (
	CloverStateStopped CloverState = iota
	CloverStateStarting
	CloverStateRunning
	CloverStateStopping
)

// CloverStore is the offline document mirror: reward history and the
// notification inbox land here so the UI has data before the first
// round trip completes.
type CloverStore struct {
	db     *clover.DB
	logger types.Logger
	path   string
	state  atomic.Value
}

func NewCloverStore(logger types.Logger, config *types.StorageConfig) (*CloverStore, error) {
	// An empty path opens an in-memory database.
	db, err := clover.Open(config.DocumentPath, clover.InMemoryMode(config.DocumentPath == ""))
	if err != nil {
		return nil, types.WrapError(err, "failed to open document store")
	}

	store := &CloverStore{
		db:     db,
		logger: logger,
		path:   config.DocumentPath,
	}

	store.state.Store(CloverStateStopped)
	return store, nil
}

func (c *CloverStore) Start() error {
	if !c.transitionState(CloverStateStopped, CloverStateStarting) {
		return types.ErrStorageAlreadyRunning
	}

	defer func() {
		if c.getState() == CloverStateStarting {
			c.setState(CloverStateRunning)
		}
	}()

	c.logger.Info("Document store started", zap.String("path", c.path))
	return nil
}

func (c *CloverStore) Stop() error {
	if !c.transitionState(CloverStateRunning, CloverStateStopping) {
		return types.ErrStorageNotRunning
	}

	defer func() {
		c.setState(CloverStateStopped)
	}()

	if err := c.db.Close(); err != nil {
		return types.WrapError(err, "failed to close document store")
	}

	c.logger.Info("Document store stopped gracefully")
	return nil
}

func (c *CloverStore) IsRunning() bool {
	return c.getState() == CloverStateRunning
}

func (c *CloverStore) CreateCollection(name string) error {
	exists, err := c.db.HasCollection(name)
	if err != nil {
		return types.WrapError(err, "failed to check collection existence")
	}

	if exists {
		return nil
	}

	if err := c.db.CreateCollection(name); err != nil {
		return types.WrapError(err, "failed to create collection")
	}

	return nil
}

func (c *CloverStore) HasCollection(name string) (bool, error) {
	exists, err := c.db.HasCollection(name)
	if err != nil {
		return false, types.WrapError(err, "failed to check collection existence")
	}
	return exists, nil
}

func (c *CloverStore) Insert(collection string, document map[string]interface{}) (string, error) {
	if err := c.CreateCollection(collection); err != nil {
		return "", err
	}

	internalID := uuid.New().String()
	document["internal_id"] = internalID
	document["cr_time"] = time.Now().UnixNano()

	doc := clover.NewDocument()
	for key, value := range document {
		doc.Set(key, value)
	}

	if _, err := c.db.InsertOne(collection, doc); err != nil {
		return "", types.WrapError(err, "failed to insert document")
	}

	return internalID, nil
}

func (c *CloverStore) FindAll(collection string) ([]map[string]interface{}, error) {
	exists, err := c.db.HasCollection(collection)
	if err != nil {
		return nil, types.WrapError(err, "failed to check collection existence")
	}
	if !exists {
		return []map[string]interface{}{}, nil
	}

	docs, err := c.db.Query(collection).FindAll()
	if err != nil {
		return nil, types.WrapError(err, "failed to query documents")
	}

	return toMaps(docs), nil
}

func (c *CloverStore) FindByField(collection, field string, value interface{}) ([]map[string]interface{}, error) {
	exists, err := c.db.HasCollection(collection)
	if err != nil {
		return nil, types.WrapError(err, "failed to check collection existence")
	}
	if !exists {
		return []map[string]interface{}{}, nil
	}

	docs, err := c.db.Query(collection).Where(clover.Field(field).Eq(value)).FindAll()
	if err != nil {
		return nil, types.WrapError(err, "failed to query documents")
	}

	return toMaps(docs), nil
}

func (c *CloverStore) Update(collection, id string, updates map[string]interface{}) error {
	query := c.db.Query(collection).Where(clover.Field("internal_id").Eq(id))

	doc, err := query.FindFirst()
	if err != nil {
		return types.WrapError(err, "failed to find document")
	}
	if doc == nil {
		return types.ErrDocumentNotFound
	}

	updates["ch_time"] = time.Now().UnixNano()

	if err := query.Update(updates); err != nil {
		return types.WrapError(err, "failed to update document")
	}

	return nil
}

func (c *CloverStore) DeleteByID(collection, id string) error {
	query := c.db.Query(collection).Where(clover.Field("internal_id").Eq(id))

	if err := query.Delete(); err != nil {
		return types.WrapError(err, "failed to delete document")
	}

	return nil
}

// ReplaceAll swaps a collection's contents wholesale. Used by the
// maintenance refresh jobs to mirror server state.
func (c *CloverStore) ReplaceAll(collection string, documents []map[string]interface{}) error {
	exists, err := c.db.HasCollection(collection)
	if err != nil {
		return types.WrapError(err, "failed to check collection existence")
	}

	if exists {
		if err := c.db.Query(collection).Delete(); err != nil {
			return types.WrapError(err, "failed to clear collection")
		}
	}

	for _, document := range documents {
		if _, err := c.Insert(collection, document); err != nil {
			return err
		}
	}

	return nil
}

func (c *CloverStore) getState() CloverState {
	if state, ok := c.state.Load().(CloverState); ok {
		return state
	}
	return CloverStateStopped
}

func (c *CloverStore) setState(state CloverState) {
	c.state.Store(state)
}

func (c *CloverStore) transitionState(from, to CloverState) bool {
	return c.state.CompareAndSwap(from, to)
}

func toMaps(docs []*clover.Document) []map[string]interface{} {
	results := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		fields := make(map[string]interface{})
		_ = doc.Unmarshal(&fields)
		results = append(results, fields)
	}
	return results
}
