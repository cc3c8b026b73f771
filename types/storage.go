package types

// KeyValue is the process-durable local store backing the cross-session
// keys: the fallback token, the pending reward marker, checkout drafts
// and recent searches. Values are opaque JSON blobs, no schema version.
type KeyValue interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Well-known KeyValue keys.
const (
	KeyFallbackToken  = "token"
	KeyPendingReward  = "pendingReward"
	KeyCheckoutData   = "checkoutData"
	KeyRecentSearches = "recentSearches"
)

// DocumentStore is the offline document mirror (reward records,
// notification inbox) kept alongside the key-value store.
type DocumentStore interface {
	LifecycleManager
	CreateCollection(name string) error
	HasCollection(name string) (bool, error)
	Insert(collection string, document map[string]interface{}) (string, error)
	FindAll(collection string) ([]map[string]interface{}, error)
	FindByField(collection, field string, value interface{}) ([]map[string]interface{}, error)
	Update(collection, id string, updates map[string]interface{}) error
	DeleteByID(collection, id string) error
	ReplaceAll(collection string, documents []map[string]interface{}) error
}
