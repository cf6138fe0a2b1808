package constants

// Environments.
const (
	EnvDevelop    = "develop"
	EnvStaging    = "staging"
	EnvProduction = "production"
)

// Document store drivers.
const (
	StoreDriverMemory    = "memory"
	StoreDriverPostgres  = "postgres"
	StoreDriverFirestore = "firestore"
)

// Pub/Sub providers.
const (
	PubSubProviderNoop   = "noop"
	PubSubProviderLocal  = "local"
	PubSubProviderGoogle = "google"
)

// Collections shared by every store backend.
const (
	CollectionActors        = "actors"
	CollectionOrders        = "orders"
	CollectionNotifications = "notifications"
	CollectionCredentials   = "credentials"
)
