package wire

import "github.com/cfgd/cfgd-go/pkg/storage"

// Well-known object names.
const (
	// ObjectServer is the server object of a cfgd process.
	ObjectServer = "server"

	// ObjectListener is the callback object of a client process.
	ObjectListener = "listener"

	// ObjectDefaultDatabase is the default database of a cfgd process.
	ObjectDefaultDatabase = "db/default"
)

// Methods of the server object.
const (
	MethodGetDatabase        = "get_database"
	MethodGetDefaultDatabase = "get_default_database"
	MethodAddClient          = "add_client"
	MethodRemoveClient       = "remove_client"
	MethodPing               = "ping"
	MethodShutdown           = "shutdown"
)

// Methods of a database object.
const (
	MethodAddSubscription    = "add_subscription"
	MethodRemoveSubscription = "remove_subscription"
	MethodLookup             = "lookup"
	MethodSet                = "set"
	MethodUnset              = "unset"
	MethodAllEntries         = "all_entries"
	MethodAllDirs            = "all_dirs"
	MethodDirExists          = "dir_exists"
	MethodSync               = "sync"
	MethodClearCache         = "clear_cache"
)

// Methods of a client listener object. The server calls these.
const (
	MethodNotify               = "notify"
	MethodUpdateSubscriptionID = "update_subscription_id"
	MethodDropCachesForKeys    = "drop_caches_for_keys"
	MethodDropAllCaches        = "drop_all_caches"
	// MethodPing is shared with the server object.
)

// MethodExists is answered by every node for any object name; the result
// tells whether the object is registered. It is the probe behind
// Endpoint.IsAlive.
const MethodExists = "_exists"

// AddressArgs names a database address.
type AddressArgs struct {
	Address string `cbor:"1,keyasint"`
}

// DescriptorArgs carries an endpoint descriptor.
type DescriptorArgs struct {
	Descriptor string `cbor:"1,keyasint"`
}

// DescriptorResult returns an endpoint descriptor.
type DescriptorResult struct {
	Descriptor string `cbor:"1,keyasint"`
}

// PingResult carries the pid of the answering process.
type PingResult struct {
	PID int `cbor:"1,keyasint"`
}

// ExistsResult answers MethodExists.
type ExistsResult struct {
	Exists bool `cbor:"1,keyasint"`
}

// AddSubscriptionArgs registers a callback for a location.
type AddSubscriptionArgs struct {
	Location   string            `cbor:"1,keyasint"`
	Callback   string            `cbor:"2,keyasint"`
	Properties map[string]string `cbor:"3,keyasint,omitempty"`
}

// SubscriptionIDResult returns a server-assigned subscription id.
type SubscriptionIDResult struct {
	ID uint64 `cbor:"1,keyasint"`
}

// SubscriptionIDArgs names a subscription.
type SubscriptionIDArgs struct {
	ID uint64 `cbor:"1,keyasint"`
}

// KeyArgs names a key or directory.
type KeyArgs struct {
	Key string `cbor:"1,keyasint"`
}

// SetArgs stores a value.
type SetArgs struct {
	Key   string        `cbor:"1,keyasint"`
	Value storage.Value `cbor:"2,keyasint"`
}

// EntryResult returns one entry.
type EntryResult struct {
	Entry storage.Entry `cbor:"1,keyasint"`
}

// EntriesResult returns a directory listing.
type EntriesResult struct {
	Entries []storage.Entry `cbor:"1,keyasint"`
}

// DirsResult returns subdirectories.
type DirsResult struct {
	Dirs []string `cbor:"1,keyasint"`
}

// BoolResult returns a flag.
type BoolResult struct {
	Value bool `cbor:"1,keyasint"`
}

// NotifyArgs delivers one change to a subscriber. Database is the
// descriptor of the database the subscription lives in.
type NotifyArgs struct {
	Database string        `cbor:"1,keyasint"`
	ID       uint64        `cbor:"2,keyasint"`
	Entry    storage.Entry `cbor:"3,keyasint"`
}

// UpdateSubscriptionArgs tells a client that a subscription was moved to a
// new id, possibly on a new database endpoint.
type UpdateSubscriptionArgs struct {
	Database string `cbor:"1,keyasint"`
	Address  string `cbor:"2,keyasint"`
	OldID    uint64 `cbor:"3,keyasint"`
	Location string `cbor:"4,keyasint"`
	NewID    uint64 `cbor:"5,keyasint"`
}

// DropCachesArgs invalidates cached keys of one database.
type DropCachesArgs struct {
	Database string   `cbor:"1,keyasint"`
	Keys     []string `cbor:"2,keyasint"`
}
