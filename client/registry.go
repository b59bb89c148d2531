package client

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash"

	"github.com/lahirusamith/mssql-go/driver"
)

// registryKey identifies where a pool is registered so it can be removed
// on teardown. Exactly one of the two keying modes applies: fingerprint
// keying for the process-wide shared pools, pointer identity for pools
// tied to a caller-held PoolOptions value.
type registryKey struct {
	fingerprint uint64
	options     *PoolOptions
}

// poolRegistry holds the process-wide pool registry. Global pools are
// keyed by a fingerprint of the connection parameters; option-scoped pools
// are keyed by the identity of the *PoolOptions the caller passed in, so
// two clients share a pool only when they were constructed with the exact
// same options value.
type poolRegistry struct {
	mu        sync.Mutex
	byKey     map[uint64]*ConnectionPool
	byOptions map[*PoolOptions]map[uint64]*ConnectionPool
}

var registry = &poolRegistry{
	byKey:     make(map[uint64]*ConnectionPool),
	byOptions: make(map[*PoolOptions]map[uint64]*ConnectionPool),
}

// fingerprint derives the pool key from every parameter that affects
// connection behavior. Equal fingerprints guarantee equal behavior, so the
// pool can be shared safely.
func fingerprint(cfg driver.Config) uint64 {
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%d\x00%s\x00%s\x00%s\x00", cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)
	fmt.Fprintf(h, "%v\x00%v\x00%s\x00%s\x00%s\x00%s\x00", cfg.Encrypt, cfg.TrustServerCertificate,
		cfg.CAFile, cfg.CertFile, cfg.KeyFile, cfg.KeyPassword)
	fmt.Fprintf(h, "%d\x00", cfg.LoginTimeout)
	// map iteration order is random; hash session options in sorted order
	keys := make([]string, 0, len(cfg.Session))
	for k := range cfg.Session {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\x00", k, cfg.Session[k])
	}
	return h.Sum64()
}

// globalPool returns the process-wide pool for the given connection
// parameters, creating it lazily, and attaches the caller to it.
func (r *poolRegistry) globalPool(connector driver.Connector, cfg driver.Config, logger Logger) *ConnectionPool {
	fp := fingerprint(cfg)

	r.mu.Lock()
	defer r.mu.Unlock()

	// A registered pool can be mid-teardown: its last client detached but
	// its registry entry is not removed yet. attach fails on such a pool;
	// replace the stale entry with a fresh one. The closing pool's own
	// remove is identity-checked, so it cannot delete the replacement.
	if p, ok := r.byKey[fp]; ok && p.attach() {
		return p
	}

	p := newConnectionPool(connector, cfg, DefaultPoolOptions(), logger)
	p.regKey = &registryKey{fingerprint: fp}
	p.attach()
	r.byKey[fp] = p
	return p
}

// optionsPool returns the pool tied to the given PoolOptions value and
// connection parameters, creating it lazily, and attaches the caller.
// Sharing is by pointer identity: a PoolOptions value used for a single
// client construction yields a private pool, while passing the same
// pointer to several constructions shares one pool between them.
func (r *poolRegistry) optionsPool(opts *PoolOptions, connector driver.Connector, cfg driver.Config, logger Logger) *ConnectionPool {
	fp := fingerprint(cfg)

	r.mu.Lock()
	defer r.mu.Unlock()

	pools, ok := r.byOptions[opts]
	if !ok {
		pools = make(map[uint64]*ConnectionPool)
		r.byOptions[opts] = pools
	}
	// Same mid-teardown handling as globalPool: a pool whose attach fails
	// is closing and gets replaced in its slot.
	if p, ok := pools[fp]; ok && p.attach() {
		return p
	}

	p := newConnectionPool(connector, cfg, *opts, logger)
	p.regKey = &registryKey{fingerprint: fp, options: opts}
	p.attach()
	pools[fp] = p
	return p
}

// remove deregisters a closed pool.
func (r *poolRegistry) remove(p *ConnectionPool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := p.regKey
	if key == nil {
		return
	}
	if key.options == nil {
		if r.byKey[key.fingerprint] == p {
			delete(r.byKey, key.fingerprint)
		}
		return
	}
	if pools, ok := r.byOptions[key.options]; ok {
		if pools[key.fingerprint] == p {
			delete(pools, key.fingerprint)
		}
		if len(pools) == 0 {
			delete(r.byOptions, key.options)
		}
	}
}

// ShutdownPools closes every registered pool that has no attached clients.
// Pools still referenced by open clients are left running; call it again
// after those clients close, or rely on their Close to tear the pool down.
func ShutdownPools() {
	registry.mu.Lock()
	var unreferenced []*ConnectionPool
	for _, p := range registry.byKey {
		if p.refs() <= 0 {
			unreferenced = append(unreferenced, p)
		}
	}
	for _, pools := range registry.byOptions {
		for _, p := range pools {
			if p.refs() <= 0 {
				unreferenced = append(unreferenced, p)
			}
		}
	}
	registry.mu.Unlock()

	for _, p := range unreferenced {
		_ = p.close()
	}
}
