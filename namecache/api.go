// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package namecache implements a concurrent cache of path name components.
//
// The cache maps a (directory, name) pair to the object the name resolves to,
// to a negative entry recording that the name is known not to exist, or to
// nothing at all (a miss). It also answers the reverse question "what name,
// under what parent, refers to this object", which is used to rebuild paths
// without walking the file system.
//
// The cache never keeps an object alive. It records plain references to
// Objects and upgrades them with TryHold() only when a hit is returned to a
// caller. An object that is concurrently being destroyed cannot be upgraded and
// the lookup reports a miss (a "false hit").
//
// Cached entries are aged out by a background reclaimer that keeps the number
// of live entries between the configured water marks. Entries removed from the
// cache are handed to the reclaimer, which is the only code that frees them.
//
// Locks are always acquired in this order: the cache's structural lock, then
// an entry's lock, then a statistics shard's lock.
//
package namecache

// Object is implemented by anything that can be a parent or a target of a
// cached name.
//
// ObjectID() must be unique among all objects that may be named by entries in
// the cache at the same time; an ID must not be reused while entries referring
// to a previous object with that ID may remain. MountID() identifies the
// mounted collection the object belongs to and must not change.
//
// TryHold() attempts to acquire a strong reference without blocking and
// returns false if the object is being (or has been) destroyed. Release()
// drops a reference obtained from TryHold().
//
type Object interface {
	ObjectID() uint64
	MountID() uint64
	TryHold() (ok bool)
	Release()
}

// NameOp is the name space operation a lookup is performed for.
type NameOp int

const (
	LookupOp NameOp = iota
	CreateOp
	DeleteOp
	RenameOp
)

// ComponentFlags qualify a lookup or an Enter().
type ComponentFlags uint32

const (
	// MakeEntry allows the result of this lookup to be cached and a cached
	// entry to be used. A Lookup() without it discards any cached entry for
	// the name.
	MakeEntry ComponentFlags = 1 << iota

	// IsLastComponent is set when the name is the last component of the path
	// being resolved.
	IsLastComponent

	// Whiteout marks a negative entry passed to Enter() as standing for a
	// whiteout. It is returned by subsequent negative hits.
	Whiteout
)

// ComponentName is one path name component along with how it is being used.
type ComponentName struct {
	Name  string
	Op    NameOp
	Flags ComponentFlags
}

// LookupKind classifies the result of a lookup.
type LookupKind int

const (
	// Miss means nothing is known; the caller must ask the file system.
	Miss LookupKind = iota
	// Negative means the name is known not to exist.
	Negative
	// Positive means the name resolves to LookupResult.Target.
	Positive
)

func (kind LookupKind) String() string {
	switch kind {
	case Miss:
		return "Miss"
	case Negative:
		return "Negative"
	case Positive:
		return "Positive"
	default:
		return "Unknown"
	}
}

// LookupResult is returned by Lookup() and RawLookup().
//
// For a Positive result Target has been held on behalf of the caller who
// must Release() it.
//
type LookupResult struct {
	Kind     LookupKind
	Target   Object
	Whiteout bool
}

// PurgeSelector chooses the relations purged by PurgeRelation().
type PurgeSelector uint32

const (
	// PurgeParents purges every entry whose target is the object.
	PurgeParents PurgeSelector = 1 << iota
	// PurgeChildren purges every entry whose parent is the object.
	PurgeChildren
)

// ReverseStatus is the outcome of ReverseLookup().
type ReverseStatus int

const (
	ReverseFound     ReverseStatus = iota // parent returned (held) and name prepended
	ReverseNoWitness                      // no cached name refers to the target
	ReverseBusy                           // a cached name exists but its parent could not be held
	ReverseNoSpace                        // the name does not fit in the PathBuf
)

func (status ReverseStatus) String() string {
	switch status {
	case ReverseFound:
		return "ReverseFound"
	case ReverseNoWitness:
		return "ReverseNoWitness"
	case ReverseBusy:
		return "ReverseBusy"
	case ReverseNoSpace:
		return "ReverseNoSpace"
	default:
		return "ReverseUnknown"
	}
}

// Stats is a snapshot of the cache statistics.
type Stats struct {
	GoodHits         uint64 // positive hits returned
	NegHits          uint64 // negative hits returned
	BadHits          uint64 // hits discarded because of the caller's flags or a create
	FalseHits        uint64 // hits whose target could not be held
	Misses           uint64 // lookups that found nothing
	LongNames        uint64 // lookups of names too long to cache
	Pass2            uint64 // Enter() found a live entry for the key
	TwoPasses        uint64 // ... and replaced it
	Enters           uint64 // entries published by Enter()
	EnterDeclined    uint64 // Enter() calls that did not cache anything
	Evictions        uint64 // entries aged out by the reclaimer
	Invalidations    uint64 // entries removed for any reason
	Reclaimed        uint64 // invalidated entries returned to the pool
	ReverseHits      uint64
	ReverseMisses    uint64
	LiveEntries      uint64
	PendingEntries   uint64 // invalidated, not yet reclaimed
	AllocatedEntries uint64 // live, pending and in-flight entries
	MaxEntries       uint64
	TableSize        uint64 // buckets in each hash table
}

// New creates a cache and starts its reclaimer (unless config.ReclaimPeriod
// is zero).
//
func New(config Config) (cache *Cache, err error) {
	return newCache(config)
}

// Lookup looks up cn.Name in parent.
//
// A name longer than the configured maximum is always a Miss. A cached entry
// is discarded (and Miss returned) if cn.Flags lacks MakeEntry, or if it is
// negative and cn describes a create of the last component.
//
func (cache *Cache) Lookup(parent Object, cn *ComponentName) (result LookupResult) {
	return cache.lookup(parent, cn.Name, cn.Op, cn.Flags, false)
}

// RawLookup classifies a cached name without the create and MakeEntry rules
// applied by Lookup().
//
func (cache *Cache) RawLookup(parent Object, name string) (result LookupResult) {
	return cache.lookup(parent, name, LookupOp, MakeEntry, true)
}

// Enter caches the result of a file system lookup of cn.Name in parent. A nil
// target records a negative entry. Nothing is cached if cn.Flags lacks
// MakeEntry, if the name is too long, or if no entry can be allocated.
//
func (cache *Cache) Enter(parent Object, target Object, cn *ComponentName) {
	cache.enter(parent, target, cn)
}

// PurgeRelation removes the entries whose target is object (PurgeParents)
// and/or whose parent is object (PurgeChildren).
//
func (cache *Cache) PurgeRelation(object Object, selector PurgeSelector) {
	cache.purgeRelation(object, selector)
}

// Purge removes every entry naming object either as parent or as target.
//
func (cache *Cache) Purge(object Object) {
	cache.purgeRelation(object, PurgeParents|PurgeChildren)
}

// PurgeName removes the entry for name in parent, if any.
//
func (cache *Cache) PurgeName(parent Object, name string) {
	cache.purgeName(parent, name)
}

// PurgeNegatives removes the negative entries whose parent is parent.
//
func (cache *Cache) PurgeNegatives(parent Object) {
	cache.purgeNegatives(parent)
}

// PurgeMount removes every entry whose parent belongs to mountID and then runs
// a reclamation pass.
//
func (cache *Cache) PurgeMount(mountID uint64) {
	cache.purgeMount(mountID)
}

// ReverseLookup finds a cached name referring to target. On ReverseFound the
// returned parent has been held (the caller must Release() it) and, if
// pathBuf is not nil, "/" followed by the name has been prepended to it.
//
func (cache *Cache) ReverseLookup(target Object, pathBuf *PathBuf) (parent Object, status ReverseStatus) {
	return cache.reverseLookup(target, pathBuf)
}

// Resize changes the maximum number of live entries, rebuilding both hash
// tables. Live entries are rehashed immediately and remain reachable.
//
// EntryPoolLimit is re-derived from maxEntries unless the cache was created
// with a limit other than the one derived from its MaxEntries, in which case
// that limit is kept.
//
func (cache *Cache) Resize(maxEntries uint64) (err error) {
	return cache.resize(maxEntries)
}

// Reclaim runs one reclamation pass: statistics are folded, entries are
// evicted down to the low water mark if the high water mark was exceeded, and
// invalidated entries are freed.
//
func (cache *Cache) Reclaim() {
	cache.reclaimPass()
}

// Stats returns a snapshot of the cache statistics.
//
func (cache *Cache) Stats() (stats Stats) {
	return cache.stats()
}

// SprintStats formats the cache statistics, one per line.
//
func (cache *Cache) SprintStats() (statsString string) {
	return cache.sprintStats()
}

// Config returns the configuration the cache is currently running with.
//
func (cache *Cache) Config() (config Config) {
	return cache.currentConfig()
}

// Close stops the reclaimer, frees invalidated entries and unregisters the
// statistics. The cache must not be used afterward.
//
func (cache *Cache) Close() {
	cache.close()
}
