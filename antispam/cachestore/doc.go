// Cache of reputation point levels, with a fixed TTL and explicit purging.
//
// Includes an interface and implementations using redis and in-process memory.
//
// Admission checks consult the status-level directory on every submission by a registered user; this cache keeps that load off the directory. Reporter eligibility checks never go through it.
package cachestore
