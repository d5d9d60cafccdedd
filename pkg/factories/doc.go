// Package factories provides ready-made pool factories for common resource
// kinds: database connections, Kafka producers, cloud storage clients, HTTP
// clients, compression codecs, and Avro codecs.
//
// Each factory file follows the same shape: a config struct with the
// connection parameters, a New*Factory constructor returning a
// pool.Factory, a Close* hook matching pool.Config.Close, and a New*Pool
// convenience that assembles the three into a running pool.
//
// Factories validate their configuration when invoked, so a misconfigured
// pool surfaces the problem as a construction failure on first Acquire
// rather than at assembly time.
package factories
