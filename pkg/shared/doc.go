/*
Package shared provides the execution context shared by every node in a run:
a key/value data payload, a cooperative cancellation signal, a named FIFO
mutex table, a generic event bus, and a listener-aware logger.

One Shared instance is borrowed by a whole graph traversal. The data payload
is safe against concurrent map corruption, but the engine provides no
cross-key isolation; units of work that need exclusivity over a resource
must coordinate through the locker.
*/
package shared
