/*
Package domain contains the pure types shared across the pflow engine:
actions, parameter records, retry policies, trace events, and sentinel
errors. It has no dependencies on the runtime packages so that adapters
and external tooling can consume these types directly.
*/
package domain
