// Package notify delivers classified events to outbound channels.
//
// A Channel is built once from its configuration. Missing credentials are
// detected at construction and surface as Enabled() == false; a disabled
// channel is skipped without a network call.
//
// # Dispatch
//
// The Dispatcher sends each event to every channel that accepts its kind,
// one channel at a time. A failing channel is logged and skipped; it never
// stops the remaining channels or the caller's memory write-back.
package notify
