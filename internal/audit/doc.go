// Package audit relays security-relevant session events to a sink without
// blocking the request path.
//
// [Dispatcher] owns buffering and delivery; [ZapSink] and [ChannelSink] are
// the bundled consumers. Which events to emit is decided by the Engine.
//
// # What this package must NOT do
//
//   - Record token values, one-time codes or password material.
//   - Import authcore or any sibling internal package.
package audit
