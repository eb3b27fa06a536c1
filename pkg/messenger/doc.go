// Package messenger turns a duplex message channel into a request/response
// facility.
//
// A [Messenger] wraps a [Port] (an in-memory [Pipe] or a [WebSocket]) and
// exchanges [protocol.Message] values with a peer Messenger on the other end.
// Requests that expect a response carry a correlation id; the peer's
// [Handler] result is written back under the same id and handed to the
// caller blocked in [Messenger.Send]. Fire-and-forget requests carry no id.
//
// # Wire Format
//
// Frames are JSON objects:
//
//	{"id":3,"request":{"type":"serialize"}}
//	{"id":3,"response":{"type":"serializeResponse","result":{...}}}
//	{"request":{"type":"mod","mod":"golang.org/x/mod"}}
//	{"id":4,"response":null,"error":"render failed"}
//
// # Concurrency
//
// Any number of requests may be outstanding in both directions and responses
// may arrive in any order. Each inbound request runs its handler on its own
// goroutine. When the port closes every pending caller fails with
// [ErrClosed]; a response for an id nobody waits for is dropped.
//
// # Usage
//
//	host, page := messenger.Pipe()
//	m := messenger.New(host, handle, messenger.WithLogger(logger))
//	go m.Run(ctx)
//
//	resp, err := m.Send(ctx, protocol.Serialize{})
package messenger
