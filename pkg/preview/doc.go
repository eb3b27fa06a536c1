// Package preview drives interactive module graph previews.
//
// A preview [Session] belongs to one document: a directory containing a
// go.mod file. The session scans the module graph, renders the current
// selection through a [scheduler.Scheduler], and talks to the page showing
// it through a [messenger.Messenger]. The page can change the selected
// module or ask for the current image to be exported.
//
// # Lifecycle
//
// A [Manager] keeps at most one session per document:
//
//	mgr := preview.NewManager(preview.Options{Archives: store})
//	s, err := mgr.Open(ctx, "./myapp", port)   // scan, initialize, render
//	...
//	mgr.Open(ctx, "./myapp", otherPort)        // same document: move to the new page
//	mgr.Close(ctx, s.DocumentID())             // serialize view state, stop
//
// Opening a session sends initialize to the page, or restore when an archive
// from a previous session exists. Closing asks the page to serialize its
// state and stores the result in the configured [archive.Store].
//
// # Failures
//
// Scan failures are reported to the user (see [modgraph.NeedScanNotice]) and
// to the page as a failure message. The session stays open; [Session.Visible]
// or [Session.Rescan] try again. Render failures reach the page the same way.
//
// # Serving
//
// [Server] exposes the page over HTTP and connects each WebSocket to a
// session:
//
//	GET /             preview page
//	GET /ws?module=p  WebSocket for the module at p, relative to the root
//	GET /healthz      liveness
//	GET /api/modules  node list of the module at ?module=p
package preview
