// Package server provides HTTP routing, middleware, the dashboard JSON API and the OAuth callback.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] registers method patterns
// ("GET /api/me") on an [http.ServeMux], so wrong-method requests get a 405 without extra code.
//
// [Middleware] is applied in the order it is added: the first middleware is the outermost. The serve command uses
// [RequestID], [Logging], [Recover], [CORS], [RateLimit] and [Metrics] in that order.
//
// # Dashboard API
//
// [DashboardHandler] serves everything under /api/: the profile, favorites (mutations reconcile the similarity
// graph under a mutex), graph snapshots and a websocket snapshot stream, thumbnails, playlist synthesis from
// favorites or preferences, widget previews and searches, the widget vocabulary, and saved playlists.
//
// Errors are JSON objects whose "error" field is the text of the matched sentinel from internal/shared, so a
// client can switch on it. A rejected credential is a 401, insufficient favorites a 422 with a "count" field.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the authorization code callback. It validates the state parameter, exchanges the code
// and sends the result through a channel. It only processes one callback.
//
// # Supervision
//
// [HTTPService] adapts an [http.Server] to a suture service, and [NewSupervisor] builds the root supervisor that
// runs it next to the graph loop.
package server
