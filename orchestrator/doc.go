// Package orchestrator turns one inbound chat message into at most two
// chat-completion round trips.
//
// An Orchestrator is request scoped and single use:
//
//	o, err := orchestrator.New(func(o *orchestrator.Options) {
//	    o.Client = client
//	    o.Catalog = catalog
//	    o.History = store
//	})
//	res, err := o.Run(ctx, orchestrator.Input{User: u, Session: s, Data: data})
//
// Run builds the message thread (replayed history or the caller's messages
// plus the new user message), merges the selected built-ins and plugins into
// one tool list and sends the first request. When the model asks for tool
// calls every call is dispatched, answered with exactly one tool message and
// a second request without tools produces the final answer. Any failure is
// returned as a *Failure carrying the mapped (status, error class), the
// iteration snapshots and the full message list.
package orchestrator
