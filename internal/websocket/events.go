package websocket

import (
	"github.com/dukerupert/shelfkeep/internal/queue"
	"github.com/dukerupert/shelfkeep/internal/reachability"
	"github.com/dukerupert/shelfkeep/internal/shopping"
)

// OnQueueEvent forwards mutation queue changes to screens.
func (h *Hub) OnQueueEvent(e queue.Event) {
	action := "changed"
	if e.Type == queue.EventMutationEvicted {
		action = "evicted"
	}
	extra := map[string]any{
		"pending":  e.Len,
		"endpoint": e.Mutation.Endpoint,
		"kind":     string(e.Mutation.Kind),
	}
	if e.Err != nil {
		extra["error"] = e.Err.Error()
	}
	h.Broadcast(NewMessage("queue", action, e.Mutation.ID, extra))
}

// OnReachability forwards connectivity transitions. Polls that see no
// change are not broadcast.
func (h *Hub) OnReachability(s reachability.Status) {
	if !s.Changed {
		return
	}
	action := "offline"
	if s.Online {
		action = "online"
	}
	h.Broadcast(NewMessage("network", action, "", nil))
}

// OnShoppingEvent forwards shopping list changes and reconcile summaries.
func (h *Hub) OnShoppingEvent(e shopping.Event) {
	var extra map[string]any
	if e.Report != nil {
		extra = map[string]any{
			"pulled":   e.Report.Pulled,
			"updated":  e.Report.Updated,
			"pushed":   e.Report.Pushed,
			"failures": len(e.Report.Failures),
		}
	}
	h.Broadcast(NewMessage("shopping_item", e.Action, e.ItemID, extra))
}
