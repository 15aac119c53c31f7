package shopping

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/shelfkeep/internal/model"
)

const (
	ReasonInProgress      = "sync already in progress"
	ReasonOffline         = "offline"
	ReasonUnauthenticated = "no credential"
)

// Failure is a per-entry error during Reconcile. It does not abort the pass.
type Failure struct {
	ItemName string `json:"item_name"`
	Op       string `json:"op"`
	Err      error  `json:"-"`
}

// Report summarises a Reconcile. Writes counts local and remote writes, so
// a second pass with nothing changed reports zero.
type Report struct {
	Skipped   bool          `json:"skipped"`
	Reason    string        `json:"reason,omitempty"`
	Pulled    int           `json:"pulled"`
	Updated   int           `json:"updated"`
	Pushed    int           `json:"pushed"`
	Unchanged int           `json:"unchanged"`
	Failures  []Failure     `json:"failures,omitempty"`
	Writes    int           `json:"writes"`
	Duration  time.Duration `json:"duration"`
}

// Reconcile merges the remote list into the local one by item name with
// last-write-wins on updated_at, then pushes local rows the remote has
// never seen. Only one pass runs at a time.
//
// Local rows sharing a name are matched by the earliest one only; the rest
// are never pushed.
func (s *Service) Reconcile(ctx context.Context) (Report, error) {
	if !s.syncing.CompareAndSwap(false, true) {
		return Report{Skipped: true, Reason: ReasonInProgress}, nil
	}
	defer s.syncing.Store(false)

	if !s.conn.Online() {
		return Report{Skipped: true, Reason: ReasonOffline}, nil
	}
	if !s.creds.HasCredential(ctx) {
		return Report{Skipped: true, Reason: ReasonUnauthenticated}, nil
	}

	start := time.Now()
	var rep Report

	remoteItems, err := s.remote.ListShoppingItems(ctx)
	if err != nil {
		return rep, fmt.Errorf("fetch remote shopping list: %w", err)
	}
	localItems, err := s.store.List(ctx)
	if err != nil {
		return rep, fmt.Errorf("fetch local shopping list: %w", err)
	}

	byName := make(map[string]model.ShoppingItem, len(localItems))
	pending := make(map[string]bool, len(localItems))
	for _, item := range localItems {
		if _, dup := byName[item.ItemName]; dup {
			continue
		}
		byName[item.ItemName] = item
		pending[item.ItemName] = true
	}

	for _, r := range remoteItems {
		local, ok := byName[r.ItemName]
		if !ok {
			inserted, err := s.store.InsertRemote(ctx, model.ShoppingItem{
				ID:          r.ID,
				ItemName:    r.ItemName,
				Quantity:    r.Quantity,
				IsPurchased: r.IsPurchased,
				UpdatedAt:   r.UpdatedAt,
			})
			if err != nil {
				s.fail(&rep, r.ItemName, "pull", err)
				continue
			}
			byName[r.ItemName] = *inserted
			rep.Pulled++
			rep.Writes++
			continue
		}
		delete(pending, r.ItemName)

		if r.UpdatedAt <= local.UpdatedAt {
			rep.Unchanged++
			continue
		}
		applied, err := s.store.ApplyRemote(ctx, local.ID, r.Quantity, r.IsPurchased, r.UpdatedAt)
		if err != nil {
			s.fail(&rep, r.ItemName, "apply", err)
			continue
		}
		if !applied {
			// Edited locally since the list was read.
			rep.Unchanged++
			continue
		}
		local.Quantity = r.Quantity
		local.IsPurchased = r.IsPurchased
		local.UpdatedAt = r.UpdatedAt
		local.Synced = true
		byName[r.ItemName] = local
		rep.Updated++
		rep.Writes++
	}

	for _, item := range localItems {
		if !pending[item.ItemName] || byName[item.ItemName].ID != item.ID {
			continue
		}
		if item.Synced {
			rep.Unchanged++
			continue
		}
		created, err := s.remote.CreateShoppingItem(ctx, toRemote(item))
		if err != nil {
			s.fail(&rep, item.ItemName, "push", err)
			continue
		}
		rep.Writes++
		if err := s.store.MarkSynced(ctx, item.ID, created.UpdatedAt); err != nil {
			s.fail(&rep, item.ItemName, "mark synced", err)
			continue
		}
		rep.Pushed++
		rep.Writes++
	}

	rep.Duration = time.Since(start)
	s.logger.Info("shopping list reconciled",
		"pulled", rep.Pulled, "updated", rep.Updated, "pushed", rep.Pushed,
		"unchanged", rep.Unchanged, "failures", len(rep.Failures), "duration", rep.Duration)
	s.emit(Event{Action: ActionReconciled, Report: &rep})
	return rep, nil
}

func (s *Service) fail(rep *Report, name, op string, err error) {
	s.logger.Warn("shopping reconcile entry failed", "item", name, "op", op, "error", err)
	rep.Failures = append(rep.Failures, Failure{ItemName: name, Op: op, Err: err})
}
