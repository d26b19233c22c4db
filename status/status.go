// Package status implements C7: a pure function from live component
// snapshots to a JSON-serializable status view, consumed by the excluded
// GUI front end or (in this headless form) by cmd/syncd's inspection
// subcommands (spec.md §4.6).
package status

import (
	"context"
	"fmt"

	"go-romm-sync/types"
)

// Sync states a tracked collection can be in, per spec.md §4.6.
const (
	StateNotSynced = "not_synced"
	StateSyncing   = "syncing"
	StateSynced    = "synced"
)

// CollectionStatus is one collection's entry in a Snapshot.
type CollectionStatus struct {
	AutoSync      bool                `json:"auto_sync"`
	SyncState     string              `json:"sync_state"`
	Downloaded    int                 `json:"downloaded"`
	Total         int                 `json:"total"`
	DownloadedPct float64             `json:"downloaded_pct,omitempty"`
	Speed         float64             `json:"speed,omitempty"`
	LastRemoval   *types.RemovalEvent `json:"last_removal,omitempty"`
}

// Snapshot is C7's complete output, assembled fresh on every poll.
type Snapshot struct {
	Connected        bool                        `json:"connected"`
	AutoSyncEnabled  bool                        `json:"auto_sync_enabled"`
	GameCount        int                         `json:"game_count"`
	EmulatorWarnings []string                    `json:"emulator_warnings,omitempty"`
	Collections      map[string]CollectionStatus `json:"collections"`
}

// CollectionLister is the one network call Assemble may make: the
// "known collections" fast path of spec.md §4.6 lets a caller skip it by
// populating View.KnownCollections instead.
type CollectionLister interface {
	GetCollections(ctx context.Context) ([]types.Collection, error)
}

// View bundles the read-only snapshots Assemble needs from each live
// component. Every field is a point-in-time copy the caller already took
// (e.g. via catalog.Cache.Games, collections.Engine.Progress/Removals/
// Selected/Membership) — Assemble itself never locks or blocks on I/O
// beyond the optional KnownCollections fallback.
type View struct {
	Connected        bool
	AutoSyncEnabled  bool
	EmulatorWarnings []string
	Games            []types.Game
	Selected         map[uint]string
	Membership       map[uint]map[uint]struct{}
	Progress         map[string]types.DownloadProgress
	Removals         map[string]types.RemovalEvent
	KnownCollections []types.Collection
}

// Assemble computes a Snapshot from view. If view.KnownCollections is nil,
// it fetches the collection list via lister; lister may be nil only when
// KnownCollections is already populated.
func Assemble(ctx context.Context, view View, lister CollectionLister) (Snapshot, error) {
	collections := view.KnownCollections
	if collections == nil {
		if lister == nil {
			return Snapshot{}, fmt.Errorf("status.Assemble: no known collections and no lister to fetch them")
		}
		fetched, err := lister.GetCollections(ctx)
		if err != nil {
			return Snapshot{}, fmt.Errorf("status.Assemble: failed to fetch collections: %w", err)
		}
		collections = fetched
	}

	downloadedByID := make(map[uint]bool, len(view.Games))
	for _, g := range view.Games {
		downloadedByID[g.ID] = g.IsDownloaded
	}

	out := make(map[string]CollectionStatus, len(collections))
	for _, c := range collections {
		_, tracked := view.Selected[c.ID]
		st := CollectionStatus{AutoSync: tracked}

		if p, ok := view.Progress[c.Name]; ok {
			st.SyncState = StateSyncing
			st.Downloaded = p.Downloaded
			st.Total = p.Total
			st.DownloadedPct = p.DownloadedPct
			st.Speed = p.SpeedBytesSec
		} else if members, ok := view.Membership[c.ID]; ok {
			st.Total = len(members)
			for id := range members {
				if downloadedByID[id] {
					st.Downloaded++
				}
			}
			if st.Total > 0 && st.Downloaded == st.Total {
				st.SyncState = StateSynced
			} else {
				st.SyncState = StateNotSynced
			}
		} else {
			st.SyncState = StateNotSynced
		}

		if r, ok := view.Removals[c.Name]; ok {
			removal := r
			st.LastRemoval = &removal
		}

		out[c.Name] = st
	}

	return Snapshot{
		Connected:        view.Connected,
		AutoSyncEnabled:  view.AutoSyncEnabled,
		GameCount:        len(view.Games),
		EmulatorWarnings: view.EmulatorWarnings,
		Collections:      out,
	}, nil
}
