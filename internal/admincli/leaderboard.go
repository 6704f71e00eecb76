package admincli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/obstaclehub/records-api/internal/model"
	"github.com/obstaclehub/records-api/internal/ranking"
	"github.com/obstaclehub/records-api/internal/storage"
)

func newLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Inspect and rebuild per-map leaderboards",
	}

	cmd.AddCommand(newLeaderboardShowCmd())
	cmd.AddCommand(newLeaderboardRebuildCmd())

	return cmd
}

// resolveTarget turns the --map/--event/--edition flags into a map and an
// optional event overlay.
func resolveTarget(ctx context.Context, mapUID, eventHandle string, editionID uint32) (*model.Map, model.OptEvent, error) {
	m, err := app.Store.GetMapByUID(ctx, mapUID)
	if err != nil {
		return nil, model.OptEvent{}, err
	}
	if eventHandle == "" {
		return m, model.OptEvent{}, nil
	}
	event, edition, err := app.Store.GetEventEdition(ctx, eventHandle, editionID)
	if err != nil {
		return nil, model.OptEvent{}, err
	}
	return m, model.NewOptEvent(event, edition), nil
}

func newLeaderboardShowCmd() *cobra.Command {
	var (
		mapUID      string
		eventHandle string
		editionID   uint32
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the authoritative leaderboard of a map",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			m, event, err := resolveTarget(ctx, mapUID, eventHandle, editionID)
			if err != nil {
				return err
			}

			best, err := app.Store.BestTimes(ctx, m.ID, event)
			if err != nil {
				return err
			}
			ranks := ranking.CompetRank(best, func(pb storage.PlayerBest) int32 {
				return pb.Time
			})

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tLOGIN\tNICKNAME\tTIME")
			for i, pb := range best {
				player, err := app.Store.GetPlayer(ctx, pb.PlayerID)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", ranks[i], player.Login, player.Nickname, pb.Time)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&mapUID, "map", "", "Map UID (required)")
	cmd.Flags().StringVar(&eventHandle, "event", "", "Event handle")
	cmd.Flags().Uint32Var(&editionID, "edition", 0, "Event edition ID")
	_ = cmd.MarkFlagRequired("map")

	return cmd
}

func newLeaderboardRebuildCmd() *cobra.Command {
	var (
		mapUID      string
		eventHandle string
		editionID   uint32
	)

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Force a rebuild of a map's ranking index",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			m, event, err := resolveTarget(ctx, mapUID, eventHandle, editionID)
			if err != nil {
				return err
			}

			if err := app.Engine.ForceRebuild(ctx, m.ID, event); err != nil {
				return err
			}

			fmt.Printf("rebuilt leaderboard of map %s\n", mapUID)
			return nil
		},
	}

	cmd.Flags().StringVar(&mapUID, "map", "", "Map UID (required)")
	cmd.Flags().StringVar(&eventHandle, "event", "", "Event handle")
	cmd.Flags().Uint32Var(&editionID, "edition", 0, "Event edition ID")
	_ = cmd.MarkFlagRequired("map")

	return cmd
}
